package database

import (
	"context"
	"time"

	"github.com/busatlas/busatlas/pkg/util"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoInstance struct {
	Client   *mongo.Client
	Database *mongo.Database
}

var MongoGlobalInstance *MongoInstance

const defaultMongoConnectionString = "mongodb://localhost:27017/"
const defaultMongoDatabase = "busatlas"

func Connect() error {
	connectionString := defaultMongoConnectionString
	dbName := defaultMongoDatabase

	env := util.GetEnvironmentVariables()

	if env["BUSATLAS_MONGODB_CONNECTION"] != "" {
		connectionString = env["BUSATLAS_MONGODB_CONNECTION"]
	}

	if env["BUSATLAS_MONGODB_DATABASE"] != "" {
		dbName = env["BUSATLAS_MONGODB_DATABASE"]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return err
	}

	MongoGlobalInstance = &MongoInstance{
		Client:   client,
		Database: client.Database(dbName),
	}

	if err := client.Ping(context.Background(), nil); err != nil {
		return err
	}

	createIndexes()

	return nil
}

func GetCollection(collectionName string) *mongo.Collection {
	return MongoGlobalInstance.Database.Collection(collectionName)
}

// WithTransaction runs fn inside a single MongoDB transaction, so a failed
// archive import rolls back completely and the previously imported data
// stays current.
func WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := MongoGlobalInstance.Client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessionContext mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessionContext)
	})

	return err
}
