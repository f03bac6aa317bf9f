package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func createIndexes() {
	createServicesIndexes()
	createRoutesIndexes()
	createTripsIndexes()
	createCalendarsIndexes()
	createOperatorsIndexes()
}

func createServicesIndexes() {
	servicesCollection := GetCollection("services")
	_, err := servicesCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "servicecode", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "linename", Value: 1},
				{Key: "current", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "operatorrefs", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "source", Value: 1},
				{Key: "current", Value: 1},
			},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createRoutesIndexes() {
	routesCollection := GetCollection("routes")
	_, err := routesCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "source", Value: 1},
				{Key: "code", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "serviceref", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "serviceref", Value: 1},
				{Key: "servicecode", Value: 1},
			},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createTripsIndexes() {
	tripsCollection := GetCollection("trips")
	_, err := tripsCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "routeref", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "ticketmachinecode", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "calendarref", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "stoptimes.stopref", Value: 1}},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createCalendarsIndexes() {
	calendarsCollection := GetCollection("calendars")
	_, err := calendarsCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "startdate", Value: 1},
				{Key: "enddate", Value: 1},
			},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createOperatorsIndexes() {
	operatorsCollection := GetCollection("operators")
	_, err := operatorsCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "licencenumber", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "name", Value: 1}},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}
