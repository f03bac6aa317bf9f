package database

import (
	"context"
	"errors"
	"time"

	"github.com/busatlas/busatlas/pkg/timetable"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store exposes the timetable collections to the importer. Methods come in
// two groups, the write path used while persisting an archive and the read
// queries used by service and operator matching.
type Store struct{}

var caseInsensitive = options.Collation{Locale: "en", Strength: 2}

func (Store) UpsertCalendar(ctx context.Context, calendar *timetable.Calendar) error {
	if calendar.Hash == "" {
		calendar.Hash = calendar.GenerateContentHash()
	}

	_, err := GetCollection("calendars").ReplaceOne(
		ctx, bson.M{"_id": calendar.Hash}, calendar, options.Replace().SetUpsert(true))
	return err
}

func (Store) UpsertNote(ctx context.Context, note *timetable.Note) error {
	_, err := GetCollection("notes").ReplaceOne(
		ctx, bson.M{"_id": note.ID}, note, options.Replace().SetUpsert(true))
	return err
}

func (Store) UpsertGarage(ctx context.Context, garage *timetable.Garage) error {
	_, err := GetCollection("garages").ReplaceOne(
		ctx, bson.M{"_id": garage.Code}, garage, options.Replace().SetUpsert(true))
	return err
}

func (Store) UpsertBlock(ctx context.Context, block *timetable.Block) error {
	_, err := GetCollection("blocks").ReplaceOne(
		ctx, bson.M{"_id": block.Code}, block, options.Replace().SetUpsert(true))
	return err
}

func (Store) UpsertVehicleType(ctx context.Context, vehicleType *timetable.VehicleType) error {
	_, err := GetCollection("vehicle_types").ReplaceOne(
		ctx, bson.M{"_id": vehicleType.Code}, vehicleType, options.Replace().SetUpsert(true))
	return err
}

func (Store) InsertService(ctx context.Context, service *timetable.Service) error {
	if service.ID.IsZero() {
		service.ID = primitive.NewObjectID()
	}
	_, err := GetCollection("services").InsertOne(ctx, service)
	return err
}

// UpdateService refreshes the fields an import run owns. Services are
// shared between sources and concurrent importers, so this never replaces
// the whole document.
func (Store) UpdateService(ctx context.Context, service *timetable.Service) error {
	_, err := GetCollection("services").UpdateByID(ctx, service.ID, bson.M{"$set": bson.M{
		"servicecode":         service.ServiceCode,
		"linename":            service.LineName,
		"linebrand":           service.LineBrand,
		"description":         service.Description,
		"inbounddescription":  service.InboundDescription,
		"outbounddescription": service.OutboundDescription,
		"mode":                service.Mode,
		"current":             service.Current,
		"publicuse":           service.PublicUse,
		"operatorrefs":        service.OperatorRefs,
		"date":                service.Date,
	}})
	return err
}

// IsDuplicateKey reports whether err is a unique index violation, which the
// caller handles by regenerating the conflicting value.
func (Store) IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// UpsertRoute writes the route keyed on (source, code), preserving the
// identifier of any existing version. It reports whether a new route record
// was created.
func (Store) UpsertRoute(ctx context.Context, route *timetable.Route) (bool, error) {
	routesCollection := GetCollection("routes")

	var existing timetable.Route
	err := routesCollection.FindOne(ctx, bson.M{
		"source": route.Source,
		"code":   route.Code,
	}).Decode(&existing)

	if err == nil {
		route.ID = existing.ID
		_, err = routesCollection.ReplaceOne(ctx, bson.M{"_id": route.ID}, route)
		return false, err
	}

	if !errors.Is(err, mongo.ErrNoDocuments) {
		return false, err
	}

	route.ID = primitive.NewObjectID()
	_, err = routesCollection.InsertOne(ctx, route)
	return true, err
}

// TripsByRoute returns the route's trips ordered by identifier, the order
// used when deciding whether trip identities can be preserved.
func (Store) TripsByRoute(ctx context.Context, routeID primitive.ObjectID) ([]*timetable.Trip, error) {
	cursor, err := GetCollection("trips").Find(ctx,
		bson.M{"routeref": routeID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}

	var trips []*timetable.Trip
	err = cursor.All(ctx, &trips)
	return trips, err
}

func (Store) InsertTrips(ctx context.Context, trips []*timetable.Trip) error {
	if len(trips) == 0 {
		return nil
	}

	documents := make([]interface{}, 0, len(trips))
	for _, trip := range trips {
		if trip.ID.IsZero() {
			trip.ID = primitive.NewObjectID()
		}
		documents = append(documents, trip)
	}

	_, err := GetCollection("trips").InsertMany(ctx, documents)
	return err
}

func (Store) UpdateTrips(ctx context.Context, trips []*timetable.Trip) error {
	if len(trips) == 0 {
		return nil
	}

	var operations []mongo.WriteModel
	for _, trip := range trips {
		operations = append(operations, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": trip.ID}).
			SetReplacement(trip))
	}

	_, err := GetCollection("trips").BulkWrite(ctx, operations)
	return err
}

func (Store) DeleteTripsByRoute(ctx context.Context, routeID primitive.ObjectID) error {
	_, err := GetCollection("trips").DeleteMany(ctx, bson.M{"routeref": routeID})
	return err
}

// DeleteRoutesExcept removes the source's routes that this import did not
// touch, along with their trips. Other sources' routes are never affected.
func (Store) DeleteRoutesExcept(ctx context.Context, source string, keep []primitive.ObjectID) (int64, error) {
	routesCollection := GetCollection("routes")

	cursor, err := routesCollection.Find(ctx, bson.M{
		"source": source,
		"_id":    bson.M{"$nin": keep},
	}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, err
	}

	var stale []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &stale); err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	staleIDs := make([]primitive.ObjectID, 0, len(stale))
	for _, route := range stale {
		staleIDs = append(staleIDs, route.ID)
	}

	if _, err := GetCollection("trips").DeleteMany(ctx, bson.M{"routeref": bson.M{"$in": staleIDs}}); err != nil {
		return 0, err
	}

	result, err := routesCollection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": staleIDs}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// DeactivateStaleServices marks the source's current services as no longer
// current when the import did not touch them and they have no routes left.
func (Store) DeactivateStaleServices(ctx context.Context, source string, touched []primitive.ObjectID) (int64, error) {
	servicesCollection := GetCollection("services")

	cursor, err := servicesCollection.Find(ctx, bson.M{
		"source":  source,
		"current": true,
		"_id":     bson.M{"$nin": touched},
	}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, err
	}

	var candidates []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &candidates); err != nil {
		return 0, err
	}

	var deactivated int64
	for _, service := range candidates {
		routeCount, err := GetCollection("routes").CountDocuments(ctx,
			bson.M{"serviceref": service.ID}, options.Count().SetLimit(1))
		if err != nil {
			return deactivated, err
		}
		if routeCount > 0 {
			continue
		}

		_, err = servicesCollection.UpdateByID(ctx, service.ID, bson.M{"$set": bson.M{"current": false}})
		if err != nil {
			return deactivated, err
		}
		deactivated++
	}

	return deactivated, nil
}

// UpdateServiceDerived writes the recomputed display fields for a service.
func (Store) UpdateServiceDerived(ctx context.Context, service *timetable.Service) error {
	_, err := GetCollection("services").UpdateByID(ctx, service.ID, bson.M{"$set": bson.M{
		"stopusages":          service.StopUsages,
		"searchvector":        service.SearchVector,
		"geometry":            service.Geometry,
		"description":         service.Description,
		"inbounddescription":  service.InboundDescription,
		"outbounddescription": service.OutboundDescription,
	}})
	return err
}

// TripByTicketMachineCode finds the trip a realtime feed's trip identifier
// refers to. GTFS feeds reuse the schedule's trip_id as the ticket machine
// code, so this is the realtime to schedule linkage.
func (Store) TripByTicketMachineCode(ctx context.Context, code string) (*timetable.Trip, error) {
	var trip timetable.Trip
	err := GetCollection("trips").FindOne(ctx, bson.M{"ticketmachinecode": code}).Decode(&trip)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

// TripsByService returns every trip of every route attached to the service.
func (s Store) TripsByService(ctx context.Context, serviceID primitive.ObjectID) ([]*timetable.Trip, error) {
	routeIDs, err := s.routeIDsByService(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	cursor, err := GetCollection("trips").Find(ctx, bson.M{"routeref": bson.M{"$in": routeIDs}})
	if err != nil {
		return nil, err
	}

	var trips []*timetable.Trip
	err = cursor.All(ctx, &trips)
	return trips, err
}

func (Store) routeIDsByService(ctx context.Context, serviceID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cursor, err := GetCollection("routes").Find(ctx,
		bson.M{"serviceref": serviceID},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}

	var routes []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &routes); err != nil {
		return nil, err
	}

	routeIDs := make([]primitive.ObjectID, 0, len(routes))
	for _, route := range routes {
		routeIDs = append(routeIDs, route.ID)
	}
	return routeIDs, nil
}

// SaveBankHolidays replaces the stored holiday name to dates table.
func (Store) SaveBankHolidays(ctx context.Context, holidays timetable.BankHolidaySet) error {
	collection := GetCollection("bank_holidays")

	for name, dates := range holidays {
		_, err := collection.ReplaceOne(ctx,
			bson.M{"_id": name},
			bson.M{"_id": name, "dates": dates},
			options.Replace().SetUpsert(true))
		if err != nil {
			return err
		}
	}

	return nil
}

func (Store) GetBankHolidays(ctx context.Context) (timetable.BankHolidaySet, error) {
	cursor, err := GetCollection("bank_holidays").Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	var records []struct {
		Name  string      `bson:"_id"`
		Dates []time.Time `bson:"dates"`
	}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	holidays := timetable.BankHolidaySet{}
	for _, record := range records {
		holidays[record.Name] = record.Dates
	}
	return holidays, nil
}

func (Store) SaveDataSource(ctx context.Context, source *timetable.DataSource) error {
	_, err := GetCollection("datasources").ReplaceOne(
		ctx, bson.M{"_id": source.Identifier}, source, options.Replace().SetUpsert(true))
	return err
}

func (Store) GetDataSource(ctx context.Context, identifier string) (*timetable.DataSource, error) {
	var source timetable.DataSource
	err := GetCollection("datasources").FindOne(ctx, bson.M{"_id": identifier}).Decode(&source)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &timetable.DataSource{Identifier: identifier}, nil
	}
	if err != nil {
		return nil, err
	}
	return &source, nil
}
