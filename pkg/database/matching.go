package database

import (
	"context"
	"errors"

	"github.com/busatlas/busatlas/pkg/timetable"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Queries used by service and operator matching.

func (Store) ServiceByUniqueCode(ctx context.Context, code string) (*timetable.Service, error) {
	var service timetable.Service
	err := GetCollection("services").FindOne(ctx,
		bson.M{"servicecode": code},
		options.FindOne().SetSort(bson.D{{Key: "current", Value: -1}, {Key: "_id", Value: 1}}),
	).Decode(&service)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &service, nil
}

// ServicesByLineName matches the line name case-insensitively, current
// services first and then oldest first, which is the order candidates are
// tried in.
func (Store) ServicesByLineName(ctx context.Context, lineName string) ([]*timetable.Service, error) {
	cursor, err := GetCollection("services").Find(ctx,
		bson.M{"linename": lineName},
		options.Find().
			SetCollation(&caseInsensitive).
			SetSort(bson.D{{Key: "current", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}

	var services []*timetable.Service
	err = cursor.All(ctx, &services)
	return services, err
}

func (Store) ServiceBySourceCode(ctx context.Context, source string, serviceCode string) (*timetable.Service, error) {
	var service timetable.Service
	err := GetCollection("services").FindOne(ctx, bson.M{
		"source":      source,
		"servicecode": serviceCode,
	}).Decode(&service)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &service, nil
}

func (Store) ServiceHasRoutes(ctx context.Context, serviceID primitive.ObjectID) (bool, error) {
	count, err := GetCollection("routes").CountDocuments(ctx,
		bson.M{"serviceref": serviceID}, options.Count().SetLimit(1))
	return count > 0, err
}

func (Store) RouteWithServiceCodeExists(ctx context.Context, serviceID primitive.ObjectID, serviceCode string) (bool, error) {
	count, err := GetCollection("routes").CountDocuments(ctx, bson.M{
		"serviceref":  serviceID,
		"servicecode": serviceCode,
	}, options.Count().SetLimit(1))
	return count > 0, err
}

// ServiceCallsAtStops reports whether any existing trip of the service calls
// at any of the given stops.
func (s Store) ServiceCallsAtStops(ctx context.Context, serviceID primitive.ObjectID, stops []string) (bool, error) {
	routeIDs, err := s.routeIDsByService(ctx, serviceID)
	if err != nil {
		return false, err
	}
	if len(routeIDs) == 0 {
		return false, nil
	}

	count, err := GetCollection("trips").CountDocuments(ctx, bson.M{
		"routeref":          bson.M{"$in": routeIDs},
		"stoptimes.stopref": bson.M{"$in": stops},
	}, options.Count().SetLimit(1))
	return count > 0, err
}

// ServiceUsesStops reports whether the service's stop usages overlap the
// given stops.
func (Store) ServiceUsesStops(ctx context.Context, serviceID primitive.ObjectID, stops []string) (bool, error) {
	count, err := GetCollection("services").CountDocuments(ctx, bson.M{
		"_id":                serviceID,
		"stopusages.stopref": bson.M{"$in": stops},
	}, options.Count().SetLimit(1))
	return count > 0, err
}

func (Store) OperatorByNOC(ctx context.Context, noc string) (*timetable.Operator, error) {
	var operator timetable.Operator
	err := GetCollection("operators").FindOne(ctx, bson.M{"_id": noc}).Decode(&operator)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &operator, nil
}

func (Store) OperatorsByLicence(ctx context.Context, licenceNumber string) ([]*timetable.Operator, error) {
	cursor, err := GetCollection("operators").Find(ctx, bson.M{"licencenumber": licenceNumber})
	if err != nil {
		return nil, err
	}

	var operators []*timetable.Operator
	err = cursor.All(ctx, &operators)
	return operators, err
}

func (Store) OperatorsByName(ctx context.Context, name string) ([]*timetable.Operator, error) {
	cursor, err := GetCollection("operators").Find(ctx,
		bson.M{"name": name}, options.Find().SetCollation(&caseInsensitive))
	if err != nil {
		return nil, err
	}

	var operators []*timetable.Operator
	err = cursor.All(ctx, &operators)
	return operators, err
}

func (Store) OperatorNOCsByParent(ctx context.Context, parent string) ([]string, error) {
	cursor, err := GetCollection("operators").Find(ctx,
		bson.M{"parent": parent},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}

	var operators []struct {
		NOC string `bson:"_id"`
	}
	if err := cursor.All(ctx, &operators); err != nil {
		return nil, err
	}

	nocs := make([]string, 0, len(operators))
	for _, operator := range operators {
		nocs = append(nocs, operator.NOC)
	}
	return nocs, nil
}

