package database

import (
	"context"
	"time"

	"github.com/busatlas/busatlas/pkg/timetable"
	"go.mongodb.org/mongo-driver/bson"
)

// GetCalendars returns the calendars operating on the given day, optionally
// restricted to a candidate set of calendar refs. One date-bounded query
// fetches the candidates with their embedded exceptions and the rest is
// resolved in memory, so the result always matches per-calendar Allows.
func GetCalendars(ctx context.Context, when time.Time, candidateRefs []string, holidays timetable.BankHolidaySet) ([]*timetable.Calendar, error) {
	filter := bson.M{
		"startdate": bson.M{"$lte": when},
		"$or": bson.A{
			bson.M{"enddate": bson.M{"$gte": when}},
			bson.M{"enddate": bson.M{"$exists": false}},
		},
	}
	if candidateRefs != nil {
		filter["_id"] = bson.M{"$in": candidateRefs}
	}

	cursor, err := GetCollection("calendars").Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	var candidates []*timetable.Calendar
	if err := cursor.All(ctx, &candidates); err != nil {
		return nil, err
	}

	return timetable.FilterCalendars(candidates, when, holidays), nil
}
