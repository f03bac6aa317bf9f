package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/busatlas/busatlas/pkg/database"
	"github.com/busatlas/busatlas/pkg/dataimporter/datasets"
	"github.com/busatlas/busatlas/pkg/dataimporter/formats/gtfsrt"
	"github.com/busatlas/busatlas/pkg/redis_client"
	"github.com/rs/zerolog/log"
)

const realtimeProjectionExpiry = 5 * time.Minute

// realtimeProjection is what gets published to Redis for each trip the feed
// reported on. The overlay never writes to the timetable collections.
type realtimeProjection struct {
	TripID    string                    `json:"tripid"`
	RouteID   string                    `json:"routeid,omitempty"`
	Cancelled bool                      `json:"cancelled"`
	StopTimes []gtfsrt.ExpectedStopTime `json:"stoptimes"`
	Updated   time.Time                 `json:"updated"`
}

// importRealtime overlays a GTFS-Realtime feed onto the stored schedule.
// Updates are matched to trips through the ticket machine code, which for
// GTFS schedules carries the feed's trip id.
func importRealtime(ctx context.Context, store database.Store, dataset *datasets.DataSet) error {
	overlay := gtfsrt.NewOverlay()

	feed, err := overlay.FetchFeed(ctx, realtimeURL(dataset))
	if err != nil {
		return err
	}

	updates := gtfsrt.ExtractTripUpdates(feed)

	var matched, unmatched int
	for tripID, update := range updates {
		trip, err := store.TripByTicketMachineCode(ctx, tripID)
		if err != nil {
			return err
		}
		if trip == nil {
			unmatched++
			continue
		}

		projection := realtimeProjection{
			TripID:    tripID,
			RouteID:   update.RouteID,
			Cancelled: update.Cancelled,
			StopTimes: update.Apply(trip),
			Updated:   time.Now(),
		}

		payload, err := json.Marshal(projection)
		if err != nil {
			return err
		}

		key := fmt.Sprintf("gtfsrt/trip/%s", trip.ID.Hex())
		if err := redis_client.Client.Set(ctx, key, payload, realtimeProjectionExpiry).Err(); err != nil {
			return err
		}
		matched++
	}

	log.Info().
		Str("dataset", dataset.Identifier).
		Int("matched", matched).
		Int("unmatched", unmatched).
		Msg("Realtime feed applied")

	return nil
}

// realtimeURL appends any query credentials, the only authentication the
// realtime endpoints use.
func realtimeURL(dataset *datasets.DataSet) string {
	url := dataset.Source
	separator := "?"
	for key, value := range dataset.SourceAuthentication.Query {
		url += separator + key + "=" + value
		separator = "&"
	}
	return url
}
