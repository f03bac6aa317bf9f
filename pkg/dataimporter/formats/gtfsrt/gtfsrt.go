package gtfsrt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/busatlas/busatlas/pkg/redis_client"
	"github.com/busatlas/busatlas/pkg/timetable"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"
)

const feedCacheExpiry = 5 * time.Minute

// Overlay fetches a GTFS-Realtime feed and projects its trip updates onto
// stored trips. The raw feed is cached in Redis so repeated lookups within
// the expiry window do not refetch it.
type Overlay struct {
	feedCache  *cache.Cache[string]
	httpClient *http.Client
}

func NewOverlay() *Overlay {
	redisStore := redisstore.NewRedis(redis_client.Client, store.WithExpiration(feedCacheExpiry))

	return &Overlay{
		feedCache:  cache.New[string](redisStore),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// FetchFeed returns the feed at url, from the Redis cache when fresh.
func (o *Overlay) FetchFeed(ctx context.Context, url string) (*gtfs.FeedMessage, error) {
	cacheKey := fmt.Sprintf("gtfsrt/feed/%s", url)

	if cached, err := o.feedCache.Get(ctx, cacheKey); err == nil && cached != "" {
		return ParseFeed([]byte(cached))
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	response, err := o.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", response.StatusCode)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	if err := o.feedCache.Set(ctx, cacheKey, string(body)); err != nil {
		log.Error().Err(err).Msg("Failed to cache feed")
	}

	return ParseFeed(body)
}

func ParseFeed(body []byte) (*gtfs.FeedMessage, error) {
	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, err
	}
	return feed, nil
}

// TripUpdate is the flattened update for one feed trip, keyed by the trip
// id the schedule stored as the ticket machine code.
type TripUpdate struct {
	TripID    string
	RouteID   string
	Cancelled bool

	StopUpdates []StopUpdate
}

type StopUpdate struct {
	Sequence int
	StopRef  string
	Skipped  bool

	ArrivalDelay      time.Duration
	HasArrivalDelay   bool
	DepartureDelay    time.Duration
	HasDepartureDelay bool
}

// ExtractTripUpdates flattens a feed's trip updates by trip id.
func ExtractTripUpdates(feed *gtfs.FeedMessage) map[string]*TripUpdate {
	updates := map[string]*TripUpdate{}

	for _, entity := range feed.Entity {
		tripUpdate := entity.GetTripUpdate()
		if tripUpdate == nil {
			continue
		}

		trip := tripUpdate.GetTrip()
		tripID := trip.GetTripId()
		if tripID == "" {
			continue
		}

		update := &TripUpdate{
			TripID:    tripID,
			RouteID:   trip.GetRouteId(),
			Cancelled: trip.GetScheduleRelationship() == gtfs.TripDescriptor_CANCELED,
		}

		for _, stopTimeUpdate := range tripUpdate.GetStopTimeUpdate() {
			stopUpdate := StopUpdate{
				Sequence: int(stopTimeUpdate.GetStopSequence()),
				StopRef:  stopTimeUpdate.GetStopId(),
				Skipped:  stopTimeUpdate.GetScheduleRelationship() == gtfs.TripUpdate_StopTimeUpdate_SKIPPED,
			}

			if arrival := stopTimeUpdate.GetArrival(); arrival != nil {
				stopUpdate.ArrivalDelay = time.Duration(arrival.GetDelay()) * time.Second
				stopUpdate.HasArrivalDelay = true
			}
			if departure := stopTimeUpdate.GetDeparture(); departure != nil {
				stopUpdate.DepartureDelay = time.Duration(departure.GetDelay()) * time.Second
				stopUpdate.HasDepartureDelay = true
			}

			update.StopUpdates = append(update.StopUpdates, stopUpdate)
		}

		updates[tripID] = update
	}

	return updates
}

// ExpectedStopTime is a scheduled stop time with the realtime expectation
// applied.
type ExpectedStopTime struct {
	StopRef  string
	Sequence int

	Arrival   time.Duration
	Departure time.Duration

	ExpectedArrival   time.Duration
	ExpectedDeparture time.Duration

	Skipped   bool
	Cancelled bool
}

// Apply projects the update onto a stored trip's stop times. A delay
// carries forward to later stops until the feed reports a new one.
func (u *TripUpdate) Apply(trip *timetable.Trip) []ExpectedStopTime {
	updatesBySequence := map[int]*StopUpdate{}
	updatesByStop := map[string]*StopUpdate{}
	for index := range u.StopUpdates {
		stopUpdate := &u.StopUpdates[index]
		updatesBySequence[stopUpdate.Sequence] = stopUpdate
		if stopUpdate.StopRef != "" {
			updatesByStop[stopUpdate.StopRef] = stopUpdate
		}
	}

	var expected []ExpectedStopTime
	var currentDelay time.Duration

	for _, stopTime := range trip.StopTimes {
		stopUpdate := updatesBySequence[stopTime.Sequence]
		if stopUpdate == nil {
			stopUpdate = updatesByStop[stopTime.StopRef]
		}

		projection := ExpectedStopTime{
			StopRef:   stopTime.StopRef,
			Sequence:  stopTime.Sequence,
			Arrival:   stopTime.Arrival,
			Departure: stopTime.Departure,
			Cancelled: u.Cancelled,
		}

		if stopUpdate != nil {
			projection.Skipped = stopUpdate.Skipped
			if stopUpdate.HasArrivalDelay {
				currentDelay = stopUpdate.ArrivalDelay
			}
		}

		projection.ExpectedArrival = stopTime.Arrival + currentDelay

		if stopUpdate != nil && stopUpdate.HasDepartureDelay {
			currentDelay = stopUpdate.DepartureDelay
		}
		projection.ExpectedDeparture = stopTime.Departure + currentDelay

		expected = append(expected, projection)
	}

	return expected
}
