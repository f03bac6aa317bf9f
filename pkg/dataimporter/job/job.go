package job

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/busatlas/busatlas/pkg/dataimporter/datasets"
	"github.com/busatlas/busatlas/pkg/dataimporter/reconcile"
	"github.com/busatlas/busatlas/pkg/timetable"
	"github.com/busatlas/busatlas/pkg/util"
	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store is the slice of the database layer the import job goes through.
type Store interface {
	reconcile.ServiceFinder
	reconcile.OperatorFinder

	UpsertCalendar(ctx context.Context, calendar *timetable.Calendar) error
	UpsertNote(ctx context.Context, note *timetable.Note) error
	UpsertGarage(ctx context.Context, garage *timetable.Garage) error
	UpsertBlock(ctx context.Context, block *timetable.Block) error
	UpsertVehicleType(ctx context.Context, vehicleType *timetable.VehicleType) error

	InsertService(ctx context.Context, service *timetable.Service) error
	UpdateService(ctx context.Context, service *timetable.Service) error
	IsDuplicateKey(err error) bool

	UpsertRoute(ctx context.Context, route *timetable.Route) (bool, error)
	TripsByRoute(ctx context.Context, routeID primitive.ObjectID) ([]*timetable.Trip, error)
	InsertTrips(ctx context.Context, trips []*timetable.Trip) error
	UpdateTrips(ctx context.Context, trips []*timetable.Trip) error
	DeleteTripsByRoute(ctx context.Context, routeID primitive.ObjectID) error

	DeleteRoutesExcept(ctx context.Context, source string, keep []primitive.ObjectID) (int64, error)
	DeactivateStaleServices(ctx context.Context, source string, touched []primitive.ObjectID) (int64, error)
	UpdateServiceDerived(ctx context.Context, service *timetable.Service) error
	TripsByService(ctx context.Context, serviceID primitive.ObjectID) ([]*timetable.Trip, error)
}

// Stats counts what an import run did, for the end of run summary.
type Stats struct {
	ServicesCreated int
	ServicesMatched int
	Deferred        int

	Routes int
	Trips  int

	RoutesDeleted       int64
	ServicesDeactivated int64
}

// ImportJob drives one import run of one dataset. Candidates from the
// parsers go through operator resolution, deferral and service matching,
// then get persisted. Finish runs the source scoped cleanup and recomputes
// the derived fields of every touched service.
type ImportJob struct {
	store   Store
	dataset datasets.DataSet

	Resolver *reconcile.OperatorResolver
	matcher  *reconcile.Matcher
	deferrer *reconcile.Deferrer

	calendars    map[string]bool
	notes        map[string]bool
	garages      map[string]bool
	blocks       map[string]bool
	vehicleTypes map[string]bool

	touchedRoutes    []primitive.ObjectID
	touchedServices  []*timetable.Service
	touchedServiceID map[string]bool

	// shapes accumulated per service across this run's routes
	serviceShapes map[string][][][2]float64

	Stats Stats
}

func NewImportJob(store Store, dataset datasets.DataSet) *ImportJob {
	return &ImportJob{
		store:   store,
		dataset: dataset,

		Resolver: reconcile.NewOperatorResolver(store, dataset.Region, dataset.Identifier),
		matcher:  reconcile.NewMatcher(store, dataset.Identifier, dataset.SourceScoped),
		deferrer: reconcile.NewDeferrer(store, datasets.CompleteSourceOperators(dataset.Identifier)),

		calendars:    map[string]bool{},
		notes:        map[string]bool{},
		garages:      map[string]bool{},
		blocks:       map[string]bool{},
		vehicleTypes: map[string]bool{},

		touchedServiceID: map[string]bool{},
		serviceShapes:    map[string][][][2]float64{},
	}
}

// HandleCandidate persists one service candidate. The candidate's operators
// are resolved first so that deferral and matching see NOCs rather than raw
// source identifiers.
func (j *ImportJob) HandleCandidate(ctx context.Context, candidate *timetable.ServiceCandidate) error {
	resolvedNOCs, err := j.resolveOperators(ctx, candidate)
	if err != nil {
		return err
	}

	if !j.dataset.CompleteSource {
		deferred, err := j.deferrer.ShouldDefer(ctx, resolvedNOCs)
		if err != nil {
			return err
		}
		if deferred {
			j.Stats.Deferred++
			return nil
		}
	}

	service, err := j.matcher.Find(ctx, candidate, resolvedNOCs)
	if err != nil {
		return err
	}

	if service == nil {
		service, err = j.createService(ctx, candidate, resolvedNOCs)
		if err != nil {
			return err
		}
		j.Stats.ServicesCreated++
	} else {
		if err := j.refreshService(ctx, service, candidate, resolvedNOCs); err != nil {
			return err
		}
		j.Stats.ServicesMatched++
	}

	if !j.touchedServiceID[service.ID.Hex()] {
		j.touchedServiceID[service.ID.Hex()] = true
		j.touchedServices = append(j.touchedServices, service)
	}

	for _, route := range candidate.Routes {
		if err := j.persistRoute(ctx, service, candidate, route); err != nil {
			return err
		}
	}

	return nil
}

func (j *ImportJob) resolveOperators(ctx context.Context, candidate *timetable.ServiceCandidate) ([]string, error) {
	var nocs []string
	seen := map[string]bool{}

	for _, operator := range candidate.Operators {
		noc, err := j.Resolver.Resolve(ctx, operator)
		if err != nil {
			return nil, err
		}
		if noc != "" && !seen[noc] {
			seen[noc] = true
			nocs = append(nocs, noc)
		}
	}

	return nocs, nil
}

func (j *ImportJob) createService(ctx context.Context, candidate *timetable.ServiceCandidate, nocs []string) (*timetable.Service, error) {
	service := &timetable.Service{
		ID: primitive.NewObjectID(),

		ServiceCode: candidate.ServiceCode,
		LineName:    candidate.LineName,
		LineBrand:   candidate.LineBrand,

		Description:         candidate.Description,
		InboundDescription:  candidate.InboundDescription,
		OutboundDescription: candidate.OutboundDescription,

		Mode:      candidate.Mode,
		Current:   true,
		PublicUse: candidate.PublicUse,

		Source:       j.dataset.Identifier,
		OperatorRefs: nocs,
		Date:         time.Now(),
	}
	service.Slug = serviceSlug(candidate, nocs)

	err := j.store.InsertService(ctx, service)
	if j.store.IsDuplicateKey(err) {
		// Slug collision with an unrelated service, make it unique and
		// try once more.
		service.Slug = service.Slug + "-" + service.ID.Hex()[18:]
		err = j.store.InsertService(ctx, service)
	}
	if err != nil {
		return nil, err
	}

	log.Debug().Str("slug", service.Slug).Str("linename", service.LineName).Msg("Created service")
	return service, nil
}

func serviceSlug(candidate *timetable.ServiceCandidate, nocs []string) string {
	parts := []string{}
	if len(nocs) > 0 {
		parts = append(parts, nocs[0])
	}
	if candidate.LineName != "" {
		parts = append(parts, candidate.LineName)
	} else {
		parts = append(parts, candidate.ServiceCode)
	}
	return util.Slugify(strings.Join(parts, "-"))
}

func (j *ImportJob) refreshService(ctx context.Context, service *timetable.Service, candidate *timetable.ServiceCandidate, nocs []string) error {
	service.Current = true
	service.Date = time.Now()

	if candidate.LineBrand != "" {
		service.LineBrand = candidate.LineBrand
	}
	if candidate.Description != "" {
		service.Description = candidate.Description
	}
	if candidate.InboundDescription != "" {
		service.InboundDescription = candidate.InboundDescription
	}
	if candidate.OutboundDescription != "" {
		service.OutboundDescription = candidate.OutboundDescription
	}
	if candidate.Mode != "" {
		service.Mode = candidate.Mode
	}
	if candidate.PublicUse {
		service.PublicUse = true
	}
	if candidate.UniqueCode != "" && service.ServiceCode == "" {
		service.ServiceCode = candidate.UniqueCode
	}

	service.OperatorRefs = util.RemoveDuplicateStrings(append(service.OperatorRefs, nocs...), nil)

	return j.store.UpdateService(ctx, service)
}

func (j *ImportJob) persistRoute(ctx context.Context, service *timetable.Service, candidate *timetable.ServiceCandidate, routeCandidate *timetable.RouteCandidate) error {
	route := &timetable.Route{
		Source: j.dataset.Identifier,
		Code:   routeCandidate.Code,

		ServiceRef: service.ID,

		LineName:    routeCandidate.LineName,
		LineBrand:   candidate.LineBrand,
		Description: routeCandidate.Description,

		Origin:      routeCandidate.Origin,
		Destination: routeCandidate.Destination,
		Via:         routeCandidate.Via,

		ServiceCode: routeCandidate.ServiceCode,

		StartDate: routeCandidate.StartDate,
		EndDate:   routeCandidate.EndDate,
	}
	if route.LineName == "" {
		route.LineName = candidate.LineName
	}

	if _, err := j.store.UpsertRoute(ctx, route); err != nil {
		return err
	}

	j.touchedRoutes = append(j.touchedRoutes, route.ID)
	j.Stats.Routes++

	if len(routeCandidate.Shapes) > 0 {
		key := service.ID.Hex()
		j.serviceShapes[key] = append(j.serviceShapes[key], routeCandidate.Shapes...)
	}

	trips, err := j.buildTrips(ctx, route, routeCandidate.Trips)
	if err != nil {
		return err
	}

	return j.persistTrips(ctx, route.ID, trips)
}

// buildTrips converts trip candidates into persistable trips, writing the
// shared records they reference (calendars, notes, garages, blocks, vehicle
// types) as it goes. Shared records are only written once per run.
func (j *ImportJob) buildTrips(ctx context.Context, route *timetable.Route, candidates []*timetable.TripCandidate) ([]*timetable.Trip, error) {
	var trips []*timetable.Trip

	for _, candidate := range candidates {
		trip := &timetable.Trip{
			RouteRef: route.ID,

			Inbound: candidate.Inbound,

			JourneyPattern:    candidate.JourneyPattern,
			TicketMachineCode: candidate.TicketMachineCode,
			BlockRef:          candidate.BlockCode,
			VehicleTypeRef:    candidate.VehicleTypeCode,
			GarageRef:         candidate.GarageCode,
			OperatorRef:       candidate.OperatorNOC,

			Headsign:       candidate.Headsign,
			DestinationRef: candidate.DestinationRef,

			Start: candidate.Start,
			End:   candidate.End,

			Sequence: candidate.Sequence,

			StopTimes: candidate.StopTimes,
		}

		if candidate.Calendar != nil {
			hash, err := j.upsertCalendar(ctx, candidate.Calendar)
			if err != nil {
				return nil, err
			}
			trip.CalendarRef = hash
		}

		for _, note := range candidate.Notes {
			id, err := j.upsertNote(ctx, note)
			if err != nil {
				return nil, err
			}
			trip.NoteRefs = append(trip.NoteRefs, id)
		}

		if err := j.upsertTripRefs(ctx, candidate); err != nil {
			return nil, err
		}

		trips = append(trips, trip)
	}

	return trips, nil
}

func (j *ImportJob) upsertCalendar(ctx context.Context, calendar *timetable.Calendar) (string, error) {
	if calendar.Hash == "" {
		calendar.Hash = calendar.GenerateContentHash()
	}
	if j.calendars[calendar.Hash] {
		return calendar.Hash, nil
	}

	if err := j.store.UpsertCalendar(ctx, calendar); err != nil {
		return "", err
	}
	j.calendars[calendar.Hash] = true

	return calendar.Hash, nil
}

func (j *ImportJob) upsertNote(ctx context.Context, note timetable.Note) (string, error) {
	if note.ID == "" {
		note.ID = fmt.Sprintf("%x", sha256.Sum256([]byte(note.Code+"\n"+note.Text)))[:24]
	}
	if j.notes[note.ID] {
		return note.ID, nil
	}

	if err := j.store.UpsertNote(ctx, &note); err != nil {
		return "", err
	}
	j.notes[note.ID] = true

	return note.ID, nil
}

func (j *ImportJob) upsertTripRefs(ctx context.Context, candidate *timetable.TripCandidate) error {
	if candidate.GarageCode != "" && !j.garages[candidate.GarageCode] {
		if err := j.store.UpsertGarage(ctx, &timetable.Garage{Code: candidate.GarageCode}); err != nil {
			return err
		}
		j.garages[candidate.GarageCode] = true
	}

	if candidate.BlockCode != "" && !j.blocks[candidate.BlockCode] {
		if err := j.store.UpsertBlock(ctx, &timetable.Block{Code: candidate.BlockCode}); err != nil {
			return err
		}
		j.blocks[candidate.BlockCode] = true
	}

	if candidate.VehicleTypeCode != "" && !j.vehicleTypes[candidate.VehicleTypeCode] {
		if err := j.store.UpsertVehicleType(ctx, &timetable.VehicleType{Code: candidate.VehicleTypeCode}); err != nil {
			return err
		}
		j.vehicleTypes[candidate.VehicleTypeCode] = true
	}

	return nil
}

// persistTrips writes the route's trips. When the new timetable has the same
// number of trips departing at the same times as the stored one, the stored
// trip identities are kept and the records updated in place. Otherwise the
// old trips are dropped and the new ones inserted fresh.
func (j *ImportJob) persistTrips(ctx context.Context, routeID primitive.ObjectID, trips []*timetable.Trip) error {
	timetable.SortTrips(trips)

	existing, err := j.store.TripsByRoute(ctx, routeID)
	if err != nil {
		return err
	}

	j.Stats.Trips += len(trips)

	if tripIdentitiesMatch(existing, trips) {
		for index, trip := range trips {
			trip.ID = existing[index].ID
		}
		return j.store.UpdateTrips(ctx, trips)
	}

	if err := j.store.DeleteTripsByRoute(ctx, routeID); err != nil {
		return err
	}

	err = j.store.InsertTrips(ctx, trips)
	if j.store.IsDuplicateKey(err) {
		// A partial earlier write can leave trips behind that the route
		// query missed. Clear the route and try once more.
		log.Warn().Str("route", routeID.Hex()).Msg("Trip insert conflict, clearing route and retrying")

		for _, trip := range trips {
			trip.ID = primitive.NilObjectID
		}
		if err := j.store.DeleteTripsByRoute(ctx, routeID); err != nil {
			return err
		}
		err = j.store.InsertTrips(ctx, trips)
	}

	return err
}

func tripIdentitiesMatch(existing []*timetable.Trip, incoming []*timetable.Trip) bool {
	if len(existing) == 0 || len(existing) != len(incoming) {
		return false
	}
	for index := range existing {
		if existing[index].Start != incoming[index].Start {
			return false
		}
	}
	return true
}

// Finish removes this source's records the run did not touch, recomputes the
// derived display fields of every touched service and logs a summary. Other
// sources' records are never affected.
func (j *ImportJob) Finish(ctx context.Context) error {
	deletedRoutes, err := j.store.DeleteRoutesExcept(ctx, j.dataset.Identifier, j.touchedRoutes)
	if err != nil {
		return err
	}
	j.Stats.RoutesDeleted = deletedRoutes

	touchedIDs := make([]primitive.ObjectID, 0, len(j.touchedServices))
	for _, service := range j.touchedServices {
		touchedIDs = append(touchedIDs, service.ID)
	}

	deactivated, err := j.store.DeactivateStaleServices(ctx, j.dataset.Identifier, touchedIDs)
	if err != nil {
		return err
	}
	j.Stats.ServicesDeactivated = deactivated

	for _, service := range j.touchedServices {
		if err := j.updateDerivedFields(ctx, service); err != nil {
			return err
		}
	}

	if len(j.Resolver.Missing) > 0 {
		log.Info().
			Int("count", len(j.Resolver.Missing)).
			Msg("Operators without a match:\n" + pretty.Sprint(j.Resolver.Missing))
	}

	log.Info().
		Int("created", j.Stats.ServicesCreated).
		Int("matched", j.Stats.ServicesMatched).
		Int("deferred", j.Stats.Deferred).
		Int("routes", j.Stats.Routes).
		Int("trips", j.Stats.Trips).
		Int64("routesdeleted", j.Stats.RoutesDeleted).
		Int64("deactivated", j.Stats.ServicesDeactivated).
		Msg("Import finished")

	return nil
}

func (j *ImportJob) updateDerivedFields(ctx context.Context, service *timetable.Service) error {
	trips, err := j.store.TripsByService(ctx, service.ID)
	if err != nil {
		return err
	}

	service.StopUsages = timetable.BuildStopUsages(trips)
	service.SearchVector = buildSearchVector(service)

	if shapes := j.serviceShapes[service.ID.Hex()]; len(shapes) > 0 {
		service.Geometry = &timetable.Geometry{
			Type:        "MultiLineString",
			Coordinates: shapes,
		}
	}

	return j.store.UpdateServiceDerived(ctx, service)
}

// buildSearchVector flattens the service's searchable text into one
// lowercase token string for the text index.
func buildSearchVector(service *timetable.Service) string {
	fields := []string{
		service.LineName,
		service.LineBrand,
		service.Description,
		service.OutboundDescription,
		service.InboundDescription,
		service.ServiceCode,
	}
	fields = append(fields, service.OperatorRefs...)

	var tokens []string
	seen := map[string]bool{}
	for _, field := range fields {
		for _, token := range strings.Fields(strings.ToLower(field)) {
			if !seen[token] {
				seen[token] = true
				tokens = append(tokens, token)
			}
		}
	}

	return strings.Join(tokens, " ")
}
