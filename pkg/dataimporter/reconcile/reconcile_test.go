package reconcile

import (
	"context"
	"strings"
	"testing"

	"github.com/busatlas/busatlas/pkg/timetable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeStore answers the finder interfaces from in-memory fixtures.
type fakeStore struct {
	services  []*timetable.Service
	operators []*timetable.Operator

	// service id hex -> stops its trips call at
	tripStops map[string][]string
	// service id hex -> stops its usages reference
	usageStops map[string][]string
	// service id hex -> whether it has routes
	hasRoutes map[string]bool
	// service id hex -> service codes on its routes
	routeServiceCodes map[string][]string
}

func (f *fakeStore) ServiceByUniqueCode(_ context.Context, code string) (*timetable.Service, error) {
	for _, service := range f.services {
		if service.ServiceCode == code {
			return service, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ServicesByLineName(_ context.Context, lineName string) ([]*timetable.Service, error) {
	var matched []*timetable.Service
	for _, service := range f.services {
		if strings.EqualFold(service.LineName, lineName) {
			matched = append(matched, service)
		}
	}
	return matched, nil
}

func (f *fakeStore) ServiceBySourceCode(_ context.Context, source string, serviceCode string) (*timetable.Service, error) {
	for _, service := range f.services {
		if service.Source == source && service.ServiceCode == serviceCode {
			return service, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ServiceHasRoutes(_ context.Context, serviceID primitive.ObjectID) (bool, error) {
	return f.hasRoutes[serviceID.Hex()], nil
}

func (f *fakeStore) RouteWithServiceCodeExists(_ context.Context, serviceID primitive.ObjectID, serviceCode string) (bool, error) {
	for _, code := range f.routeServiceCodes[serviceID.Hex()] {
		if code == serviceCode {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ServiceCallsAtStops(_ context.Context, serviceID primitive.ObjectID, stops []string) (bool, error) {
	return overlaps(f.tripStops[serviceID.Hex()], stops), nil
}

func (f *fakeStore) ServiceUsesStops(_ context.Context, serviceID primitive.ObjectID, stops []string) (bool, error) {
	return overlaps(f.usageStops[serviceID.Hex()], stops), nil
}

func (f *fakeStore) OperatorByNOC(_ context.Context, noc string) (*timetable.Operator, error) {
	for _, operator := range f.operators {
		if operator.NOC == noc {
			return operator, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) OperatorsByLicence(_ context.Context, licenceNumber string) ([]*timetable.Operator, error) {
	var matched []*timetable.Operator
	for _, operator := range f.operators {
		if operator.LicenceNumber == licenceNumber {
			matched = append(matched, operator)
		}
	}
	return matched, nil
}

func (f *fakeStore) OperatorsByName(_ context.Context, name string) ([]*timetable.Operator, error) {
	var matched []*timetable.Operator
	for _, operator := range f.operators {
		if strings.EqualFold(operator.Name, name) {
			matched = append(matched, operator)
		}
	}
	return matched, nil
}

func (f *fakeStore) OperatorNOCsByParent(_ context.Context, parent string) ([]string, error) {
	var nocs []string
	for _, operator := range f.operators {
		if operator.Parent == parent {
			nocs = append(nocs, operator.NOC)
		}
	}
	return nocs, nil
}

func overlaps(a []string, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func service(lineName string, serviceCode string, source string, nocs ...string) *timetable.Service {
	return &timetable.Service{
		ID:           primitive.NewObjectID(),
		LineName:     lineName,
		ServiceCode:  serviceCode,
		Source:       source,
		Current:      true,
		OperatorRefs: nocs,
	}
}

func candidateWithStops(lineName string, stops ...string) *timetable.ServiceCandidate {
	trip := &timetable.TripCandidate{}
	for index, stop := range stops {
		trip.StopTimes = append(trip.StopTimes, timetable.StopTime{StopRef: stop, Sequence: index})
	}
	return &timetable.ServiceCandidate{
		LineName: lineName,
		Routes: []*timetable.RouteCandidate{
			{Trips: []*timetable.TripCandidate{trip}},
		},
	}
}

func TestMatcherUniqueCode(t *testing.T) {
	existing := service("134", "PF0000459:134", "bods", "TEST")
	store := &fakeStore{services: []*timetable.Service{existing, service("134", "other", "tnds-ea", "OTHER")}}

	matcher := NewMatcher(store, "bods", false)

	found, err := matcher.Find(context.Background(), &timetable.ServiceCandidate{
		LineName:   "134",
		UniqueCode: "PF0000459:134",
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, existing.ID, found.ID)
}

func TestMatcherLineNameAndOperator(t *testing.T) {
	ours := service("5", "a", "tnds-ea", "TEST")
	theirs := service("5", "b", "tnds-ea", "OTHER")
	store := &fakeStore{services: []*timetable.Service{theirs, ours}}

	matcher := NewMatcher(store, "tnds-ea", false)

	found, err := matcher.Find(context.Background(), &timetable.ServiceCandidate{LineName: "5"}, []string{"TEST"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, ours.ID, found.ID)
}

func TestMatcherStopOverlap(t *testing.T) {
	first := service("5", "a", "tnds-ea", "TEST")
	second := service("5", "b", "tnds-ea", "TEST")
	store := &fakeStore{
		services: []*timetable.Service{first, second},
		tripStops: map[string][]string{
			second.ID.Hex(): {"490002"},
		},
		hasRoutes: map[string]bool{first.ID.Hex(): true, second.ID.Hex(): true},
	}

	matcher := NewMatcher(store, "tnds-ea", false)

	found, err := matcher.Find(context.Background(), candidateWithStops("5", "490002", "490003"), []string{"TEST"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, second.ID, found.ID)
}

func TestMatcherPlaceholderService(t *testing.T) {
	timetabled := service("5", "a", "tnds-ea", "TEST")
	placeholder := service("5", "b", "tnds-ea", "TEST")
	store := &fakeStore{
		services: []*timetable.Service{timetabled, placeholder},
		usageStops: map[string][]string{
			placeholder.ID.Hex(): {"490002"},
		},
		hasRoutes: map[string]bool{timetabled.ID.Hex(): true},
	}

	matcher := NewMatcher(store, "tnds-ea", false)

	found, err := matcher.Find(context.Background(), candidateWithStops("5", "490002"), []string{"TEST"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, placeholder.ID, found.ID)
}

func TestMatcherSourceCodeFallback(t *testing.T) {
	ours := service("5", "ea_21-5-_-y08", "tnds-ea", "TEST")
	store := &fakeStore{services: []*timetable.Service{ours}}

	matcher := NewMatcher(store, "tnds-ea", true)

	found, err := matcher.Find(context.Background(), &timetable.ServiceCandidate{
		LineName:    "five",
		ServiceCode: "ea_21-5-_-y08",
	}, []string{"TEST"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, ours.ID, found.ID)
}

func TestMatcherLineNameAloneNotEnough(t *testing.T) {
	// same line number, different operator, no stops in common: a distinct
	// service that must not be merged
	unrelated := service("134", "sc_11-134-_-y08", "tnds-sc", "OTHER")
	store := &fakeStore{
		services: []*timetable.Service{unrelated},
		tripStops: map[string][]string{
			unrelated.ID.Hex(): {"111111"},
		},
		hasRoutes: map[string]bool{unrelated.ID.Hex(): true},
	}

	matcher := NewMatcher(store, "tnds-ea", true)

	found, err := matcher.Find(context.Background(), candidateWithStops("134", "999999"), []string{"TEST"})
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestMatcherStopOverlapWithoutOperator(t *testing.T) {
	// operators disjoint but the timetables call at the same stop, so it is
	// the same service under a different operator record
	existing := service("134", "a", "tnds-ea", "OTHER")
	store := &fakeStore{
		services: []*timetable.Service{existing},
		tripStops: map[string][]string{
			existing.ID.Hex(): {"490001"},
		},
		hasRoutes: map[string]bool{existing.ID.Hex(): true},
	}

	matcher := NewMatcher(store, "tnds-ea", false)

	found, err := matcher.Find(context.Background(), candidateWithStops("134", "490001"), []string{"TEST"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, existing.ID, found.ID)
}

func TestMatcherNoMatch(t *testing.T) {
	store := &fakeStore{}
	matcher := NewMatcher(store, "tnds-ea", true)

	found, err := matcher.Find(context.Background(), &timetable.ServiceCandidate{LineName: "99"}, nil)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestOperatorResolution(t *testing.T) {
	store := &fakeStore{operators: []*timetable.Operator{
		{NOC: "TEST", Name: "Test Buses", LicenceNumber: "PF0000459"},
		{NOC: "AMBA", Name: "Shared Name"},
		{NOC: "AMBB", Name: "Shared Name"},
		{NOC: "TFLO", Name: "Transport for London"},
	}}

	resolver := NewOperatorResolver(store, "L", "tnds-l")
	ctx := context.Background()

	t.Run("by noc", func(t *testing.T) {
		noc, err := resolver.Resolve(ctx, timetable.OperatorCandidate{NOC: "TEST"})
		require.NoError(t, err)
		assert.Equal(t, "TEST", noc)
	})

	t.Run("by licence", func(t *testing.T) {
		noc, err := resolver.Resolve(ctx, timetable.OperatorCandidate{NOC: "WRONG", LicenceNumber: "PF0000459"})
		require.NoError(t, err)
		assert.Equal(t, "TEST", noc)
	})

	t.Run("by name", func(t *testing.T) {
		noc, err := resolver.Resolve(ctx, timetable.OperatorCandidate{Name: "Test Buses"})
		require.NoError(t, err)
		assert.Equal(t, "TEST", noc)
	})

	t.Run("ambiguous name is a miss", func(t *testing.T) {
		noc, err := resolver.Resolve(ctx, timetable.OperatorCandidate{Name: "Shared Name"})
		require.NoError(t, err)
		assert.Equal(t, "", noc)
	})

	t.Run("regional code table", func(t *testing.T) {
		noc, err := resolver.Resolve(ctx, timetable.OperatorCandidate{Code: "TFL"})
		require.NoError(t, err)
		assert.Equal(t, "TFLO", noc)
	})

	t.Run("missing recorded once", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, timetable.OperatorCandidate{Name: "Nobody"})
		require.NoError(t, err)
		_, err = resolver.Resolve(ctx, timetable.OperatorCandidate{Name: "Nobody"})
		require.NoError(t, err)

		var nobody int
		for _, missing := range resolver.Missing {
			if missing.Name == "Nobody" {
				nobody++
			}
		}
		assert.Equal(t, 1, nobody)
	})
}

func TestDeferral(t *testing.T) {
	store := &fakeStore{operators: []*timetable.Operator{
		{NOC: "CHILD", Parent: "Group"},
		{NOC: "SIBLING", Parent: "Group"},
		{NOC: "SOLO"},
	}}

	ctx := context.Background()

	t.Run("covered operator defers", func(t *testing.T) {
		deferrer := NewDeferrer(store, []string{"SOLO"})
		skip, err := deferrer.ShouldDefer(ctx, []string{"SOLO"})
		require.NoError(t, err)
		assert.True(t, skip)
	})

	t.Run("family coverage defers", func(t *testing.T) {
		deferrer := NewDeferrer(store, []string{"SIBLING"})
		skip, err := deferrer.ShouldDefer(ctx, []string{"CHILD"})
		require.NoError(t, err)
		assert.True(t, skip)
	})

	t.Run("one uncovered operator keeps the service", func(t *testing.T) {
		deferrer := NewDeferrer(store, []string{"SIBLING"})
		skip, err := deferrer.ShouldDefer(ctx, []string{"CHILD", "SOLO"})
		require.NoError(t, err)
		assert.False(t, skip)
	})

	t.Run("no operators never defers", func(t *testing.T) {
		deferrer := NewDeferrer(store, []string{"SIBLING"})
		skip, err := deferrer.ShouldDefer(ctx, nil)
		require.NoError(t, err)
		assert.False(t, skip)
	})
}
