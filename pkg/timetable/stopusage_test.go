package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tripWithStops(inbound bool, start int, stops ...string) *Trip {
	trip := &Trip{Inbound: inbound, Start: clock(start, 0)}
	for i, stop := range stops {
		trip.StopTimes = append(trip.StopTimes, StopTime{
			StopRef:  stop,
			Sequence: i,
		})
	}
	return trip
}

func stopRefs(usages []StopUsage, direction string) []string {
	var refs []string
	for _, usage := range usages {
		if usage.Direction == direction {
			refs = append(refs, usage.StopRef)
		}
	}
	return refs
}

func TestBuildStopUsagesWidestPattern(t *testing.T) {
	trips := []*Trip{
		// short workings and the full pattern, deliberately out of order
		tripWithStops(false, 9, "a", "c", "e"),
		tripWithStops(false, 7, "a", "b", "c", "d", "e"),
		tripWithStops(false, 11, "c", "d", "e", "f"),
	}

	usages := BuildStopUsages(trips)

	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, stopRefs(usages, "outbound"))
	assert.Empty(t, stopRefs(usages, "inbound"))

	for i, usage := range usages {
		assert.Equal(t, i, usage.Order)
	}
}

func TestBuildStopUsagesDirectionsIndependent(t *testing.T) {
	trips := []*Trip{
		tripWithStops(false, 8, "a", "b", "c"),
		tripWithStops(true, 9, "c", "b", "a"),
	}

	usages := BuildStopUsages(trips)

	assert.Equal(t, []string{"a", "b", "c"}, stopRefs(usages, "outbound"))
	assert.Equal(t, []string{"c", "b", "a"}, stopRefs(usages, "inbound"))
}

func TestBuildStopUsagesTimingStatus(t *testing.T) {
	trip := tripWithStops(false, 8, "a", "b")
	trip.StopTimes[0].TimingStatus = TimingStatusPrincipal
	trip.StopTimes[1].TimingStatus = TimingStatusOther

	usages := BuildStopUsages([]*Trip{trip})

	require.Len(t, usages, 2)
	assert.Equal(t, TimingStatusPrincipal, usages[0].TimingStatus)
	assert.Equal(t, TimingStatusOther, usages[1].TimingStatus)
}

func TestMergeStopSequences(t *testing.T) {
	t.Run("empty sides", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b"}, mergeStopSequences(nil, []string{"a", "b"}))
		assert.Equal(t, []string{"a", "b"}, mergeStopSequences([]string{"a", "b"}, nil))
	})

	t.Run("insertion inside shared pattern", func(t *testing.T) {
		merged := mergeStopSequences([]string{"a", "c", "e"}, []string{"a", "b", "c", "d", "e"})
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, merged)
	})

	t.Run("disjoint tails", func(t *testing.T) {
		merged := mergeStopSequences([]string{"a", "b", "c"}, []string{"b", "c", "d"})
		assert.Equal(t, []string{"a", "b", "c", "d"}, merged)
	})

	t.Run("no duplicates for reordered stops", func(t *testing.T) {
		merged := mergeStopSequences([]string{"a", "b", "c"}, []string{"c", "a"})
		seen := map[string]int{}
		for _, stop := range merged {
			seen[stop]++
		}
		for stop, count := range seen {
			assert.Equal(t, 1, count, stop)
		}
	})
}
