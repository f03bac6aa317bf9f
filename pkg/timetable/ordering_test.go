package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func clock(hours, minutes int) time.Duration {
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
}

func TestTripLess(t *testing.T) {
	t.Run("explicit sequence wins", func(t *testing.T) {
		a := &Trip{Sequence: 2, Start: clock(8, 0)}
		b := &Trip{Sequence: 1, Start: clock(9, 0)}

		assert.True(t, TripLess(b, a))
		assert.False(t, TripLess(a, b))
	})

	t.Run("sequence ignored when one side is unset", func(t *testing.T) {
		a := &Trip{Sequence: 5, Start: clock(8, 0)}
		b := &Trip{Start: clock(9, 0)}

		assert.True(t, TripLess(a, b))
	})

	t.Run("start then end then first stop", func(t *testing.T) {
		a := &Trip{Start: clock(8, 0), End: clock(9, 0)}
		b := &Trip{Start: clock(8, 0), End: clock(9, 30)}
		assert.True(t, TripLess(a, b))

		c := &Trip{Start: clock(8, 0), End: clock(9, 0), StopTimes: []StopTime{{StopRef: "1000"}}}
		d := &Trip{Start: clock(8, 0), End: clock(9, 0), StopTimes: []StopTime{{StopRef: "2000"}}}
		assert.True(t, TripLess(c, d))
	})

	t.Run("identifier breaks final ties", func(t *testing.T) {
		a := &Trip{ID: primitive.NewObjectID(), Start: clock(8, 0)}
		b := &Trip{ID: primitive.NewObjectID(), Start: clock(8, 0)}

		assert.NotEqual(t, TripLess(a, b), TripLess(b, a))
	})

	t.Run("journeys past midnight sort after", func(t *testing.T) {
		late := &Trip{Start: clock(25, 10)}
		early := &Trip{Start: clock(5, 0)}

		assert.True(t, TripLess(early, late))
	})
}

func TestSortTrips(t *testing.T) {
	trips := []*Trip{
		{Start: clock(10, 0)},
		{Start: clock(7, 30)},
		{Start: clock(9, 15)},
	}

	SortTrips(trips)

	assert.Equal(t, clock(7, 30), trips[0].Start)
	assert.Equal(t, clock(9, 15), trips[1].Start)
	assert.Equal(t, clock(10, 0), trips[2].Start)
}

func TestSortStopTimes(t *testing.T) {
	stopTimes := []StopTime{
		{StopRef: "c", Sequence: 3},
		{StopRef: "a", Sequence: 1},
		{StopRef: "b", Sequence: 2},
	}

	SortStopTimes(stopTimes)

	assert.Equal(t, "a", stopTimes[0].StopRef)
	assert.Equal(t, "b", stopTimes[1].StopRef)
	assert.Equal(t, "c", stopTimes[2].StopRef)
}
