package timetable

import "sort"

// TripLess is the total order for trips within a route. The source's own
// sequence wins when both trips carry one, then departure and arrival
// times, then the first stop called at, and finally the record identifier
// so the order is stable even for otherwise identical trips.
func TripLess(a, b *Trip) bool {
	if a.Sequence != 0 && b.Sequence != 0 && a.Sequence != b.Sequence {
		return a.Sequence < b.Sequence
	}
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	if a.End != b.End {
		return a.End < b.End
	}

	aStop := firstStopRef(a.StopTimes)
	bStop := firstStopRef(b.StopTimes)
	if aStop != bStop {
		return aStop < bStop
	}

	return a.ID.Hex() < b.ID.Hex()
}

func firstStopRef(stopTimes []StopTime) string {
	if len(stopTimes) == 0 {
		return ""
	}
	return stopTimes[0].StopRef
}

func SortTrips(trips []*Trip) {
	sort.SliceStable(trips, func(i, j int) bool {
		return TripLess(trips[i], trips[j])
	})
}

// SortStopTimes orders stop calls by their sequence number.
func SortStopTimes(stopTimes []StopTime) {
	sort.SliceStable(stopTimes, func(i, j int) bool {
		return stopTimes[i].Sequence < stopTimes[j].Sequence
	})
}
