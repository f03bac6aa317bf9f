package timetable

// BuildStopUsages folds every trip's calling pattern into one ordered stop
// list per direction. Patterns are merged pairwise so that each trip's own
// stop order is preserved, giving the widest pattern the service runs.
func BuildStopUsages(trips []*Trip) []StopUsage {
	ordered := make([]*Trip, len(trips))
	copy(ordered, trips)
	SortTrips(ordered)

	var outbound, inbound []string
	timingStatus := map[string]string{}

	for _, trip := range ordered {
		var pattern []string
		seen := map[string]bool{}

		for _, stopTime := range trip.StopTimes {
			if seen[stopTime.StopRef] {
				continue
			}
			seen[stopTime.StopRef] = true
			pattern = append(pattern, stopTime.StopRef)

			if _, exists := timingStatus[stopTime.StopRef]; !exists {
				timingStatus[stopTime.StopRef] = stopTime.TimingStatus
			}
		}

		if trip.Inbound {
			inbound = mergeStopSequences(inbound, pattern)
		} else {
			outbound = mergeStopSequences(outbound, pattern)
		}
	}

	var usages []StopUsage
	for order, stopRef := range outbound {
		usages = append(usages, StopUsage{
			StopRef:      stopRef,
			Direction:    "outbound",
			Order:        order,
			TimingStatus: timingStatus[stopRef],
		})
	}
	for order, stopRef := range inbound {
		usages = append(usages, StopUsage{
			StopRef:      stopRef,
			Direction:    "inbound",
			Order:        order,
			TimingStatus: timingStatus[stopRef],
		})
	}

	return usages
}

// mergeStopSequences interleaves two stop sequences around their longest
// common subsequence, so stops unique to either sequence keep their
// position relative to the shared stops.
func mergeStopSequences(a, b []string) []string {
	if len(a) == 0 {
		return append([]string{}, b...)
	}
	if len(b) == 0 {
		return a
	}

	lcs := make([][]int, len(a)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var merged []string
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] == b[j] {
			merged = append(merged, a[i])
			i++
			j++
		} else if lcs[i+1][j] >= lcs[i][j+1] {
			merged = append(merged, a[i])
			i++
		} else {
			merged = append(merged, b[j])
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)

	// Stops shared by both sequences but outside the common subsequence
	// would otherwise appear twice.
	deduped := merged[:0]
	seen := map[string]bool{}
	for _, stopRef := range merged {
		if !seen[stopRef] {
			seen[stopRef] = true
			deduped = append(deduped, stopRef)
		}
	}

	return deduped
}
