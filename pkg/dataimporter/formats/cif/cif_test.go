package cif

import (
	"strings"
	"testing"
	"time"

	"github.com/busatlas/busatlas/pkg/timetable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pad(value string, width int) string {
	for len(value) < width {
		value += " "
	}
	return value[:width]
}

func routeRecord(operator string, lineName string, direction string, description string) string {
	return "QDN" + pad(operator, 4) + pad(lineName, 4) + direction + description
}

func journeyHeader(startDate string, endDate string, days string, direction string) string {
	return "QSN" + pad("MET", 4) + pad("1034", 6) + startDate + endDate + days + strings.Repeat(" ", 28) + direction
}

func exceptionRecord(startDate string, endDate string, operation string) string {
	return "QE" + startDate + endDate + operation
}

func originRecord(stop string, departure string) string {
	return "QO" + pad(stop, 12) + departure + "   T1"
}

func intermediateRecord(stop string, arrival string, departure string, timingStatus string) string {
	return "QI" + pad(stop, 12) + arrival + departure + "B   " + timingStatus
}

func destinationRecord(stop string, arrival string) string {
	return "QT" + pad(stop, 12) + arrival + "   T1"
}

func journeyNote(code string, text string) string {
	return "QN" + pad(code, 5) + text
}

func testFile() string {
	return strings.Join([]string{
		"ATCO-CIF0500",
		routeRecord("MET", "34", "O", "Belfast - Ballymena"),
		routeRecord("MET", "34", "I", "Ballymena - Belfast"),
		journeyHeader("20260105", "20991231", "1111100", "O"),
		exceptionRecord("20260406", "20260406", "0"),
		journeyNote("SCH", "Schooldays only"),
		originRecord("999900000001", "0900"),
		intermediateRecord("999900000002", "0905", "0905", "T1"),
		journeyNote("", "pick up only"),
		intermediateRecord("999900000003", "0910", "0912", "T0"),
		destinationRecord("999900000004", "0920"),
		journeyHeader("20260105", "20991231", "0000001", "I"),
		originRecord("999900000004", "1000"),
		destinationRecord("999900000001", "1030"),
	}, "\n") + "\n"
}

func parseTestFile(t *testing.T, contents string) *AtcoCif {
	t.Helper()

	format := &AtcoCif{}
	require.NoError(t, format.ParseFile(strings.NewReader(contents), "test.cif"))

	return format
}

func TestRouteRecords(t *testing.T) {
	format := parseTestFile(t, testFile())

	candidates := format.Candidates()
	require.Len(t, candidates, 1)

	candidate := candidates[0]
	assert.Equal(t, "34", candidate.LineName)
	assert.Equal(t, "34_MET", candidate.ServiceCode)
	assert.Equal(t, "bus", candidate.Mode)
	assert.Equal(t, "Belfast - Ballymena", candidate.Description)
	assert.Equal(t, "Belfast - Ballymena", candidate.OutboundDescription)
	assert.Equal(t, "Ballymena - Belfast", candidate.InboundDescription)

	require.Len(t, candidate.Operators, 1)
	assert.Equal(t, "MET", candidate.Operators[0].NOC)

	require.Len(t, candidate.Routes, 1)
	assert.Equal(t, "34_MET", candidate.Routes[0].Code)
}

func TestJourneyRecords(t *testing.T) {
	format := parseTestFile(t, testFile())

	routes := format.Candidates()[0].Routes
	require.Len(t, routes, 1)
	require.Len(t, routes[0].Trips, 2)

	trip := routes[0].Trips[0]
	assert.False(t, trip.Inbound)
	assert.Equal(t, 9*time.Hour, trip.Start)
	assert.Equal(t, 9*time.Hour+20*time.Minute, trip.End)
	assert.Equal(t, "999900000004", trip.DestinationRef)

	require.Len(t, trip.Notes, 1)
	assert.Equal(t, "SCH", trip.Notes[0].Code)
	assert.Equal(t, "Schooldays only", trip.Notes[0].Text)

	require.Len(t, trip.StopTimes, 4)
	assert.Equal(t, "999900000001", trip.StopTimes[0].StopRef)
	assert.Equal(t, 9*time.Hour, trip.StopTimes[0].Departure)

	second := trip.StopTimes[1]
	assert.Equal(t, 9*time.Hour+5*time.Minute, second.Arrival)
	assert.Equal(t, timetable.TimingStatusPrincipal, second.TimingStatus)
	assert.True(t, second.PickUp)
	assert.False(t, second.SetDown)

	third := trip.StopTimes[2]
	assert.Equal(t, 9*time.Hour+10*time.Minute, third.Arrival)
	assert.Equal(t, 9*time.Hour+12*time.Minute, third.Departure)
	assert.Equal(t, timetable.TimingStatusOther, third.TimingStatus)
	assert.True(t, third.SetDown)

	for i, stopTime := range trip.StopTimes {
		assert.Equal(t, i, stopTime.Sequence)
	}
}

func TestJourneyCalendar(t *testing.T) {
	format := parseTestFile(t, testFile())

	trips := format.Candidates()[0].Routes[0].Trips
	require.Len(t, trips, 2)

	weekday := trips[0].Calendar
	require.NotNil(t, weekday)
	assert.True(t, weekday.Monday)
	assert.True(t, weekday.Friday)
	assert.False(t, weekday.Saturday)
	assert.False(t, weekday.Sunday)
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), weekday.StartDate)
	assert.Equal(t, time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC), weekday.EndDate)

	require.Len(t, weekday.Dates, 1)
	exception := weekday.Dates[0]
	assert.Equal(t, time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC), exception.StartDate)
	assert.False(t, exception.Operation)

	// Easter Monday is excluded despite the weekday pattern
	assert.False(t, weekday.Allows(time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC), nil))
	assert.True(t, weekday.Allows(time.Date(2026, 4, 7, 0, 0, 0, 0, time.UTC), nil))

	sunday := trips[1].Calendar
	require.NotNil(t, sunday)
	assert.True(t, sunday.Sunday)
	assert.False(t, sunday.Monday)
	assert.True(t, trips[1].Inbound)

	assert.NotEqual(t, weekday.Hash, sunday.Hash)
}

func TestCalendarInterning(t *testing.T) {
	contents := strings.Join([]string{
		routeRecord("MET", "34", "O", "Belfast - Ballymena"),
		journeyHeader("20260105", "20991231", "1111100", "O"),
		originRecord("999900000001", "0900"),
		destinationRecord("999900000002", "0930"),
		journeyHeader("20260105", "20991231", "1111100", "O"),
		originRecord("999900000001", "1000"),
		destinationRecord("999900000002", "1030"),
	}, "\n")

	format := parseTestFile(t, contents)

	trips := format.Candidates()[0].Routes[0].Trips
	require.Len(t, trips, 2)
	assert.Same(t, trips[0].Calendar, trips[1].Calendar)
}

func TestOpenEndedDate(t *testing.T) {
	assert.True(t, parseRecordDate("99999999").IsZero())
	assert.True(t, parseRecordDate("").IsZero())
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), parseRecordDate("20260105"))
}

func TestMalformedLinesIgnored(t *testing.T) {
	format := parseTestFile(t, "QD\nQS\nQO\nQT\nX\n")
	assert.Empty(t, format.Candidates())
}
