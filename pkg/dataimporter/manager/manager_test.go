package manager

import (
	"archive/zip"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/busatlas/busatlas/pkg/dataimporter/datasets"
	"github.com/busatlas/busatlas/pkg/timetable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const archiveDocument = `<?xml version="1.0" encoding="utf-8"?>
<TransXChange CreationDateTime="2026-01-05T10:00:00" ModificationDateTime="2026-01-05T10:00:00" SchemaVersion="2.4">
  <JourneyPatternSections>
    <JourneyPatternSection id="JPS1">
      <JourneyPatternTimingLink id="JPTL1">
        <From>
          <StopPointRef>490000001A</StopPointRef>
          <TimingStatus>principalTimingPoint</TimingStatus>
        </From>
        <To>
          <StopPointRef>490000002B</StopPointRef>
          <TimingStatus>principalTimingPoint</TimingStatus>
        </To>
        <RunTime>PT5M</RunTime>
      </JourneyPatternTimingLink>
    </JourneyPatternSection>
  </JourneyPatternSections>
  <Operators>
    <Operator id="O1">
      <NationalOperatorCode>TEST</NationalOperatorCode>
      <OperatorShortName>Test Buses</OperatorShortName>
    </Operator>
  </Operators>
  <Services>
    <Service>
      <ServiceCode>PF0000459:134</ServiceCode>
      <PublicUse>true</PublicUse>
      <Mode>bus</Mode>
      <OperatingPeriod>
        <StartDate>2026-01-05</StartDate>
      </OperatingPeriod>
      <OperatingProfile>
        <RegularDayType>
          <DaysOfWeek><MondayToFriday/></DaysOfWeek>
        </RegularDayType>
      </OperatingProfile>
      <RegisteredOperatorRef>O1</RegisteredOperatorRef>
      <Description>High Street to Station</Description>
      <Lines>
        <Line id="L1">
          <LineName>134</LineName>
        </Line>
      </Lines>
      <StandardService>
        <Origin>High Street</Origin>
        <Destination>Station</Destination>
        <JourneyPattern id="JP1">
          <Direction>outbound</Direction>
          <JourneyPatternSectionRefs>JPS1</JourneyPatternSectionRefs>
        </JourneyPattern>
      </StandardService>
    </Service>
  </Services>
  <VehicleJourneys>
    <VehicleJourney>
      <OperatorRef>O1</OperatorRef>
      <VehicleJourneyCode>VJ1</VehicleJourneyCode>
      <ServiceRef>PF0000459:134</ServiceRef>
      <LineRef>L1</LineRef>
      <JourneyPatternRef>JP1</JourneyPatternRef>
      <DepartureTime>09:00:00</DepartureTime>
    </VehicleJourney>
  </VehicleJourneys>
</TransXChange>`

func writeArchive(t *testing.T, files map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "archive.zip")
	out, err := os.Create(path)
	require.NoError(t, err)

	writer := zip.NewWriter(out)
	for name, contents := range files {
		entry, err := writer.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(contents))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	require.NoError(t, out.Close())

	return path
}

func TestConvertTransXChangeArchive(t *testing.T) {
	path := writeArchive(t, map[string]string{
		"ea_21-134-_-y08-1.xml": archiveDocument,
		"readme.txt":            "not a document",
	})

	candidates, err := convertTransXChangeArchive(path)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	candidate := candidates[0]
	assert.Equal(t, "134", candidate.LineName)
	assert.Equal(t, "PF0000459:134", candidate.UniqueCode)
	require.Len(t, candidate.Routes, 1)
	assert.Equal(t, "ea_21-134-_-y08-1", candidate.Routes[0].Code)
	require.Len(t, candidate.Routes[0].Trips, 1)
}

func TestConvertTransXChangeArchiveIncludedServices(t *testing.T) {
	path := writeArchive(t, map[string]string{
		"NCSD_TXC/doc.xml":     archiveDocument,
		"IncludedServices.csv": "ServiceCode,Description\nPF0000459:134,London to Stansted Airport\n",
	})

	candidates, err := convertTransXChangeArchive(path)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "London to Stansted Airport", candidates[0].Description)
}

func TestConvertArchiveUnknownFormat(t *testing.T) {
	dataset := &datasets.DataSet{Format: "gb-unknown"}
	_, err := convertArchive(dataset, "nowhere.zip")
	assert.Error(t, err)
}

func TestApplyAuthentication(t *testing.T) {
	dataset := &datasets.DataSet{Source: "https://example.com/feed"}
	dataset.SourceAuthentication.Query = map[string]string{"api_key": "secret"}
	dataset.SourceAuthentication.Header = map[string]string{"x-extra": "value"}
	dataset.SourceAuthentication.Basic.Username = "user"
	dataset.SourceAuthentication.Basic.Password = "pass"
	dataset.DownloadHandler = func(r *http.Request) {
		r.Header.Set("x-handled", "yes")
	}

	request, err := http.NewRequest(http.MethodGet, dataset.Source, nil)
	require.NoError(t, err)

	applyAuthentication(request, dataset)

	assert.Equal(t, "secret", request.URL.Query().Get("api_key"))
	assert.Equal(t, "value", request.Header.Get("x-extra"))
	assert.Equal(t, "yes", request.Header.Get("x-handled"))

	username, password, ok := request.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "user", username)
	assert.Equal(t, "pass", password)
}

func TestDownloadDatasetLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.zip")
	require.NoError(t, os.WriteFile(path, []byte("archive bytes"), 0644))

	dataset := &datasets.DataSet{Source: path}

	result, err := downloadDataset(dataset, &timetable.DataSource{}, false)
	require.NoError(t, err)
	assert.Equal(t, path, result.Path)
	assert.NotEmpty(t, result.SHA1)
	assert.False(t, result.NotModified)
	assert.False(t, result.Cleanup)

	// a second run against the recorded hash skips the import
	result, err = downloadDataset(dataset, &timetable.DataSource{SHA1: result.SHA1}, false)
	require.NoError(t, err)
	assert.True(t, result.NotModified)

	// force overrides the hash check
	result, err = downloadDataset(dataset, &timetable.DataSource{SHA1: result.SHA1}, true)
	require.NoError(t, err)
	assert.False(t, result.NotModified)
}

func TestIsValidURL(t *testing.T) {
	assert.True(t, isValidURL("https://example.com/feed.zip"))
	assert.False(t, isValidURL("/var/data/feed.zip"))
	assert.False(t, isValidURL("feed.zip"))
}
