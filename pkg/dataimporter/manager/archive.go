package manager

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/busatlas/busatlas/pkg/dataimporter/datasets"
	"github.com/busatlas/busatlas/pkg/dataimporter/formats"
	"github.com/busatlas/busatlas/pkg/dataimporter/formats/cif"
	"github.com/busatlas/busatlas/pkg/dataimporter/formats/gtfs"
	"github.com/busatlas/busatlas/pkg/dataimporter/formats/transxchange"
	"github.com/busatlas/busatlas/pkg/timetable"
	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// convertArchive parses the downloaded archive into service candidates.
func convertArchive(dataset *datasets.DataSet, path string) ([]*timetable.ServiceCandidate, error) {
	switch dataset.Format {
	case datasets.DataSetFormatTransXChange:
		return convertTransXChangeArchive(path)
	case datasets.DataSetFormatATCOCIF:
		return convertAtcoCifArchive(path)
	case datasets.DataSetFormatGTFSSchedule:
		return convertGTFSSchedule(path)
	}

	return nil, fmt.Errorf("unrecognised format %s", dataset.Format)
}

// convertTransXChangeArchive parses every document in the archive, one
// parser per file since documents are independent. The coach dataset ships
// an IncludedServices.csv manifest whose descriptions override the
// documents' own; it is loaded before any document is parsed.
func convertTransXChangeArchive(path string) ([]*timetable.ServiceCandidate, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	includedServices := map[string]string{}
	for _, file := range archive.File {
		if filepath.Base(file.Name) == "IncludedServices.csv" {
			includedServices, err = loadIncludedServices(file)
			if err != nil {
				return nil, err
			}
			break
		}
	}

	var mutex sync.Mutex
	var candidates []*timetable.ServiceCandidate

	workers := pool.New().WithMaxGoroutines(runtime.NumCPU())

	for _, file := range archive.File {
		if !strings.HasSuffix(strings.ToLower(file.Name), ".xml") {
			continue
		}

		workers.Go(func() {
			reader, err := file.Open()
			if err != nil {
				log.Error().Err(err).Str("file", file.Name).Msg("Failed to open document")
				return
			}
			defer reader.Close()

			parser := &transxchange.TransXChange{
				IncludedServiceDescriptions: includedServices,
			}
			// a bad document loses that file only, the archive continues
			if err := parser.ParseFile(reader, file.Name); err != nil {
				log.Error().Err(err).Str("file", file.Name).Msg("Failed to parse document")
				return
			}

			mutex.Lock()
			candidates = append(candidates, parser.Candidates()...)
			mutex.Unlock()
		})
	}

	workers.Wait()

	return candidates, nil
}

// convertAtcoCifArchive feeds every CIF file through one parser, so
// identical calendars across files share a record.
func convertAtcoCifArchive(path string) ([]*timetable.ServiceCandidate, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	parser := &cif.AtcoCif{}

	for _, file := range archive.File {
		if !strings.HasSuffix(strings.ToLower(file.Name), ".cif") {
			log.Debug().Str("file", file.Name).Msg("Skipping non CIF file")
			continue
		}

		reader, err := file.Open()
		if err != nil {
			return nil, err
		}

		err = parser.ParseFile(reader, file.Name)
		reader.Close()
		if err != nil {
			log.Error().Err(err).Str("file", file.Name).Msg("Failed to parse CIF file")
		}
	}

	return parser.Candidates(), nil
}

func convertGTFSSchedule(path string) ([]*timetable.ServiceCandidate, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	parser := &gtfs.Schedule{}
	if err := parser.ParseFile(file, path); err != nil {
		return nil, err
	}

	return parser.Candidates(), nil
}

type includedService struct {
	ServiceCode string `csv:"ServiceCode"`
	Description string `csv:"Description"`
}

func loadIncludedServices(file *zip.File) (map[string]string, error) {
	reader, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var rows []*includedService
	if err := gocsv.Unmarshal(reader, &rows); err != nil {
		return nil, err
	}

	descriptions := map[string]string{}
	for _, row := range rows {
		if row.ServiceCode != "" {
			descriptions[row.ServiceCode] = row.Description
		}
	}

	log.Info().Int("services", len(descriptions)).Msg("Loaded included services manifest")
	return descriptions, nil
}

var (
	_ formats.Format = &transxchange.TransXChange{}
	_ formats.Format = &cif.AtcoCif{}
	_ formats.Format = &gtfs.Schedule{}
)
