package datasets

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/busatlas/busatlas/pkg/util"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

var tndsRegions = []string{"EA", "EM", "L", "NE", "NW", "S", "SE", "SW", "W", "Y"}

// GetRegisteredDataSets returns every known dataset: the built in table
// plus any overrides found under the data directory.
func GetRegisteredDataSets() []DataSet {
	registered := builtinDataSets()

	env := util.GetEnvironmentVariables()
	if dataDir := env["BUSATLAS_DATA_DIR"]; dataDir != "" {
		registered = append(registered, loadDataSetOverrides(filepath.Join(dataDir, "datasources"))...)
	}

	return registered
}

func builtinDataSets() []DataSet {
	datasets := []DataSet{
		{
			Identifier: "gb-dft-bods-transxchange",
			Format:     DataSetFormatTransXChange,
			Provider: Provider{
				Name:    "Department for Transport",
				Website: "https://www.gov.uk/government/organisations/department-for-transport",
			},
			Source:         "https://data.bus-data.dft.gov.uk/timetable/download/bulk_archive",
			CompleteSource: true,
			OperatorScope:  bodsOperatorScope,
		},
		{
			Identifier: "gb-ncsd-coach",
			Format:     DataSetFormatTransXChange,
			Provider: Provider{
				Name:    "National Coach Services Database",
				Website: "https://coachservices.co.uk",
			},
			Source: "https://coachservices.co.uk/NCSD.zip",
		},
		{
			Identifier: "gb-ni-metro",
			Format:     DataSetFormatATCOCIF,
			Provider: Provider{
				Name:    "Translink",
				Website: "https://www.translink.co.uk",
			},
			Source: "https://www.opendatani.gov.uk/metro-timetable.zip",
			Region: "NI",
		},
		{
			Identifier: "gb-ni-ulsterbus",
			Format:     DataSetFormatATCOCIF,
			Provider: Provider{
				Name:    "Translink",
				Website: "https://www.translink.co.uk",
			},
			Source: "https://www.opendatani.gov.uk/ulsterbus-timetable.zip",
			Region: "NI",
		},
		{
			Identifier: "gb-dft-bods-gtfs-schedule",
			Format:     DataSetFormatGTFSSchedule,
			Provider: Provider{
				Name:    "Department for Transport",
				Website: "https://www.gov.uk/government/organisations/department-for-transport",
			},
			Source: "https://data.bus-data.dft.gov.uk/timetable/download/gtfs-file/all",
		},
		{
			Identifier: "gb-dft-bods-gtfs-realtime",
			Format:     DataSetFormatGTFSRealtime,
			Provider: Provider{
				Name:    "Department for Transport",
				Website: "https://www.gov.uk/government/organisations/department-for-transport",
			},
			Source:        "https://data.bus-data.dft.gov.uk/avl/download/gtfsrt",
			LinkedDataset: "gb-dft-bods-gtfs-schedule",
		},
	}

	env := util.GetEnvironmentVariables()

	for _, region := range tndsRegions {
		dataset := DataSet{
			Identifier: "gb-tnds-" + util.Slugify(region),
			Format:     DataSetFormatTransXChange,
			Provider: Provider{
				Name:    "Traveline",
				Website: "https://www.travelinedata.org.uk",
			},
			Source:       "https://ftp.tnds.basemap.co.uk/" + region + ".zip",
			Region:       region,
			SourceScoped: true,
		}
		dataset.SourceAuthentication.Basic.Username = env["BUSATLAS_TNDS_USERNAME"]
		dataset.SourceAuthentication.Basic.Password = env["BUSATLAS_TNDS_PASSWORD"]

		datasets = append(datasets, dataset)
	}

	return datasets
}

// loadDataSetOverrides reads additional dataset definitions from yaml files
// in the given directory. Each file holds a stream of DataSource documents.
func loadDataSetOverrides(directory string) []DataSet {
	var overrides []DataSet

	err := filepath.Walk(directory, func(path string, fileInfo os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fileInfo.IsDir() || filepath.Ext(path) != ".yaml" {
			return nil
		}

		contents, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		decoder := yaml.NewDecoder(bytes.NewReader(contents))
		for {
			var datasource DataSource
			if decoder.Decode(&datasource) != nil {
				break
			}

			for _, dataset := range datasource.Datasets {
				dataset.Identifier = datasource.Identifier + "-" + dataset.Identifier
				dataset.DataSourceRef = datasource.Identifier
				dataset.Provider = datasource.Provider
				if dataset.Region == "" {
					dataset.Region = datasource.Region
				}

				overrides = append(overrides, dataset)
			}
		}

		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		log.Error().Err(err).Str("directory", directory).Msg("Failed to load dataset overrides")
	}

	return overrides
}

// CompleteSourceOperators returns the union of operator scopes of every
// complete source other than the one being imported.
func CompleteSourceOperators(excludeIdentifier string) []string {
	var nocs []string
	seen := map[string]bool{}

	for _, dataset := range GetRegisteredDataSets() {
		if !dataset.CompleteSource || dataset.Identifier == excludeIdentifier {
			continue
		}
		for _, noc := range dataset.OperatorScope {
			if !seen[noc] {
				seen[noc] = true
				nocs = append(nocs, noc)
			}
		}
	}

	return nocs
}
