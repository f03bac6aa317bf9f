package datasets

import "net/http"

// DataSet is one registered feed: where to fetch it, how to parse it, and
// how its records are scoped against other sources.
type DataSet struct {
	Identifier    string
	DataSourceRef string `yaml:"-"`
	Format        DataSetFormat

	Provider Provider

	// Source is the URL the feed is downloaded from.
	Source               string
	SourceAuthentication SourceAuthentication `yaml:"-"`

	// Region is the travel region code for region partitioned schemes,
	// used by the regional operator code tables.
	Region string

	// SourceScoped marks sources whose service codes are stable within the
	// source, enabling the source local fallback match.
	SourceScoped bool

	// CompleteSource marks an authoritative open data source. Legacy
	// sources defer to complete sources for the operators they cover.
	CompleteSource bool
	// OperatorScope lists the operator NOCs a complete source covers.
	OperatorScope []string

	// LinkedDataset names the schedule dataset a realtime feed overlays.
	LinkedDataset string

	DownloadHandler func(*http.Request) `yaml:"-"`
}

type DataSetFormat string

const (
	DataSetFormatTransXChange DataSetFormat = "gb-transxchange"
	DataSetFormatATCOCIF      DataSetFormat = "gb-atco-cif"
	DataSetFormatGTFSSchedule DataSetFormat = "gtfs-schedule"
	DataSetFormatGTFSRealtime DataSetFormat = "gtfs-realtime"
)

type Provider struct {
	Name    string
	Website string
}

type SourceAuthentication struct {
	Query  map[string]string
	Header map[string]string
	Basic  struct {
		Username string
		Password string
	}
}
