package datasets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinDataSets(t *testing.T) {
	registered := GetRegisteredDataSets()

	byIdentifier := map[string]DataSet{}
	for _, dataset := range registered {
		byIdentifier[dataset.Identifier] = dataset
	}

	bods := byIdentifier["gb-dft-bods-transxchange"]
	assert.Equal(t, DataSetFormatTransXChange, bods.Format)
	assert.True(t, bods.CompleteSource)
	// regional imports can only defer to a complete source with a scope
	assert.NotEmpty(t, bods.OperatorScope)
	assert.Contains(t, bods.OperatorScope, "LYNX")

	// so the deferrer sees the scope without any override files
	assert.Contains(t, CompleteSourceOperators("gb-tnds-ea"), "LYNX")
	assert.NotContains(t, CompleteSourceOperators("gb-dft-bods-transxchange"), "LYNX")

	tnds := byIdentifier["gb-tnds-ea"]
	assert.Equal(t, "EA", tnds.Region)
	assert.True(t, tnds.SourceScoped)
	assert.False(t, tnds.CompleteSource)

	realtime := byIdentifier["gb-dft-bods-gtfs-realtime"]
	assert.Equal(t, "gb-dft-bods-gtfs-schedule", realtime.LinkedDataset)

	metro := byIdentifier["gb-ni-metro"]
	assert.Equal(t, DataSetFormatATCOCIF, metro.Format)
	assert.Equal(t, "NI", metro.Region)
}

func TestLoadDataSetOverrides(t *testing.T) {
	directory := t.TempDir()

	contents := `identifier: example
region: EA
provider:
  name: Example Operator
datasets:
  - identifier: timetable
    format: gb-transxchange
    source: https://example.com/timetable.zip
    sourcescoped: true
---
identifier: other
provider:
  name: Other Operator
datasets:
  - identifier: schedule
    format: gtfs-schedule
    source: https://example.com/gtfs.zip
    region: S
`
	require.NoError(t, os.WriteFile(filepath.Join(directory, "example.yaml"), []byte(contents), 0644))

	overrides := loadDataSetOverrides(directory)
	require.Len(t, overrides, 2)

	first := overrides[0]
	assert.Equal(t, "example-timetable", first.Identifier)
	assert.Equal(t, "example", first.DataSourceRef)
	assert.Equal(t, "Example Operator", first.Provider.Name)
	assert.Equal(t, DataSetFormatTransXChange, first.Format)
	assert.Equal(t, "EA", first.Region)
	assert.True(t, first.SourceScoped)

	second := overrides[1]
	assert.Equal(t, "other-schedule", second.Identifier)
	assert.Equal(t, "S", second.Region)
}

func TestLoadDataSetOverridesMissingDirectory(t *testing.T) {
	assert.Empty(t, loadDataSetOverrides(filepath.Join(t.TempDir(), "does-not-exist")))
}
