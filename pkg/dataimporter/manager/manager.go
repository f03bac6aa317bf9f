package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/busatlas/busatlas/pkg/database"
	"github.com/busatlas/busatlas/pkg/dataimporter/datasets"
	"github.com/busatlas/busatlas/pkg/dataimporter/job"
	"github.com/rs/zerolog/log"
)

func GetDataset(identifier string) (datasets.DataSet, error) {
	for _, dataset := range datasets.GetRegisteredDataSets() {
		if dataset.Identifier == identifier {
			return dataset, nil
		}
	}

	return datasets.DataSet{}, fmt.Errorf("dataset %s is not registered", identifier)
}

// ImportDataset downloads a dataset and imports it. Unchanged archives are
// skipped unless force is set. Schedule imports run inside one database
// transaction, so a failed archive leaves the previous import current.
func ImportDataset(dataset *datasets.DataSet, force bool) error {
	ctx := context.Background()
	store := database.Store{}

	if dataset.Format == datasets.DataSetFormatGTFSRealtime {
		return importRealtime(ctx, store, dataset)
	}

	recorded, err := store.GetDataSource(ctx, dataset.Identifier)
	if err != nil {
		return err
	}

	download, err := downloadDataset(dataset, recorded, force)
	if err != nil {
		return err
	}
	if download.Cleanup {
		defer os.Remove(download.Path)
	}

	if download.NotModified && !force {
		log.Info().Str("dataset", dataset.Identifier).Msg("Archive unchanged since last import")
		return nil
	}

	candidates, err := convertArchive(dataset, download.Path)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return errors.New("archive produced no service candidates")
	}

	log.Info().
		Str("dataset", dataset.Identifier).
		Int("candidates", len(candidates)).
		Msg("Archive converted")

	err = database.WithTransaction(ctx, func(ctx context.Context) error {
		importJob := job.NewImportJob(store, *dataset)

		for _, candidate := range candidates {
			if err := importJob.HandleCandidate(ctx, candidate); err != nil {
				return err
			}
		}

		return importJob.Finish(ctx)
	})
	if err != nil {
		return err
	}

	recorded.URL = dataset.Source
	recorded.SHA1 = download.SHA1
	recorded.Datetime = time.Now()

	return store.SaveDataSource(ctx, recorded)
}
