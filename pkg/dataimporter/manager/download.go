package manager

import (
	"crypto/sha1"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/busatlas/busatlas/pkg/dataimporter/datasets"
	"github.com/busatlas/busatlas/pkg/timetable"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const downloadAttempts = 4

type downloadResult struct {
	Path string
	SHA1 string

	// NotModified is set when the server answered 304 or the archive hashes
	// the same as the last import.
	NotModified bool

	// Cleanup marks temporary files the caller should remove.
	Cleanup bool
}

// downloadDataset fetches the dataset's source into a temporary file,
// retrying transient failures. Local file paths are passed through.
func downloadDataset(dataset *datasets.DataSet, recorded *timetable.DataSource, force bool) (*downloadResult, error) {
	if !isValidURL(dataset.Source) {
		sum, err := hashFile(dataset.Source)
		if err != nil {
			return nil, err
		}
		return &downloadResult{
			Path:        dataset.Source,
			SHA1:        sum,
			NotModified: !force && sum == recorded.SHA1,
		}, nil
	}

	var result *downloadResult

	operation := func() error {
		var err error
		result, err = fetchToTempFile(dataset, recorded, force)
		if err != nil {
			log.Warn().Err(err).Str("source", dataset.Source).Msg("Download failed, retrying")
		}
		return err
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), downloadAttempts)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	if !force && result.SHA1 != "" && result.SHA1 == recorded.SHA1 {
		result.NotModified = true
	}

	return result, nil
}

func fetchToTempFile(dataset *datasets.DataSet, recorded *timetable.DataSource, force bool) (*downloadResult, error) {
	request, err := http.NewRequest(http.MethodGet, dataset.Source, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	// some feeds sit behind CDNs that reject requests without a user agent
	request.Header.Set("user-agent", "curl/7.54.1")

	if !force && !recorded.Datetime.IsZero() {
		request.Header.Set("If-Modified-Since", recorded.Datetime.UTC().Format(http.TimeFormat))
	}

	applyAuthentication(request, dataset)

	client := &http.Client{Timeout: 30 * time.Minute}
	response, err := client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotModified {
		return &downloadResult{NotModified: true}, nil
	}
	if response.StatusCode != http.StatusOK {
		err := fmt.Errorf("download returned status %d", response.StatusCode)
		if response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	tempFile, err := os.CreateTemp(os.TempDir(), "busatlas-import-")
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	defer tempFile.Close()

	hasher := sha1.New()
	if _, err := io.Copy(io.MultiWriter(tempFile, hasher), response.Body); err != nil {
		os.Remove(tempFile.Name())
		return nil, err
	}

	return &downloadResult{
		Path:    tempFile.Name(),
		SHA1:    fmt.Sprintf("%x", hasher.Sum(nil)),
		Cleanup: true,
	}, nil
}

// applyAuthentication decorates the request with whatever credentials the
// dataset carries. A DownloadHandler runs last so it can override anything.
func applyAuthentication(request *http.Request, dataset *datasets.DataSet) {
	auth := dataset.SourceAuthentication

	if len(auth.Query) > 0 {
		query := request.URL.Query()
		for key, value := range auth.Query {
			query.Set(key, value)
		}
		request.URL.RawQuery = query.Encode()
	}

	for key, value := range auth.Header {
		request.Header.Set(key, value)
	}

	if auth.Basic.Username != "" {
		request.SetBasicAuth(auth.Basic.Username, auth.Basic.Password)
	}

	if dataset.DownloadHandler != nil {
		dataset.DownloadHandler(request)
	}
}

func hashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha1.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

func isValidURL(source string) bool {
	parsed, err := url.Parse(source)
	return err == nil && parsed.Scheme != "" && parsed.Host != ""
}
