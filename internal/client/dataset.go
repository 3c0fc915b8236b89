package client

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core"
)

// DatasetSource fetches the bundled read-only dataset.
type DatasetSource interface {
	Load(ctx context.Context) (core.Dataset, error)
}

// FileDataset reads the dataset from disk.
type FileDataset string

func (f FileDataset) Load(context.Context) (core.Dataset, error) {
	ds, err := core.ReadDatasetFile(string(f))
	return ds, errors.Wrap(err, "bundled dataset")
}

// HTTPDataset downloads the dataset once.
type HTTPDataset struct {
	URL    string
	Client *http.Client
}

func (h HTTPDataset) Load(ctx context.Context) (core.Dataset, error) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "bundled dataset")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "bundled dataset")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, errors.Errorf("bundled dataset: %s returned %d", h.URL, resp.StatusCode)
	}
	ds, err := core.LoadDataset(resp.Body)
	return ds, errors.Wrap(err, "bundled dataset")
}

// FirstDataset tries each source in order and returns the first success.
type FirstDataset []DatasetSource

func (f FirstDataset) Load(ctx context.Context) (core.Dataset, error) {
	err := errors.New("bundled dataset: no source configured")
	for _, src := range f {
		var ds core.Dataset
		if ds, err = src.Load(ctx); err == nil {
			return ds, nil
		}
	}
	return nil, err
}
