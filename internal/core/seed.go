package core

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
)

// SeedResult reports how many records were inserted per kind.
// Kinds that already held data are listed in Skipped.
type SeedResult struct {
	Inserted map[string]int
	Skipped  []string
}

// utf8BOM is written by some editors at the start of exported JSON files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadDataset decodes a dataset document: {"income": [...], "expenses": [...]}.
// A leading UTF-8 byte order mark is ignored.
func LoadDataset(r io.Reader) (Dataset, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	var ds Dataset
	if err := json.NewDecoder(br).Decode(&ds); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return ds, nil
}

// ReadDatasetFile loads a dataset from disk.
func ReadDatasetFile(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return LoadDataset(f)
}

// Seed imports a dataset into kinds whose tables are empty.
//
// Unknown kinds and records that fail normalization are skipped and logged.
// Records keep their dataset ids, so seeding twice never duplicates rows.
func (s *Service) Seed(ctx context.Context, ds Dataset) (SeedResult, error) {
	result := SeedResult{Inserted: make(map[string]int)}

	kinds := make([]string, 0, len(ds))
	for kind := range ds {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		def, ok := Get(kind)
		if !ok {
			slog.Warn("seed: skipping unknown kind", "kind", kind)
			continue
		}
		coll := def.Open(s.db)

		n, err := coll.Count(ctx)
		if err != nil {
			return result, fmt.Errorf("seed %s: %w", kind, err)
		}
		if n > 0 {
			result.Skipped = append(result.Skipped, kind)
			continue
		}

		for i, doc := range ds[kind] {
			p, err := ParsePayload(doc)
			if err == nil {
				_, err = coll.Upsert(ctx, p)
			}
			if errors.Is(err, ErrInvalidPayload) {
				slog.Warn("seed: skipping record", "kind", kind, "index", i, "error", err)
				continue
			}
			if err != nil {
				return result, fmt.Errorf("seed %s: %w", kind, err)
			}
			result.Inserted[kind]++
		}
		slog.Info("seeded record kind", "kind", kind, "records", result.Inserted[kind])
	}

	return result, nil
}
