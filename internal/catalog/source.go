/*
Package catalog provides the item pool the feed ranks from.

A Source yields the current catalog. FileSource reads a JSON array of items,
SampleSource serves the bundled demo catalog and BreakerSource guards any
source with a circuit breaker that serves the last good catalog while the
upstream is failing. Index adds full-text search over a catalog and Filter
narrows one with CEL expressions.
*/
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/khanglvm/reelfeed/internal/model"
)

//go:embed sample.json
var sampleCatalog []byte

// Source yields the current catalog.
type Source interface {
	Items(ctx context.Context) ([]model.Item, error)
}

// StaticSource serves a fixed slice.
type StaticSource []model.Item

// Items returns a copy of the slice.
func (s StaticSource) Items(context.Context) ([]model.Item, error) {
	return append([]model.Item(nil), s...), nil
}

// SampleSource serves the bundled demo catalog.
type SampleSource struct{}

// Items decodes the embedded catalog.
func (SampleSource) Items(context.Context) ([]model.Item, error) {
	return Decode(sampleCatalog)
}

// FileSource reads a JSON array of items from Path on every call.
type FileSource struct {
	Path string
}

// Items reads and decodes the file.
func (s FileSource) Items(ctx context.Context) ([]model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	items, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return items, nil
}

// Decode parses a JSON array of items. Items without an id are dropped and
// duplicate ids keep their first occurrence.
func Decode(data []byte) ([]model.Item, error) {
	var items []model.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	valid := items[:0]
	for _, item := range items {
		if item.ID != "" {
			valid = append(valid, item)
		}
	}
	return model.Dedupe(valid), nil
}

// Encode writes items as an indented JSON array.
func Encode(items []model.Item) ([]byte, error) {
	if items == nil {
		items = []model.Item{}
	}
	return json.MarshalIndent(items, "", "  ")
}

// Open returns a FileSource for path, or SampleSource when path is empty.
func Open(path string) Source {
	if path == "" {
		return SampleSource{}
	}
	return FileSource{Path: path}
}
