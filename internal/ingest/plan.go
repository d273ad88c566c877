package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/arborlab/phenotrack/internal/storage"
)

// AssetRef is one downloadable NDVI asset in a plan.
type AssetRef struct {
	ItemID   string `json:"item_id"`
	Datetime string `json:"datetime"`
	DOY      int    `json:"doy"`
	AssetKey string `json:"asset_key"`
	Href     string `json:"href"`
}

// Plan is a deterministic download manifest for one collection, year,
// and bounding box. Identical catalog contents always produce an
// identical manifest.
type Plan struct {
	Collection string     `json:"collection"`
	Year       int        `json:"year"`
	BBox       BBox       `json:"bbox"`
	Assets     []AssetRef `json:"assets"`
}

// Planner builds ingestion plans from a STAC catalog. When a raster
// store is attached, products already present locally are skipped.
type Planner struct {
	client     *Client
	collection string
	rasters    storage.RasterStore // optional
}

// NewPlanner returns a Planner for one collection. rasters may be nil.
func NewPlanner(client *Client, collection string, rasters storage.RasterStore) *Planner {
	return &Planner{client: client, collection: collection, rasters: rasters}
}

// BuildPlan searches the catalog and assembles the asset manifest,
// ordered by (day of year, item id) so repeated runs are diffable.
func (p *Planner) BuildPlan(ctx context.Context, year int, bbox BBox) (*Plan, error) {
	items, err := p.client.Search(ctx, p.collection, year, bbox)
	if err != nil {
		return nil, fmt.Errorf("build plan: %w", err)
	}

	assets := make([]AssetRef, 0, len(items))
	for _, item := range items {
		doy, err := dayOfYear(item.Datetime)
		if err != nil {
			return nil, fmt.Errorf("build plan: item %q: %w", item.ID, err)
		}
		assets = append(assets, AssetRef{
			ItemID:   item.ID,
			Datetime: item.Datetime,
			DOY:      doy,
			AssetKey: ndviAssetKey,
			Href:     item.Href,
		})
	}

	sort.Slice(assets, func(i, j int) bool {
		if assets[i].DOY != assets[j].DOY {
			return assets[i].DOY < assets[j].DOY
		}
		return assets[i].ItemID < assets[j].ItemID
	})

	return &Plan{Collection: p.collection, Year: year, BBox: bbox, Assets: assets}, nil
}

// RasterExists reports whether the raw raster for a product/year is
// already on disk, so callers can skip planned downloads.
func (p *Planner) RasterExists(product string, year int) bool {
	return p.rasters != nil && p.rasters.Exists(product, year)
}

// WriteManifest writes the plan as indented JSON, creating parent
// directories as needed.
func (p *Plan) WriteManifest(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// dayOfYear extracts the 1-based day of year from an ISO datetime.
func dayOfYear(iso string) (int, error) {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return 0, fmt.Errorf("parse datetime %q: %w", iso, err)
	}
	return t.YearDay(), nil
}
