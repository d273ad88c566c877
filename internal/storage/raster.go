package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// RasterStore locates raw raster files for a product and year. It makes no
// promise that a returned path exists; Exists answers that.
type RasterStore interface {
	RawRasterPath(product string, year int) string
	Exists(product string, year int) bool
}

// LocalRasterStore resolves rasters on the local filesystem using the
// layout {dataDir}/raw/{product}/{year}.tif, e.g. data/raw/mcd12q2/2020.tif.
type LocalRasterStore struct {
	dataDir string
}

// NewLocalRasterStore returns a LocalRasterStore rooted at dataDir.
func NewLocalRasterStore(dataDir string) *LocalRasterStore {
	return &LocalRasterStore{dataDir: dataDir}
}

// RawRasterPath returns the expected path for the raw raster.
func (s *LocalRasterStore) RawRasterPath(product string, year int) string {
	return filepath.Join(s.dataDir, "raw", product, fmt.Sprintf("%d.tif", year))
}

// Exists reports whether the raster file is present locally.
func (s *LocalRasterStore) Exists(product string, year int) bool {
	info, err := os.Stat(s.RawRasterPath(product, year))
	return err == nil && !info.IsDir()
}
