// Phenoingest plans MODIS NDVI asset downloads from a STAC catalog.
// It writes a deterministic manifest so repeated runs over the same
// catalog contents are byte-identical and diffable.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/dnscache"

	"github.com/arborlab/phenotrack/internal/config"
	"github.com/arborlab/phenotrack/internal/ingest"
	"github.com/arborlab/phenotrack/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/phenotrack.yaml", "path to config file")
	year := flag.Int("year", time.Now().Year()-1, "calendar year to plan")
	bboxStr := flag.String("bbox", "", "bounding box minLon,minLat,maxLon,maxLat")
	out := flag.String("out", "", "manifest output path (default {data_dir}/manifests/{collection}_{year}.json)")
	verify := flag.Bool("verify", true, "HEAD-check every asset href before writing the manifest")
	force := flag.Bool("force", false, "plan even when the raster for this year is already on disk")
	flag.Parse()

	if err := run(*configPath, *year, *bboxStr, *out, *verify, *force); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, year int, bboxStr, out string, verify, force bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if bboxStr == "" {
		return fmt.Errorf("-bbox is required")
	}
	bbox, err := ingest.ParseBBox(bboxStr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	resolver := &dnscache.Resolver{}
	client := ingest.NewClient(cfg.Ingest.STACURL,
		ingest.WithToken(cfg.Ingest.Token),
		ingest.WithSearchCacheTTL(cfg.Ingest.SearchCacheTTL),
		ingest.WithResolver(resolver),
	)

	rasters := storage.NewLocalRasterStore(cfg.Storage.DataDir)
	planner := ingest.NewPlanner(client, cfg.Ingest.Collection, rasters)

	if !force && planner.RasterExists(cfg.Ingest.Collection, year) {
		slog.Info("raster already on disk, nothing to plan",
			"path", rasters.RawRasterPath(cfg.Ingest.Collection, year))
		return nil
	}

	slog.Info("building ingestion plan",
		"collection", cfg.Ingest.Collection, "year", year, "bbox", bbox.String())

	plan, err := planner.BuildPlan(ctx, year, bbox)
	if err != nil {
		return err
	}
	slog.Info("plan assembled", "assets", len(plan.Assets))

	if verify {
		if err := planner.VerifyAssets(ctx, plan, cfg.Ingest.VerifyConcurrency); err != nil {
			return err
		}
		slog.Info("all assets verified")
	}

	if out == "" {
		out = fmt.Sprintf("%s/manifests/%s_%d.json", cfg.Storage.DataDir, cfg.Ingest.Collection, year)
	}
	if err := plan.WriteManifest(out); err != nil {
		return err
	}
	slog.Info("manifest written", "path", out)
	return nil
}
