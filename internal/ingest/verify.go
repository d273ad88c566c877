package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"
)

// VerifyAssets issues a HEAD request against every asset href in the
// plan with bounded concurrency, failing on the first unreachable one.
// A plan whose hrefs have expired (signed URLs age out) is useless, so
// this runs before the manifest is handed to the downloader.
func (p *Planner) VerifyAssets(ctx context.Context, plan *Plan, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 8
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, asset := range plan.Assets {
		g.Go(func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodHead, asset.Href, nil)
			if err != nil {
				return fmt.Errorf("verify %s: %w", asset.ItemID, err)
			}
			resp, err := p.client.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("verify %s: %w", asset.ItemID, err)
			}
			resp.Body.Close()
			if resp.StatusCode >= 400 {
				return fmt.Errorf("verify %s: status %d for %s", asset.ItemID, resp.StatusCode, asset.Href)
			}
			slog.Debug("asset reachable", "item", asset.ItemID, "doy", asset.DOY)
			return nil
		})
	}
	return g.Wait()
}
