package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arborlab/phenotrack/internal/circuitbreaker"
)

func stacItem(id, datetime, href string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"properties": {"datetime": %q},
		"assets": {"ndvi": {"href": %q}}
	}`, id, datetime, href)
}

func TestParseBBox(t *testing.T) {
	t.Parallel()

	b, err := ParseBBox("13.0,52.3, 13.8,52.7")
	if err != nil {
		t.Fatal(err)
	}
	if b != (BBox{13.0, 52.3, 13.8, 52.7}) {
		t.Errorf("bbox = %v", b)
	}
	if b.String() != "13,52.3,13.8,52.7" {
		t.Errorf("String() = %q", b.String())
	}

	for _, bad := range []string{"1,2,3", "a,b,c,d", ""} {
		if _, err := ParseBBox(bad); err == nil {
			t.Errorf("ParseBBox(%q) should fail", bad)
		}
	}
}

func TestSearch_Pagination(t *testing.T) {
	t.Parallel()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/search") && r.URL.Query().Get("page") == "":
			fmt.Fprintf(w, `{"features":[%s],"links":[{"rel":"next","href":"%s/search?page=2"}]}`,
				stacItem("item-b", "2020-01-17T00:00:00Z", "https://assets.test/b.tif"), srv.URL)
		case r.URL.Query().Get("page") == "2":
			fmt.Fprintf(w, `{"features":[%s],"links":[]}`,
				stacItem("item-a", "2020-01-01T00:00:00Z", "https://assets.test/a.tif"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	items, err := c.Search(context.Background(), "modis-13Q1-061", 2020, BBox{13, 52, 14, 53})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2 across pages", len(items))
	}
	if items[0].ID != "item-b" || items[1].ID != "item-a" {
		t.Errorf("items = %+v", items)
	}
}

func TestSearch_FailsFastOnMissingNDVIAsset(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"features":[{"id":"broken","properties":{"datetime":"2020-01-01T00:00:00Z"},"assets":{"thumbnail":{"href":"x"}}}],"links":[]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	_, err := c.Search(context.Background(), "col", 2020, BBox{})
	if err == nil || !strings.Contains(err.Error(), `"ndvi"`) {
		t.Errorf("err = %v, want missing ndvi asset failure", err)
	}
}

func TestSearch_FailsOnMissingDatetime(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"features":[{"id":"no-dt","properties":{},"assets":{"ndvi":{"href":"x"}}}],"links":[]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	_, err := c.Search(context.Background(), "col", 2020, BBox{})
	if err == nil || !strings.Contains(err.Error(), "datetime") {
		t.Errorf("err = %v, want missing datetime failure", err)
	}
}

func TestSearch_CachesResults(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprintf(w, `{"features":[%s],"links":[]}`,
			stacItem("item-a", "2020-06-01T00:00:00Z", "https://assets.test/a.tif"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithHTTPClient(srv.Client()), WithSearchCacheTTL(time.Minute))
	ctx := context.Background()
	bbox := BBox{13, 52, 14, 53}

	if _, err := c.Search(ctx, "col", 2020, bbox); err != nil {
		t.Fatal(err)
	}
	// otter applies writes asynchronously; wait briefly.
	time.Sleep(50 * time.Millisecond)
	if _, err := c.Search(ctx, "col", 2020, bbox); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("catalog calls = %d, want 1 (second search should hit the cache)", n)
	}

	// A different year is a different key.
	if _, err := c.Search(ctx, "col", 2021, bbox); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("catalog calls = %d, want 2", n)
	}
}

func TestSearch_BreakerOpensOnFailingCatalog(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithHTTPClient(srv.Client()), WithBreakerOptions(circuitbreaker.Options{
		TripRatio:  0.5,
		MinSamples: 3,
		Window:     10 * time.Second,
		Cooldown:   time.Minute,
	}))
	ctx := context.Background()

	for i := range 3 {
		if _, err := c.Search(ctx, "col", 2020+i, BBox{}); err == nil {
			t.Fatal("search against 502 catalog should fail")
		}
	}

	_, err := c.Search(ctx, "col", 2030, BBox{})
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Errorf("err = %v, want ErrCatalogUnavailable once the breaker opens", err)
	}
}

func TestBuildPlan_DeterministicOrdering(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"features":[%s,%s,%s],"links":[]}`,
			stacItem("z-item", "2020-01-17T00:00:00Z", "https://assets.test/z.tif"),
			stacItem("a-item", "2020-01-17T00:00:00Z", "https://assets.test/a.tif"),
			stacItem("m-item", "2020-01-01T00:00:00Z", "https://assets.test/m.tif"))
	}))
	defer srv.Close()

	planner := NewPlanner(NewClient(srv.URL, WithHTTPClient(srv.Client())), "modis-13Q1-061", nil)
	plan, err := planner.BuildPlan(context.Background(), 2020, BBox{13, 52, 14, 53})
	if err != nil {
		t.Fatal(err)
	}

	want := []struct {
		id  string
		doy int
	}{
		{"m-item", 1},
		{"a-item", 17},
		{"z-item", 17},
	}
	if len(plan.Assets) != len(want) {
		t.Fatalf("assets = %d, want %d", len(plan.Assets), len(want))
	}
	for i, w := range want {
		if plan.Assets[i].ItemID != w.id || plan.Assets[i].DOY != w.doy {
			t.Errorf("assets[%d] = %+v, want id %s doy %d", i, plan.Assets[i], w.id, w.doy)
		}
	}
}

func TestWriteManifest(t *testing.T) {
	t.Parallel()

	plan := &Plan{
		Collection: "modis-13Q1-061",
		Year:       2020,
		BBox:       BBox{13, 52, 14, 53},
		Assets: []AssetRef{
			{ItemID: "item-a", Datetime: "2020-01-01T00:00:00Z", DOY: 1, AssetKey: "ndvi", Href: "https://assets.test/a.tif"},
		},
	}

	path := filepath.Join(t.TempDir(), "manifests", "2020.json")
	if err := plan.WriteManifest(path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got Plan
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Collection != plan.Collection || len(got.Assets) != 1 || got.Assets[0].ItemID != "item-a" {
		t.Errorf("round-tripped plan = %+v", got)
	}
}

func TestVerifyAssets(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		if strings.Contains(r.URL.Path, "gone") {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	planner := NewPlanner(NewClient(srv.URL, WithHTTPClient(srv.Client())), "col", nil)

	good := &Plan{Assets: []AssetRef{
		{ItemID: "a", Href: srv.URL + "/a.tif"},
		{ItemID: "b", Href: srv.URL + "/b.tif"},
	}}
	if err := planner.VerifyAssets(context.Background(), good, 4); err != nil {
		t.Errorf("verify should pass: %v", err)
	}

	bad := &Plan{Assets: []AssetRef{
		{ItemID: "a", Href: srv.URL + "/a.tif"},
		{ItemID: "gone", Href: srv.URL + "/gone.tif"},
	}}
	if err := planner.VerifyAssets(context.Background(), bad, 4); err == nil {
		t.Error("verify should fail for an unreachable asset")
	}
}
