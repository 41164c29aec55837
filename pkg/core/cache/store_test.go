package cache

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"quarterfacts/pkg/core/xbrl"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func sampleRecord() *xbrl.FilingRecord {
	return &xbrl.FilingRecord{
		Ticker:      "AAPL",
		FilingDate:  "2024-11-01",
		Quarter:     "Q4",
		Year:        2024,
		CompanyName: "Apple Inc.",
		Facts: map[string]xbrl.ConceptBucket{
			"revenues": {
				{Concept: "us-gaap:Revenues", Value: "94930000000", NumericValue: f(94930000000), PeriodStart: "2024-06-30", PeriodEnd: "2024-09-28"},
			},
			"assets_total": {
				{Concept: "us-gaap:Assets", Value: "364980000000", NumericValue: f(364980000000), Instant: "2024-09-28", PeriodEnd: "2024-09-28"},
			},
		},
		ConceptsExtracted:         2,
		TotalFactRows:             2,
		ExtractionSuccess:         true,
		MostCommonPeriodEnd:       "2024-09-28",
		PeriodEndFilteringApplied: true,
		ExtractionTimestamp:       "2024-11-01T12:00:00Z",
	}
}

func f(v float64) *float64 { return &v }

func TestSaveLoadRoundTrip(t *testing.T) {
	store := testStore(t)
	record := sampleRecord()
	filename := QuarterFilename(record)

	size, rows, err := store.SaveQuarter("AAPL", filename, record)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if size <= 0 || rows != 2 {
		t.Errorf("unexpected save result: size=%d rows=%d", size, rows)
	}

	loaded, ok := store.LoadQuarter("AAPL", filename)
	if !ok {
		t.Fatal("expected quarter to load")
	}
	if !reflect.DeepEqual(record, loaded) {
		t.Errorf("round trip mismatch:\nsaved:  %+v\nloaded: %+v", record, loaded)
	}
}

func TestQuarterFilename(t *testing.T) {
	record := sampleRecord()
	if got := QuarterFilename(record); got != "2024_Q4_multi_row.json" {
		t.Errorf("unexpected filename %q", got)
	}
	record.Quarter = "Unknown"
	if got := QuarterFilename(record); got != "2024_QX_multi_row.json" {
		t.Errorf("unexpected fallback filename %q", got)
	}
}

func TestCorruptQuarterSelfHeals(t *testing.T) {
	store := testStore(t)
	record := sampleRecord()
	filename := QuarterFilename(record)
	if _, _, err := store.SaveQuarter("AAPL", filename, record); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Truncate the file to simulate a torn write from an older version.
	path := filepath.Join(store.TickerDir("AAPL"), filename)
	if err := os.WriteFile(path, []byte(`{"ticker": "AAPL", "fac`), 0644); err != nil {
		t.Fatalf("failed to corrupt file: %v", err)
	}

	if _, ok := store.LoadQuarter("AAPL", filename); ok {
		t.Fatal("expected corrupt quarter to be reported absent")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected corrupt file to be deleted")
	}
}

func TestLoadMissingQuarter(t *testing.T) {
	store := testStore(t)
	if _, ok := store.LoadQuarter("AAPL", "2024_Q1_multi_row.json"); ok {
		t.Error("expected missing quarter to be absent")
	}
}

func TestSaveTickerMetaRecomputesAggregates(t *testing.T) {
	store := testStore(t)
	meta := &TickerMeta{
		Ticker:      "AAPL",
		CompanyName: "Apple Inc.",
		CachedQuarters: []CachedQuarter{
			{Quarter: "Q4", Year: 2024, FilingDate: "2024-11-01", FactRowsCount: 120},
			{Quarter: "Q3", Year: 2024, FilingDate: "2024-08-02", FactRowsCount: 110},
		},
		// Stale aggregates that must be recomputed on save.
		LatestCachedFilingDate: "1999-01-01",
		TotalFactRows:          7,
		TotalQuartersCached:    99,
	}
	if err := store.SaveTickerMeta("AAPL", meta); err != nil {
		t.Fatalf("save meta failed: %v", err)
	}

	loaded := store.LoadTickerMeta("AAPL")
	if loaded == nil {
		t.Fatal("expected metadata to load")
	}
	if loaded.LatestCachedFilingDate != "2024-11-01" {
		t.Errorf("latest filing date not recomputed: %q", loaded.LatestCachedFilingDate)
	}
	if loaded.TotalFactRows != 230 {
		t.Errorf("total fact rows not recomputed: %d", loaded.TotalFactRows)
	}
	if loaded.TotalQuartersCached != 2 {
		t.Errorf("quarter count not recomputed: %d", loaded.TotalQuartersCached)
	}
}

func TestIndexAddRemove(t *testing.T) {
	store := testStore(t)

	store.AddTickerToIndex("aapl")
	store.AddTickerToIndex("AAPL") // duplicate, case-insensitive
	store.AddTickerToIndex("MSFT")

	index := store.LoadIndex()
	if len(index.Tickers) != 2 {
		t.Fatalf("expected 2 tickers, got %v", index.Tickers)
	}
	if index.CacheFormatVersion != xbrl.CacheFormatVersion {
		t.Errorf("expected format version %q, got %q", xbrl.CacheFormatVersion, index.CacheFormatVersion)
	}

	store.RemoveTickerFromIndex("AAPL")
	index = store.LoadIndex()
	if len(index.Tickers) != 1 || index.Tickers[0] != "MSFT" {
		t.Errorf("expected only MSFT, got %v", index.Tickers)
	}
}

func TestDeleteTickerCache(t *testing.T) {
	store := testStore(t)
	record := sampleRecord()
	if _, _, err := store.SaveQuarter("AAPL", QuarterFilename(record), record); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !store.TickerCacheExists("AAPL") {
		t.Fatal("expected ticker cache to exist")
	}
	if !store.DeleteTickerCache("AAPL") {
		t.Fatal("expected delete to succeed")
	}
	if store.TickerCacheExists("AAPL") {
		t.Error("expected ticker cache to be gone")
	}
	if store.DeleteTickerCache("AAPL") {
		t.Error("expected second delete to report nothing removed")
	}
}
