package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"quarterfacts/pkg/core/ingest"
	"quarterfacts/pkg/core/xbrl"
)

const (
	// MaxQuartersCache is how many quarters a cold fetch retains. Three extra
	// beyond the display window so Q4 reconstruction can see prior-year
	// quarters the UI never shows.
	MaxQuartersCache = 15
	// MaxQuartersDisplay caps what display reads return.
	MaxQuartersDisplay = 12
)

// ErrNoUsableQuarters is the only hard error a cold fetch surfaces: nothing
// fetched or nothing extracted cleanly.
var ErrNoUsableQuarters = errors.New("no usable quarters after cold fetch")

// ReadMeta summarizes a read served from the cache.
type ReadMeta struct {
	Ticker              string `json:"ticker"`
	CompanyName         string `json:"company_name"`
	QuartersLoaded      int    `json:"quarters_loaded"`
	TotalQuartersCached int    `json:"total_quarters_cached"`
	LastUpdated         string `json:"last_updated"`
	LatestCachedFiling  string `json:"latest_cached_filing"`
	TotalFactRows       int    `json:"total_fact_rows"`
}

// TickerStats is the per-ticker slice of CacheStats.
type TickerStats struct {
	Quarters           int    `json:"quarters"`
	SizeBytes          int64  `json:"size_bytes"`
	FactRows           int    `json:"fact_rows"`
	LastUpdated        string `json:"last_updated"`
	LatestCachedFiling string `json:"latest_cached_filing"`
}

// CacheStats aggregates the whole cache tree.
type CacheStats struct {
	TotalTickers        int                    `json:"total_tickers"`
	TotalQuartersCached int                    `json:"total_quarters_cached"`
	TotalSizeBytes      int64                  `json:"total_size_bytes"`
	TotalFactRows       int                    `json:"total_fact_rows"`
	CacheFormatVersion  string                 `json:"cache_format_version"`
	CacheDirectory      string                 `json:"cache_directory"`
	TickerStats         map[string]TickerStats `json:"ticker_stats"`
}

// RateLimiter enforces a minimum delay between outbound filing requests via
// a shared, mutex-guarded timestamp gate.
type RateLimiter struct {
	mu    sync.Mutex
	delay time.Duration
	last  time.Time
}

// NewRateLimiter creates a limiter with the given minimum inter-request delay.
func NewRateLimiter(delay time.Duration) *RateLimiter {
	return &RateLimiter{delay: delay}
}

// Wait blocks until the minimum delay since the previous request has passed.
func (r *RateLimiter) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if elapsed := time.Since(r.last); elapsed < r.delay {
		time.Sleep(r.delay - elapsed)
	}
	r.last = time.Now()
}

// Manager is the single entry point callers use. It owns the store, the
// fetcher, and the extractor, and decides when a ticker needs a cold fetch.
type Manager struct {
	store     *Store
	fetcher   ingest.Fetcher
	extractor *xbrl.Extractor
	limiter   *RateLimiter
	archive   *Archive // optional Postgres mirror, may be nil
}

// NewManager wires a manager. archive may be nil to run file-only.
func NewManager(store *Store, fetcher ingest.Fetcher, limiter *RateLimiter, archive *Archive) *Manager {
	if limiter == nil {
		limiter = NewRateLimiter(200 * time.Millisecond)
	}
	return &Manager{
		store:     store,
		fetcher:   fetcher,
		extractor: xbrl.NewExtractor(),
		limiter:   limiter,
		archive:   archive,
	}
}

// Store exposes the underlying store for read-only inspection.
func (m *Manager) Store() *Store { return m.store }

// EnsureCache guarantees a ticker's cache exists. An existing directory is
// assumed fresh; only a missing one triggers a cold fetch. There is no
// TTL-based invalidation.
func (m *Manager) EnsureCache(ctx context.Context, ticker string) error {
	ticker = strings.ToUpper(ticker)
	if m.store.TickerCacheExists(ticker) {
		return nil
	}
	return m.coldFetch(ctx, ticker)
}

// GetDisplayData returns the 12 most recent quarters by filing date plus
// read metadata, cold-fetching first if needed.
func (m *Manager) GetDisplayData(ctx context.Context, ticker string) ([]xbrl.FilingRecord, ReadMeta, error) {
	ticker = strings.ToUpper(ticker)
	if err := m.EnsureCache(ctx, ticker); err != nil {
		return nil, ReadMeta{Ticker: ticker}, err
	}
	records, meta := m.loadAll(ticker)
	if len(records) > MaxQuartersDisplay {
		records = records[:MaxQuartersDisplay]
	}
	meta.QuartersLoaded = len(records)
	return records, meta, nil
}

// GetCalculationData returns every retained quarter (up to 15), bypassing the
// display cap. Q4 reconstruction needs quarters the display view drops.
func (m *Manager) GetCalculationData(ctx context.Context, ticker string) ([]xbrl.FilingRecord, ReadMeta, error) {
	ticker = strings.ToUpper(ticker)
	if err := m.EnsureCache(ctx, ticker); err != nil {
		return nil, ReadMeta{Ticker: ticker}, err
	}
	records, meta := m.loadAll(ticker)
	meta.QuartersLoaded = len(records)
	return records, meta, nil
}

// ForceRefresh deletes a ticker's cache tree and re-runs the cold fetch.
// Returns true when the rebuild produced usable quarters.
func (m *Manager) ForceRefresh(ctx context.Context, ticker string) bool {
	ticker = strings.ToUpper(ticker)
	if m.store.DeleteTickerCache(ticker) {
		fmt.Printf("Deleted cache for %s\n", ticker)
	}
	m.store.RemoveTickerFromIndex(ticker)
	if err := m.coldFetch(ctx, ticker); err != nil {
		fmt.Printf("Refresh failed for %s: %v\n", ticker, err)
		return false
	}
	return true
}

// coldFetch pulls up to MaxQuartersCache filings, extracts each one, and
// persists the successful extractions. Failed extractions are skipped, not
// persisted. On any overall failure nothing remains cached.
func (m *Manager) coldFetch(ctx context.Context, ticker string) error {
	fmt.Printf("Creating cache for %s (%d quarters)\n", ticker, MaxQuartersCache)

	m.limiter.Wait()
	filings, fetchMeta := m.fetcher.Fetch(ctx, ticker, MaxQuartersCache)
	if len(filings) == 0 {
		if fetchMeta.Error != "" {
			fmt.Printf("Fetch for %s returned no filings: %s\n", ticker, fetchMeta.Error)
		}
		return ErrNoUsableQuarters
	}

	// Most recent first.
	sort.Slice(filings, func(i, j int) bool {
		return filings[i].FilingDate > filings[j].FilingDate
	})

	now := time.Now().Format(time.RFC3339)
	meta := &TickerMeta{
		Ticker:          ticker,
		CompanyName:     fetchMeta.CompanyName,
		LastUpdated:     now,
		LastFilingCheck: now,
	}
	if meta.CompanyName == "" {
		meta.CompanyName = ticker + " Corporation"
	}

	for i, raw := range filings {
		fmt.Printf("  Processing %d/%d: %s\n", i+1, len(filings), raw.FilingDate)
		record := m.extractor.Extract(raw)
		if !record.ExtractionSuccess {
			fmt.Printf("    Extraction failed: %d/%d concepts\n", record.ConceptsExtracted, xbrl.ConceptCount)
			continue
		}
		if record.Quarter == "Unknown" || record.Year == 0 {
			record.Quarter, record.Year = xbrl.QuarterFromFilingDate(record.FilingDate)
		}

		filename := QuarterFilename(&record)
		size, rows, err := m.store.SaveQuarter(ticker, filename, &record)
		if err != nil {
			fmt.Printf("    Save failed: %v\n", err)
			continue
		}
		meta.CachedQuarters = append(meta.CachedQuarters, CachedQuarter{
			Quarter:         record.Quarter,
			Year:            record.Year,
			FilingDate:      raw.FilingDate,
			FilePath:        filename,
			CachedTimestamp: time.Now().Format(time.RFC3339),
			FileSizeBytes:   size,
			FactRowsCount:   rows,
		})

		if m.archive != nil {
			if err := m.archive.SaveQuarter(ctx, ticker, &record); err != nil {
				fmt.Printf("    [WARNING] archive mirror failed: %v\n", err)
			}
		}
	}

	if len(meta.CachedQuarters) == 0 {
		// Nothing usable: tear down whatever the loop created so the ticker
		// reads as not cached.
		m.store.DeleteTickerCache(ticker)
		return ErrNoUsableQuarters
	}

	sort.Slice(meta.CachedQuarters, func(i, j int) bool {
		return meta.CachedQuarters[i].FilingDate > meta.CachedQuarters[j].FilingDate
	})
	if len(meta.CachedQuarters) > MaxQuartersCache {
		meta.CachedQuarters = meta.CachedQuarters[:MaxQuartersCache]
	}

	if err := m.store.SaveTickerMeta(ticker, meta); err != nil {
		m.store.DeleteTickerCache(ticker)
		return fmt.Errorf("failed to save ticker metadata: %w", err)
	}
	m.store.AddTickerToIndex(ticker)

	fmt.Printf("  Cache created: %d quarters, %d fact rows\n", len(meta.CachedQuarters), meta.TotalFactRows)
	return nil
}

// loadAll reads every cached quarter for a ticker, sorted by filing date
// descending. Quarters whose files fail to load are simply absent.
func (m *Manager) loadAll(ticker string) ([]xbrl.FilingRecord, ReadMeta) {
	readMeta := ReadMeta{Ticker: ticker}
	meta := m.store.LoadTickerMeta(ticker)
	if meta == nil {
		return nil, readMeta
	}
	readMeta.CompanyName = meta.CompanyName
	readMeta.LastUpdated = meta.LastUpdated
	readMeta.LatestCachedFiling = meta.LatestCachedFilingDate
	readMeta.TotalFactRows = meta.TotalFactRows

	var records []xbrl.FilingRecord
	for _, q := range meta.CachedQuarters {
		if record, ok := m.store.LoadQuarter(ticker, q.FilePath); ok {
			records = append(records, *record)
		}
	}
	// Defensive re-sort: the metadata order is trusted but not assumed.
	sort.Slice(records, func(i, j int) bool {
		return records[i].FilingDate > records[j].FilingDate
	})
	readMeta.TotalQuartersCached = len(records)
	return records, readMeta
}

// Stats walks the index and aggregates cache-wide statistics.
func (m *Manager) Stats() CacheStats {
	index := m.store.LoadIndex()
	stats := CacheStats{
		CacheFormatVersion: index.CacheFormatVersion,
		CacheDirectory:     m.store.Root(),
		TickerStats:        make(map[string]TickerStats),
	}
	for _, ticker := range index.Tickers {
		meta := m.store.LoadTickerMeta(ticker)
		if meta == nil {
			continue
		}
		var size int64
		var rows int
		for _, q := range meta.CachedQuarters {
			size += q.FileSizeBytes
			rows += q.FactRowsCount
		}
		stats.TotalTickers++
		stats.TotalQuartersCached += meta.TotalQuartersCached
		stats.TotalSizeBytes += size
		stats.TotalFactRows += rows
		stats.TickerStats[ticker] = TickerStats{
			Quarters:           meta.TotalQuartersCached,
			SizeBytes:          size,
			FactRows:           rows,
			LastUpdated:        meta.LastUpdated,
			LatestCachedFiling: meta.LatestCachedFilingDate,
		}
	}
	return stats
}
