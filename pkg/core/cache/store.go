// Package cache persists extracted FilingRecords on disk and orchestrates
// cold fetches, refreshes, and the display/calculation read views.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quarterfacts/pkg/core/xbrl"
)

// CachedQuarter describes one persisted quarter file.
type CachedQuarter struct {
	Quarter         string `json:"quarter"`
	Year            int    `json:"year"`
	FilingDate      string `json:"filing_date"`
	FilePath        string `json:"file_path"`
	CachedTimestamp string `json:"cached_timestamp"`
	FileSizeBytes   int64  `json:"file_size_bytes"`
	FactRowsCount   int    `json:"fact_rows_count"`
}

// TickerMeta is the per-ticker metadata file. CachedQuarters holds at most
// MaxQuartersCache entries, newest filing first after any save.
type TickerMeta struct {
	Ticker                 string          `json:"ticker"`
	CompanyName            string          `json:"company_name"`
	LastUpdated            string          `json:"last_updated"`
	CachedQuarters         []CachedQuarter `json:"cached_quarters"`
	TotalQuartersCached    int             `json:"total_quarters_cached"`
	LastFilingCheck        string          `json:"last_filing_check"`
	LatestCachedFilingDate string          `json:"latest_cached_filing_date"`
	TotalFactRows          int             `json:"total_fact_rows"`
}

// CacheIndex is the global index of cached tickers.
type CacheIndex struct {
	Tickers            []string `json:"tickers"`
	TotalTickers       int      `json:"total_tickers"`
	LastGlobalUpdate   string   `json:"last_global_update"`
	CacheFormatVersion string   `json:"cache_format_version"`
}

// Store manages the on-disk cache tree:
//
//	root/cache_index.json
//	root/{TICKER}/metadata.json
//	root/{TICKER}/{year}_{quarter}_multi_row.json
//
// Reads degrade to "absent" on any I/O or decode failure; a quarter file that
// fails to deserialize is deleted so the next cold fetch rebuilds it.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache root: %w", err)
	}
	return &Store{root: dir}, nil
}

// Root returns the cache root directory.
func (s *Store) Root() string { return s.root }

// TickerDir returns the directory for a ticker's cached quarters.
func (s *Store) TickerDir(ticker string) string {
	return filepath.Join(s.root, strings.ToUpper(ticker))
}

// TickerCacheExists reports whether a ticker directory is present. Presence
// alone marks the ticker as cached; there is no TTL.
func (s *Store) TickerCacheExists(ticker string) bool {
	info, err := os.Stat(s.TickerDir(ticker))
	return err == nil && info.IsDir()
}

// QuarterFilename builds the canonical quarter file name. Records without a
// resolved quarter or year fall back to placeholder labels.
func QuarterFilename(record *xbrl.FilingRecord) string {
	quarter := record.Quarter
	if quarter == "" || quarter == "Unknown" {
		quarter = "QX"
	}
	year := record.Year
	if year <= 0 {
		year = time.Now().Year()
	}
	return fmt.Sprintf("%d_%s_multi_row.json", year, quarter)
}

// SaveQuarter writes one quarter record as compact JSON, overwriting any
// existing file for the same key. Returns the file size and fact row count.
func (s *Store) SaveQuarter(ticker, filename string, record *xbrl.FilingRecord) (int64, int, error) {
	dir := s.TickerDir(ticker)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, 0, fmt.Errorf("failed to create ticker dir: %w", err)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to marshal quarter record: %w", err)
	}

	// Write whole-file atomic: temp file in the same dir, then rename.
	path := filepath.Join(dir, filename)
	tmp, err := os.CreateTemp(dir, filename+".tmp*")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, 0, fmt.Errorf("failed to write quarter file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, 0, fmt.Errorf("failed to close quarter file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return 0, 0, fmt.Errorf("failed to commit quarter file: %w", err)
	}

	return int64(len(payload)), record.TotalFactRows, nil
}

// LoadQuarter reads a quarter record. A missing file returns (nil, false); a
// corrupt file is deleted and also reported absent so reads never fail hard.
func (s *Store) LoadQuarter(ticker, filename string) (*xbrl.FilingRecord, bool) {
	path := filepath.Join(s.TickerDir(ticker), filename)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var record xbrl.FilingRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		// Self-heal: drop the corrupt file.
		os.Remove(path)
		return nil, false
	}
	return &record, true
}

// LoadTickerMeta reads a ticker's metadata file, or nil when absent/corrupt.
func (s *Store) LoadTickerMeta(ticker string) *TickerMeta {
	raw, err := os.ReadFile(filepath.Join(s.TickerDir(ticker), "metadata.json"))
	if err != nil {
		return nil
	}
	var meta TickerMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil
	}
	return &meta
}

// SaveTickerMeta writes a ticker's metadata, recomputing the latest filing
// date and total fact rows from the current quarter list on every call.
func (s *Store) SaveTickerMeta(ticker string, meta *TickerMeta) error {
	dir := s.TickerDir(ticker)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create ticker dir: %w", err)
	}

	meta.LatestCachedFilingDate = ""
	meta.TotalFactRows = 0
	meta.TotalQuartersCached = len(meta.CachedQuarters)
	for _, q := range meta.CachedQuarters {
		if q.FilingDate > meta.LatestCachedFilingDate {
			meta.LatestCachedFilingDate = q.FilingDate
		}
		meta.TotalFactRows += q.FactRowsCount
	}

	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ticker metadata: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "metadata.json"), payload, 0644)
}

// LoadIndex reads the global cache index, returning a fresh one when the file
// is absent or corrupt.
func (s *Store) LoadIndex() CacheIndex {
	raw, err := os.ReadFile(filepath.Join(s.root, "cache_index.json"))
	if err == nil {
		var index CacheIndex
		if json.Unmarshal(raw, &index) == nil {
			return index
		}
	}
	return CacheIndex{
		LastGlobalUpdate:   time.Now().Format(time.RFC3339),
		CacheFormatVersion: xbrl.CacheFormatVersion,
	}
}

// SaveIndex writes the global cache index, stamping the current format
// version.
func (s *Store) SaveIndex(index CacheIndex) error {
	index.CacheFormatVersion = xbrl.CacheFormatVersion
	index.TotalTickers = len(index.Tickers)
	payload, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache index: %w", err)
	}
	return os.WriteFile(filepath.Join(s.root, "cache_index.json"), payload, 0644)
}

// AddTickerToIndex registers a ticker in the global index if absent.
func (s *Store) AddTickerToIndex(ticker string) {
	ticker = strings.ToUpper(ticker)
	index := s.LoadIndex()
	for _, t := range index.Tickers {
		if t == ticker {
			return
		}
	}
	index.Tickers = append(index.Tickers, ticker)
	index.LastGlobalUpdate = time.Now().Format(time.RFC3339)
	if err := s.SaveIndex(index); err != nil {
		fmt.Printf("[WARNING] failed to save cache index: %v\n", err)
	}
}

// RemoveTickerFromIndex drops a ticker from the global index.
func (s *Store) RemoveTickerFromIndex(ticker string) {
	ticker = strings.ToUpper(ticker)
	index := s.LoadIndex()
	kept := index.Tickers[:0]
	for _, t := range index.Tickers {
		if t != ticker {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(index.Tickers) {
		return
	}
	index.Tickers = kept
	index.LastGlobalUpdate = time.Now().Format(time.RFC3339)
	if err := s.SaveIndex(index); err != nil {
		fmt.Printf("[WARNING] failed to save cache index: %v\n", err)
	}
}

// DeleteTickerCache removes a ticker's entire directory tree. Used by force
// refresh before re-fetching.
func (s *Store) DeleteTickerCache(ticker string) bool {
	dir := s.TickerDir(ticker)
	if _, err := os.Stat(dir); err != nil {
		return false
	}
	return os.RemoveAll(dir) == nil
}
