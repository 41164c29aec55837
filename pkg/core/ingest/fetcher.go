// Package ingest fetches raw quarterly filings from SEC EDGAR and hands them
// to the extractor as flat fact-array JSON.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RawFiling is one retrieved filing: identity plus the flat JSON array of
// fact dicts the extractor consumes. No parsing happens at this layer.
type RawFiling struct {
	Ticker      string `json:"ticker"`
	FilingDate  string `json:"filing_date"`
	FormType    string `json:"form_type"`
	CompanyName string `json:"company_name"`
	FactsJSON   string `json:"facts_json"`
}

// FetchMeta describes the outcome of one fetch batch. A failed fetch returns
// an empty filing slice and a non-empty Error instead of a Go error; callers
// treat that as "no filings available".
type FetchMeta struct {
	Ticker                string `json:"ticker"`
	CompanyName           string `json:"company_name"`
	FilingsFound          int    `json:"filings_found"`
	SuccessfulExtractions int    `json:"successful_extractions"`
	Error                 string `json:"error,omitempty"`
	BatchID               string `json:"batch_id"`
	Timestamp             string `json:"timestamp"`
	DataSource            string `json:"data_source"`
}

// Fetcher retrieves at most maxFilings of the most recent quarterly filings
// for a ticker.
type Fetcher interface {
	Fetch(ctx context.Context, ticker string, maxFilings int) ([]RawFiling, FetchMeta)
}

func newFetchMeta(ticker string) FetchMeta {
	return FetchMeta{
		Ticker:     ticker,
		BatchID:    uuid.NewString(),
		Timestamp:  time.Now().Format(time.RFC3339),
		DataSource: "SEC EDGAR companyfacts",
	}
}
