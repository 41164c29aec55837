// SEC EDGAR API integration for fetching company filings.
// API Documentation: https://www.sec.gov/developer
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// SEC EDGAR API endpoints
	SECSubmissionsURL  = "https://data.sec.gov/submissions/CIK%s.json"
	SECCompanyFactsURL = "https://data.sec.gov/api/xbrl/companyfacts/CIK%s.json"
	SECTickersURL      = "https://www.sec.gov/files/company_tickers.json"

	// Required User-Agent per SEC guidelines
	DefaultUserAgent = "QuarterFacts/1.0 (contact@example.com)"
)

// =============================================================================
// SEC EDGAR DATA TYPES
// =============================================================================

// SECCompanyInfo represents the top-level company submission response.
type SECCompanyInfo struct {
	CIK     string     `json:"cik"`
	Name    string     `json:"name"`
	Tickers []string   `json:"tickers"`
	Filings SECFilings `json:"filings"`
}

// SECFilings contains recent filing lists.
type SECFilings struct {
	Recent SECRecentFilings `json:"recent"`
}

// SECRecentFilings holds arrays of filing attributes (parallel arrays).
type SECRecentFilings struct {
	AccessionNumber []string `json:"accessionNumber"` // e.g., "0000320193-24-000069"
	FilingDate      []string `json:"filingDate"`      // e.g., "2024-05-03"
	ReportDate      []string `json:"reportDate"`      // Fiscal period end
	Form            []string `json:"form"`            // "10-K", "10-Q", "8-K"
}

// secCompanyFacts is the companyfacts response: taxonomy -> concept -> units.
type secCompanyFacts struct {
	CIK        json.Number                          `json:"cik"`
	EntityName string                               `json:"entityName"`
	Facts      map[string]map[string]secConceptData `json:"facts"`
}

type secConceptData struct {
	Label string                   `json:"label"`
	Units map[string][]secFactUnit `json:"units"`
}

type secFactUnit struct {
	Start string      `json:"start"`
	End   string      `json:"end"`
	Val   json.Number `json:"val"`
	Accn  string      `json:"accn"`
	FY    int         `json:"fy"`
	FP    string      `json:"fp"`
	Form  string      `json:"form"`
	Filed string      `json:"filed"`
}

// factDict is the wire shape of one fact row inside RawFiling.FactsJSON.
type factDict struct {
	Concept      string   `json:"concept"`
	Value        string   `json:"value"`
	NumericValue *float64 `json:"numeric_value,omitempty"`
	PeriodStart  string   `json:"period_start"`
	PeriodEnd    string   `json:"period_end"`
	Instant      string   `json:"instant"`
	UnitRef      string   `json:"unit_ref"`
}

// =============================================================================
// SEC EDGAR CLIENT
// =============================================================================

// EDGARClient implements Fetcher against the live SEC EDGAR API.
type EDGARClient struct {
	httpClient *http.Client
	userAgent  string

	submissionsURL  string
	companyFactsURL string
	tickersURL      string
}

// NewEDGARClient creates a new SEC EDGAR API client. An empty userAgent falls
// back to DefaultUserAgent; SEC rejects requests without one.
func NewEDGARClient(userAgent string) *EDGARClient {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &EDGARClient{
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		userAgent:       userAgent,
		submissionsURL:  SECSubmissionsURL,
		companyFactsURL: SECCompanyFactsURL,
		tickersURL:      SECTickersURL,
	}
}

func (c *EDGARClient) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("SEC API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SEC API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse SEC response: %w", err)
	}
	return nil
}

// LookupCIKByTicker finds the zero-padded CIK for a ticker symbol via the SEC
// ticker mapping file.
func (c *EDGARClient) LookupCIKByTicker(ctx context.Context, ticker string) (string, error) {
	// Response structure: { "0": {"cik_str": 320193, "ticker": "AAPL", "title": "..."}, ... }
	var mapping map[string]struct {
		CIK    int    `json:"cik_str"`
		Ticker string `json:"ticker"`
		Title  string `json:"title"`
	}
	if err := c.getJSON(ctx, c.tickersURL, &mapping); err != nil {
		return "", fmt.Errorf("failed to fetch ticker mapping: %w", err)
	}

	ticker = strings.ToUpper(ticker)
	for _, entry := range mapping {
		if entry.Ticker == ticker {
			return fmt.Sprintf("%010d", entry.CIK), nil
		}
	}
	return "", fmt.Errorf("ticker %s not found in SEC database", ticker)
}

// FetchCompanyInfo retrieves company submission data from SEC EDGAR.
// CIK should be zero-padded to 10 digits; it is padded automatically if not.
func (c *EDGARClient) FetchCompanyInfo(ctx context.Context, cik string) (*SECCompanyInfo, error) {
	cik = fmt.Sprintf("%010s", strings.TrimLeft(cik, "0"))
	var info SECCompanyInfo
	if err := c.getJSON(ctx, fmt.Sprintf(c.submissionsURL, cik), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Fetch implements Fetcher. It resolves the ticker to a CIK, lists the most
// recent 10-Q/10-K filings, and regroups the companyfacts dataset into one
// flat fact array per filing (keyed by accession number).
func (c *EDGARClient) Fetch(ctx context.Context, ticker string, maxFilings int) ([]RawFiling, FetchMeta) {
	meta := newFetchMeta(ticker)
	ticker = strings.ToUpper(ticker)

	cik, err := c.LookupCIKByTicker(ctx, ticker)
	if err != nil {
		meta.Error = err.Error()
		return nil, meta
	}

	info, err := c.FetchCompanyInfo(ctx, cik)
	if err != nil {
		meta.Error = err.Error()
		return nil, meta
	}
	meta.CompanyName = info.Name

	var facts secCompanyFacts
	if err := c.getJSON(ctx, fmt.Sprintf(c.companyFactsURL, cik), &facts); err != nil {
		meta.Error = err.Error()
		return nil, meta
	}

	// Pick the most recent quarterly filings from the submissions index.
	type filingRef struct {
		accession  string
		filingDate string
		form       string
	}
	recent := info.Filings.Recent
	var refs []filingRef
	for i := range recent.AccessionNumber {
		form := recent.Form[i]
		if form != "10-Q" && form != "10-K" {
			continue
		}
		refs = append(refs, filingRef{
			accession:  recent.AccessionNumber[i],
			filingDate: recent.FilingDate[i],
			form:       form,
		})
		if maxFilings > 0 && len(refs) >= maxFilings {
			break
		}
	}
	meta.FilingsFound = len(refs)
	if len(refs) == 0 {
		meta.Error = "no quarterly filings found"
		return nil, meta
	}

	// Group all fact entries by accession number.
	byAccession := make(map[string][]factDict)
	fiscalFocus := make(map[string]secFactUnit)
	for taxonomy, concepts := range facts.Facts {
		for conceptName, data := range concepts {
			concept := taxonomy + ":" + conceptName
			for unitName, entries := range data.Units {
				for _, entry := range entries {
					row := factDict{
						Concept: concept,
						Value:   entry.Val.String(),
						UnitRef: unitName,
					}
					if v, err := entry.Val.Float64(); err == nil {
						val := v
						row.NumericValue = &val
					}
					if entry.Start != "" {
						row.PeriodStart = entry.Start
						row.PeriodEnd = entry.End
					} else {
						// Instant facts carry only an end date.
						row.Instant = entry.End
						row.PeriodEnd = entry.End
					}
					byAccession[entry.Accn] = append(byAccession[entry.Accn], row)
					if entry.FP != "" {
						fiscalFocus[entry.Accn] = entry
					}
				}
			}
		}
	}

	// Build one RawFiling per selected accession.
	var filings []RawFiling
	for _, ref := range refs {
		rows := byAccession[ref.accession]
		if len(rows) == 0 {
			continue
		}
		// companyfacts has no DEI focus concepts; synthesize them from the
		// fy/fp attributes so the extractor can label the quarter.
		if focus, ok := fiscalFocus[ref.accession]; ok {
			rows = append(rows,
				factDict{Concept: "dei:DocumentFiscalPeriodFocus", Value: focus.FP},
				factDict{Concept: "dei:DocumentFiscalYearFocus", Value: strconv.Itoa(focus.FY)},
			)
		}
		payload, err := json.Marshal(rows)
		if err != nil {
			continue
		}
		filings = append(filings, RawFiling{
			Ticker:      ticker,
			FilingDate:  ref.filingDate,
			FormType:    ref.form,
			CompanyName: info.Name,
			FactsJSON:   string(payload),
		})
	}
	meta.SuccessfulExtractions = len(filings)

	if len(filings) == 0 {
		meta.Error = "no usable facts data extracted"
		return nil, meta
	}

	// Most recent first.
	sort.Slice(filings, func(i, j int) bool {
		return filings[i].FilingDate > filings[j].FilingDate
	})
	return filings, meta
}
