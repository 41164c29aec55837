// Package xbrl turns the raw fact soup of one SEC filing into a typed,
// period-filtered FilingRecord keyed by the 49 universal concepts.
package xbrl

import (
	"strings"
	"time"
)

// FactRow is a single reported XBRL fact with its full context. Period fields
// keep the raw strings from the filing; an empty or "None" value means the
// filing did not report one.
type FactRow struct {
	Concept      string            `json:"concept"`
	Value        string            `json:"value"`
	NumericValue *float64          `json:"numeric_value"`
	ContextRef   string            `json:"context_ref"`
	PeriodStart  string            `json:"period_start"`
	PeriodEnd    string            `json:"period_end"`
	Instant      string            `json:"instant"`
	UnitRef      string            `json:"unit_ref"`
	Decimals     string            `json:"decimals"`
	Dimensions   map[string]string `json:"dimensions,omitempty"`
}

// IsConsolidated reports whether the fact carries no dimension qualifiers.
func (f FactRow) IsConsolidated() bool {
	return len(f.Dimensions) == 0
}

// ConceptBucket holds every fact row that survived filtering for one concept
// within one filing. Order follows the filing's fact order.
type ConceptBucket []FactRow

// FilingRecord is the extraction result for one filing: per-concept buckets
// filtered to a single consensus reporting period, plus extraction metadata.
type FilingRecord struct {
	Ticker      string `json:"ticker"`
	FilingDate  string `json:"filing_date"`
	Quarter     string `json:"quarter"`
	Year        int    `json:"year"`
	CompanyName string `json:"company_name"`

	// Facts maps concept field names (see ConceptTags) to their buckets.
	// Absent keys mean no rows survived for that concept.
	Facts map[string]ConceptBucket `json:"facts"`

	ExtractionTimestamp       string `json:"extraction_timestamp"`
	ConceptsExtracted         int    `json:"concepts_extracted"`
	TotalFactRows             int    `json:"total_fact_rows"`
	ExtractionSuccess         bool   `json:"extraction_success"`
	MostCommonPeriodEnd       string `json:"most_common_period_end"`
	PeriodEndFilteringApplied bool   `json:"period_end_filtering_applied"`
}

// Bucket returns the surviving rows for a concept field name. Missing
// concepts yield an empty bucket.
func (r *FilingRecord) Bucket(field string) ConceptBucket {
	if r.Facts == nil {
		return nil
	}
	return r.Facts[field]
}

// isNullish reports whether a raw period/value string should be treated as
// missing. The upstream serializer writes Python-style sentinels for nulls.
func isNullish(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "None", "null", "N/A", "nan":
		return true
	}
	return false
}

// QuarterFromFilingDate derives a fiscal quarter label and year from a filing
// date when the filing carried no DocumentFiscalPeriodFocus fact. The filing
// month approximates the quarter just reported.
func QuarterFromFilingDate(filingDate string) (string, int) {
	t, err := time.Parse("2006-01-02", filingDate)
	if err != nil {
		return "Unknown", 0
	}
	switch {
	case t.Month() <= 3:
		return "Q1", t.Year()
	case t.Month() <= 6:
		return "Q2", t.Year()
	case t.Month() <= 9:
		return "Q3", t.Year()
	default:
		return "Q4", t.Year()
	}
}
