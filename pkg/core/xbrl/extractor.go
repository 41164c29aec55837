package xbrl

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	jsonrepair "github.com/RealAlexandreAI/json-repair"

	"quarterfacts/pkg/core/ingest"
)

// MinConceptsForSuccess is the extraction success threshold: at least this
// many of the 49 concepts must yield a surviving fact row.
const MinConceptsForSuccess = 20

// Extractor filters one filing's raw fact soup down to a FilingRecord.
type Extractor struct{}

// NewExtractor creates a new extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract parses a raw filing into a FilingRecord. It never returns an
// error: malformed or empty facts JSON yields a record with
// ExtractionSuccess=false and empty buckets.
func (e *Extractor) Extract(raw ingest.RawFiling) FilingRecord {
	record := FilingRecord{
		Ticker:              raw.Ticker,
		FilingDate:          raw.FilingDate,
		Quarter:             "Unknown",
		CompanyName:         raw.CompanyName,
		Facts:               make(map[string]ConceptBucket),
		ExtractionTimestamp: time.Now().Format(time.RFC3339),
	}

	facts, err := parseFactsJSON(raw.FactsJSON)
	if err != nil || len(facts) == 0 {
		return record
	}

	// Consensus period end: the mode of all non-null end dates across the
	// whole filing. Facts with null period_end stay eligible for buckets.
	consensus := findConsensusPeriodEnd(facts)
	if consensus != "" {
		record.MostCommonPeriodEnd = consensus
		record.PeriodEndFilteringApplied = true
	}

	for _, field := range ConceptFields {
		tag := ConceptTags[field]
		bucket := e.collectConceptRows(facts, tag, consensus)
		if len(bucket) == 0 {
			continue
		}
		record.Facts[field] = bucket
		record.ConceptsExtracted++
		record.TotalFactRows += len(bucket)
	}

	record.Quarter, record.Year = fiscalFocus(&record)
	record.ExtractionSuccess = record.ConceptsExtracted >= MinConceptsForSuccess
	return record
}

// parseFactsJSON decodes the flat fact array, repairing almost-JSON payloads
// before giving up.
func parseFactsJSON(payload string) ([]map[string]interface{}, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, fmt.Errorf("empty facts payload")
	}
	var facts []map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &facts); err == nil {
		return facts, nil
	}
	repaired, err := jsonrepair.RepairJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("facts payload unparsable: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &facts); err != nil {
		return nil, fmt.Errorf("facts payload unparsable after repair: %w", err)
	}
	return facts, nil
}

// collectConceptRows gathers every fact row matching the taxonomy tag whose
// period end reduces to the consensus date or is null. With no consensus,
// all matching rows survive.
func (e *Extractor) collectConceptRows(facts []map[string]interface{}, tag, consensus string) ConceptBucket {
	var bucket ConceptBucket
	for _, fact := range facts {
		if fieldString(fact, "concept") != tag {
			continue
		}
		periodEnd := fieldString(fact, "period_end")
		if consensus != "" && !isNullish(periodEnd) && extractEndDate(periodEnd) != consensus {
			continue
		}
		bucket = append(bucket, FactRow{
			Concept:      tag,
			Value:        fieldString(fact, "value"),
			NumericValue: parseNumericValue(fact),
			ContextRef:   fieldString(fact, "context_ref"),
			PeriodStart:  fieldString(fact, "period_start"),
			PeriodEnd:    periodEnd,
			Instant:      fieldString(fact, "instant"),
			UnitRef:      fieldString(fact, "unit_ref"),
			Decimals:     fieldString(fact, "decimals"),
			Dimensions:   extractDimensions(fact),
		})
	}
	return bucket
}

// findConsensusPeriodEnd returns the most frequent actual end date across the
// filing's facts, or "" when no fact carries a usable date. Ties break to the
// latest date so repeated runs stay deterministic.
func findConsensusPeriodEnd(facts []map[string]interface{}) string {
	counts := make(map[string]int)
	for _, fact := range facts {
		periodEnd := fieldString(fact, "period_end")
		if isNullish(periodEnd) {
			continue
		}
		if date := extractEndDate(periodEnd); date != "" {
			counts[date]++
		}
	}

	best := ""
	bestCount := 0
	for date, count := range counts {
		if count > bestCount || (count == bestCount && date > best) {
			best = date
			bestCount = count
		}
	}
	return best
}

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// extractEndDate reduces a period string to its actual end date. Handles both
// direct dates ("2024-12-31") and underscore-separated duration strings
// ("duration_2024-10-01_2024-12-31" reduces to the last embedded date).
func extractEndDate(periodStr string) string {
	periodStr = strings.TrimSpace(periodStr)
	if isoDatePattern.MatchString(periodStr) {
		return periodStr
	}
	if len(periodStr) > 10 && strings.Contains(periodStr, "_") {
		parts := strings.Split(periodStr, "_")
		for i := len(parts) - 1; i >= 0; i-- {
			if isoDatePattern.MatchString(parts[i]) {
				return parts[i]
			}
		}
	}
	return ""
}

// parseNumericValue probes value-like fields in priority order, stopping at
// the first that parses. Thousands separators are stripped and accounting
// parentheses become negatives.
func parseNumericValue(fact map[string]interface{}) *float64 {
	for _, key := range []string{"numeric_value", "value", "amount"} {
		raw, ok := fact[key]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case float64:
			val := v
			return &val
		case json.Number:
			if f, err := v.Float64(); err == nil {
				val := f
				return &val
			}
		case string:
			if f, ok := parseNumericString(v); ok {
				val := f
				return &val
			}
		}
	}
	return nil
}

var numericPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

func parseNumericString(s string) (float64, bool) {
	clean := strings.TrimSpace(s)
	clean = strings.ReplaceAll(clean, ",", "")
	clean = strings.ReplaceAll(clean, "(", "-")
	clean = strings.ReplaceAll(clean, ")", "")
	if !numericPattern.MatchString(clean) {
		return 0, false
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// extractDimensions pulls axis/member qualifiers out of a fact dict. A nested
// "dimensions" object is copied through; legacy flat layouts keep any column
// whose name mentions a dimension or axis. Nil means consolidated.
func extractDimensions(fact map[string]interface{}) map[string]string {
	dims := make(map[string]string)
	for key, raw := range fact {
		if raw == nil {
			continue
		}
		lower := strings.ToLower(key)
		if lower == "dimensions" {
			if nested, ok := raw.(map[string]interface{}); ok {
				for axis, member := range nested {
					dims[axis] = stringify(member)
				}
			}
			continue
		}
		if strings.Contains(lower, "dimension") || strings.Contains(lower, "axis") {
			dims[key] = stringify(raw)
		}
	}
	if len(dims) == 0 {
		return nil
	}
	return dims
}

// fiscalFocus reads the fiscal quarter and year from the DEI focus buckets.
// An "FY" period focus labels the annual filing as Q4.
func fiscalFocus(record *FilingRecord) (string, int) {
	quarter := "Unknown"
	year := 0

	for _, row := range record.Bucket("dei_document_fiscal_period_focus") {
		v := strings.TrimSpace(row.Value)
		if v == "" || isNullish(v) {
			continue
		}
		quarter = v
		if quarter == "FY" {
			quarter = "Q4"
		}
		break
	}

	for _, row := range record.Bucket("dei_document_fiscal_year_focus") {
		if row.NumericValue != nil {
			year = int(*row.NumericValue)
			break
		}
		v := strings.TrimSpace(row.Value)
		if n, err := strconv.Atoi(v); err == nil {
			year = n
			break
		}
	}

	return quarter, year
}

func fieldString(fact map[string]interface{}, key string) string {
	raw, ok := fact[key]
	if !ok || raw == nil {
		return ""
	}
	return stringify(raw)
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
