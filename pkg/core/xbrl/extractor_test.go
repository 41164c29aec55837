package xbrl

import (
	"encoding/json"
	"testing"

	"quarterfacts/pkg/core/ingest"
)

func factsJSON(t *testing.T, facts []map[string]interface{}) string {
	t.Helper()
	payload, err := json.Marshal(facts)
	if err != nil {
		t.Fatalf("failed to marshal test facts: %v", err)
	}
	return string(payload)
}

func rawFiling(t *testing.T, facts []map[string]interface{}) ingest.RawFiling {
	return ingest.RawFiling{
		Ticker:      "TEST",
		FilingDate:  "2024-11-01",
		CompanyName: "Test Corp",
		FactsJSON:   factsJSON(t, facts),
	}
}

func TestConsensusPeriodEndIsMode(t *testing.T) {
	facts := []map[string]interface{}{
		{"concept": "us-gaap:Revenues", "value": "100", "period_end": "2024-09-30"},
		{"concept": "us-gaap:Revenues", "value": "90", "period_end": "2024-09-30"},
		{"concept": "us-gaap:Assets", "value": "500", "period_end": "2024-09-30"},
		{"concept": "us-gaap:Assets", "value": "480", "period_end": "2023-09-30"},
		{"concept": "us-gaap:NetIncomeLoss", "value": "10", "period_end": nil},
	}
	record := NewExtractor().Extract(rawFiling(t, facts))

	if record.MostCommonPeriodEnd != "2024-09-30" {
		t.Errorf("expected consensus 2024-09-30, got %q", record.MostCommonPeriodEnd)
	}
	if !record.PeriodEndFilteringApplied {
		t.Error("expected filtering to be applied")
	}
}

func TestConsensusHandlesDurationStrings(t *testing.T) {
	facts := []map[string]interface{}{
		{"concept": "us-gaap:Revenues", "value": "100", "period_end": "duration_2024-07-01_2024-09-30"},
		{"concept": "us-gaap:Revenues", "value": "400", "period_end": "duration_2024-01-01_2024-09-30"},
		{"concept": "us-gaap:Assets", "value": "500", "period_end": "2024-09-30"},
	}
	record := NewExtractor().Extract(rawFiling(t, facts))

	// All three reduce to the same actual end date.
	if record.MostCommonPeriodEnd != "2024-09-30" {
		t.Errorf("expected consensus 2024-09-30, got %q", record.MostCommonPeriodEnd)
	}
	if got := len(record.Bucket("revenues")); got != 2 {
		t.Errorf("expected both duration revenue rows retained, got %d", got)
	}
}

func TestFilteringKeepsOnlyConsensusOrNull(t *testing.T) {
	facts := []map[string]interface{}{
		{"concept": "us-gaap:Revenues", "value": "100", "period_end": "2024-09-30"},
		{"concept": "us-gaap:Revenues", "value": "95", "period_end": "2024-09-30"},
		{"concept": "us-gaap:Revenues", "value": "380", "period_end": "2023-09-30"},
		{"concept": "us-gaap:Revenues", "value": "50", "period_end": ""},
		{"concept": "us-gaap:Revenues", "value": "60", "period_end": "None"},
		{"concept": "us-gaap:Assets", "value": "500", "period_end": "2024-09-30"},
	}
	record := NewExtractor().Extract(rawFiling(t, facts))

	bucket := record.Bucket("revenues")
	if len(bucket) != 4 {
		t.Fatalf("expected 4 surviving revenue rows (2 consensus + 2 null), got %d", len(bucket))
	}
	for _, row := range bucket {
		if !isNullish(row.PeriodEnd) && extractEndDate(row.PeriodEnd) != record.MostCommonPeriodEnd {
			t.Errorf("retained row with period_end %q disagrees with consensus %q", row.PeriodEnd, record.MostCommonPeriodEnd)
		}
	}
}

func TestNoValidPeriodEndSkipsFiltering(t *testing.T) {
	facts := []map[string]interface{}{
		{"concept": "us-gaap:Revenues", "value": "100", "period_end": nil},
		{"concept": "us-gaap:Revenues", "value": "90", "period_end": ""},
		{"concept": "us-gaap:Assets", "value": "500", "period_end": "garbage"},
	}
	record := NewExtractor().Extract(rawFiling(t, facts))

	if record.PeriodEndFilteringApplied {
		t.Error("expected no filtering when no fact has a valid end date")
	}
	if got := len(record.Bucket("revenues")); got != 2 {
		t.Errorf("expected all revenue rows retained, got %d", got)
	}
	if got := len(record.Bucket("assets_total")); got != 1 {
		t.Errorf("expected the unparsable-period asset row retained, got %d", got)
	}
}

func TestMalformedFactsNeverError(t *testing.T) {
	for _, payload := range []string{"", "   ", "<<<<", `{"not": "an array"}`} {
		record := NewExtractor().Extract(ingest.RawFiling{Ticker: "TEST", FilingDate: "2024-11-01", FactsJSON: payload})
		if record.ExtractionSuccess {
			t.Errorf("payload %q: expected extraction failure", payload)
		}
		if record.TotalFactRows != 0 {
			t.Errorf("payload %q: expected empty buckets, got %d rows", payload, record.TotalFactRows)
		}
	}
}

func TestNumericParsing(t *testing.T) {
	cases := []struct {
		fact map[string]interface{}
		want *float64
	}{
		{map[string]interface{}{"numeric_value": 1234.5}, f(1234.5)},
		{map[string]interface{}{"value": "1,234,567"}, f(1234567)},
		{map[string]interface{}{"value": "(1,500)"}, f(-1500)},
		{map[string]interface{}{"value": "12.75"}, f(12.75)},
		{map[string]interface{}{"value": "not a number"}, nil},
		{map[string]interface{}{"amount": "42"}, f(42)},
		{map[string]interface{}{}, nil},
		// numeric_value wins over value
		{map[string]interface{}{"numeric_value": 10.0, "value": "99"}, f(10)},
	}
	for i, tc := range cases {
		got := parseNumericValue(tc.fact)
		switch {
		case tc.want == nil && got != nil:
			t.Errorf("case %d: expected nil, got %v", i, *got)
		case tc.want != nil && got == nil:
			t.Errorf("case %d: expected %v, got nil", i, *tc.want)
		case tc.want != nil && got != nil && *got != *tc.want:
			t.Errorf("case %d: expected %v, got %v", i, *tc.want, *got)
		}
	}
}

func f(v float64) *float64 { return &v }

func TestExtractEndDate(t *testing.T) {
	cases := map[string]string{
		"2024-12-31":                        "2024-12-31",
		"duration_2024-01-01_2024-12-31":    "2024-12-31",
		"duration_2024-10-01_2024-12-31":    "2024-12-31",
		"instant_2024-12-31":                "2024-12-31",
		"":                                  "",
		"invalid_format":                    "",
		"2024-12-31 extra trailing garbage": "",
	}
	for in, want := range cases {
		if got := extractEndDate(in); got != want {
			t.Errorf("extractEndDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFiscalFocusFYBecomesQ4(t *testing.T) {
	facts := []map[string]interface{}{
		{"concept": "dei:DocumentFiscalPeriodFocus", "value": "FY"},
		{"concept": "dei:DocumentFiscalYearFocus", "value": "2024"},
		{"concept": "us-gaap:Revenues", "value": "100", "period_end": "2024-09-30"},
	}
	record := NewExtractor().Extract(rawFiling(t, facts))

	if record.Quarter != "Q4" {
		t.Errorf("expected FY to map to Q4, got %q", record.Quarter)
	}
	if record.Year != 2024 {
		t.Errorf("expected year 2024, got %d", record.Year)
	}
}

func TestExtractionSuccessThreshold(t *testing.T) {
	// 19 concepts populated: one short of the threshold.
	var facts []map[string]interface{}
	added := 0
	for _, field := range ConceptFields {
		if added >= MinConceptsForSuccess-1 {
			break
		}
		facts = append(facts, map[string]interface{}{
			"concept": ConceptTags[field], "value": "1", "period_end": "2024-09-30",
		})
		added++
	}
	record := NewExtractor().Extract(rawFiling(t, facts))
	if record.ExtractionSuccess {
		t.Errorf("expected failure with %d concepts", record.ConceptsExtracted)
	}

	// One more concept crosses the threshold.
	facts = append(facts, map[string]interface{}{
		"concept": ConceptTags[ConceptFields[added]], "value": "1", "period_end": "2024-09-30",
	})
	record = NewExtractor().Extract(rawFiling(t, facts))
	if !record.ExtractionSuccess {
		t.Errorf("expected success with %d concepts", record.ConceptsExtracted)
	}
}

func TestDimensionsCaptured(t *testing.T) {
	facts := []map[string]interface{}{
		{
			"concept": "us-gaap:Revenues", "value": "40", "period_end": "2024-09-30",
			"dimensions": map[string]interface{}{"us-gaap:StatementBusinessSegmentsAxis": "ProductMember"},
		},
		{"concept": "us-gaap:Revenues", "value": "100", "period_end": "2024-09-30"},
	}
	record := NewExtractor().Extract(rawFiling(t, facts))

	bucket := record.Bucket("revenues")
	if len(bucket) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(bucket))
	}
	var consolidated, dimensioned int
	for _, row := range bucket {
		if row.IsConsolidated() {
			consolidated++
		} else {
			dimensioned++
		}
	}
	if consolidated != 1 || dimensioned != 1 {
		t.Errorf("expected 1 consolidated + 1 dimensioned, got %d/%d", consolidated, dimensioned)
	}
}

func TestQuarterFromFilingDate(t *testing.T) {
	cases := []struct {
		date    string
		quarter string
		year    int
	}{
		{"2024-02-10", "Q1", 2024},
		{"2024-05-03", "Q2", 2024},
		{"2024-08-15", "Q3", 2024},
		{"2024-11-01", "Q4", 2024},
		{"not-a-date", "Unknown", 0},
	}
	for _, tc := range cases {
		q, y := QuarterFromFilingDate(tc.date)
		if q != tc.quarter || y != tc.year {
			t.Errorf("QuarterFromFilingDate(%q) = %s/%d, want %s/%d", tc.date, q, y, tc.quarter, tc.year)
		}
	}
}
