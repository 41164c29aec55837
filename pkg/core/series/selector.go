// Package series resolves one trustworthy numeric value per quarter from the
// ambiguous candidate fact rows a filing retains, and reconstructs missing
// fourth quarters from annual totals.
package series

import (
	"fmt"
	"strings"
	"time"

	"quarterfacts/pkg/core/xbrl"
)

// Period classifications. A reporting span under 120 days is one quarter;
// anything longer is treated as a cumulative annual figure.
const (
	PeriodQuarterly = "quarterly"
	PeriodAnnual    = "annual"
	PeriodUnknown   = "unknown"

	quarterlyMaxDays = 120
)

// ResolvedValue is the selector's verdict for one concept in one quarter.
// SelectionMethod records the full path taken, for auditing selections that
// later look wrong.
type ResolvedValue struct {
	Quarter              string  `json:"quarter"`
	Value                float64 `json:"value"`
	Concept              string  `json:"concept"`
	SelectionMethod      string  `json:"selection_method"`
	PeriodClassification string  `json:"period_classification"`
	PeriodDays           int     `json:"period_days"`
	NeedsQ4Calculation   bool    `json:"needs_q4_calculation"`
}

type classifiedFact struct {
	value          float64
	days           int
	classification string
	consolidated   bool
}

// SelectValue resolves the single numeric value for an economic quantity
// reported under up to two alternative concept tags. Within each tag the best
// candidate wins by rank; between tags the numerically larger winner is
// taken (an empirical heuristic: the broader total is almost always the
// larger figure). Returns nil when neither tag yields a usable value.
func SelectValue(primary, secondary xbrl.ConceptBucket, primaryName, secondaryName, quarter string) *ResolvedValue {
	val1, method1, class1, days1, ok1 := selectBest(primary)
	val2, method2, class2, days2, ok2 := selectBest(secondary)

	var resolved *ResolvedValue
	switch {
	case ok1 && ok2:
		if val1 >= val2 {
			resolved = &ResolvedValue{Value: val1, Concept: primaryName,
				SelectionMethod: "concept1_larger_" + method1, PeriodClassification: class1, PeriodDays: days1}
		} else {
			resolved = &ResolvedValue{Value: val2, Concept: secondaryName,
				SelectionMethod: "concept2_larger_" + method2, PeriodClassification: class2, PeriodDays: days2}
		}
	case ok1:
		resolved = &ResolvedValue{Value: val1, Concept: primaryName,
			SelectionMethod: "concept1_only_" + method1, PeriodClassification: class1, PeriodDays: days1}
	case ok2:
		resolved = &ResolvedValue{Value: val2, Concept: secondaryName,
			SelectionMethod: "concept2_only_" + method2, PeriodClassification: class2, PeriodDays: days2}
	default:
		return nil
	}

	resolved.Quarter = quarter
	// An annual figure labeled Q4 is the cumulative fiscal-year total; the
	// actual fourth quarter must be derived by subtraction.
	resolved.NeedsQ4Calculation = resolved.PeriodClassification == PeriodAnnual && quarter == "Q4"
	return resolved
}

// selectBest picks the winning candidate within one concept's rows:
//  1. Re-filter to the bucket's own most common period_end.
//  2. Classify each row's period length.
//  3. Rank consolidated before dimensioned, quarterly before annual before
//     unknown; break ties by larger value.
func selectBest(bucket xbrl.ConceptBucket) (float64, string, string, int, bool) {
	if len(bucket) == 0 {
		return 0, "no_facts", PeriodUnknown, 0, false
	}

	consensus := bucketConsensusPeriodEnd(bucket)
	if consensus == "" {
		return 0, "no_valid_period_end", PeriodUnknown, 0, false
	}

	var candidates []classifiedFact
	for _, row := range bucket {
		if strings.TrimSpace(row.PeriodEnd) != consensus {
			continue
		}
		if row.NumericValue == nil || *row.NumericValue <= 0 {
			continue
		}
		days := periodDays(row.PeriodStart, row.PeriodEnd)
		candidates = append(candidates, classifiedFact{
			value:          *row.NumericValue,
			days:           days,
			classification: classifyPeriod(days),
			consolidated:   row.IsConsolidated(),
		})
	}
	if len(candidates) == 0 {
		return 0, "no_valid_values_after_filter", PeriodUnknown, 0, false
	}

	for _, tier := range []struct {
		label        string
		consolidated bool
		class        string
	}{
		{"quarterly_consolidated", true, PeriodQuarterly},
		{"annual_consolidated", true, PeriodAnnual},
		{"consolidated_unknown_period", true, PeriodUnknown},
		{"quarterly_with_dimensions", false, PeriodQuarterly},
		{"annual_with_dimensions", false, PeriodAnnual},
		{"dimensioned_unknown_period", false, PeriodUnknown},
	} {
		var tierFacts []classifiedFact
		for _, c := range candidates {
			if c.consolidated == tier.consolidated && c.classification == tier.class {
				tierFacts = append(tierFacts, c)
			}
		}
		if len(tierFacts) == 0 {
			continue
		}
		best := tierFacts[0]
		for _, c := range tierFacts[1:] {
			if c.value > best.value {
				best = c
			}
		}
		method := fmt.Sprintf("%s_filtered_of_%d", tier.label, len(tierFacts))
		return best.value, method, best.classification, best.days, true
	}

	// Unreachable: every candidate falls in exactly one tier.
	return 0, "no_tier_matched", PeriodUnknown, 0, false
}

// bucketConsensusPeriodEnd recomputes a local period_end mode over one
// concept's rows. Extractor-level filtering already aligned most rows, but a
// bucket can still mix the consensus date with null-period rows.
func bucketConsensusPeriodEnd(bucket xbrl.ConceptBucket) string {
	counts := make(map[string]int)
	for _, row := range bucket {
		end := strings.TrimSpace(row.PeriodEnd)
		if end == "" || end == "None" {
			continue
		}
		counts[end]++
	}
	best := ""
	bestCount := 0
	for end, count := range counts {
		if count > bestCount || (count == bestCount && end > best) {
			best = end
			bestCount = count
		}
	}
	return best
}

func classifyPeriod(days int) string {
	switch {
	case days > 0 && days < quarterlyMaxDays:
		return PeriodQuarterly
	case days >= quarterlyMaxDays:
		return PeriodAnnual
	default:
		return PeriodUnknown
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"2006-01-02 15:04:05",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// periodDays returns the span of a reporting period in days, or 0 when
// either bound is missing or unparsable.
func periodDays(start, end string) int {
	s, ok1 := parseDate(start)
	e, ok2 := parseDate(end)
	if !ok1 || !ok2 {
		return 0
	}
	return int(e.Sub(s).Hours() / 24)
}
