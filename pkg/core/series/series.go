package series

import "quarterfacts/pkg/core/xbrl"

// RevenueConcepts are the two alternative tags companies report revenue
// under: the legacy catch-all and the newer ASC 606 contract-revenue tag.
var RevenueConcepts = [2]string{
	"revenues",
	"revenue_from_contract_with_customer_excluding_assessed_tax",
}

// Build resolves a value series for one concept pair across a set of filing
// records and reconstructs any derivable fourth quarters. Records that yield
// no usable value are dropped from the series.
//
// secondaryField may be empty for quantities reported under a single tag
// (net income, operating cash flow).
func Build(records []xbrl.FilingRecord, primaryField, secondaryField string) []Point {
	var points []Point
	for i := range records {
		record := &records[i]
		var secondary xbrl.ConceptBucket
		if secondaryField != "" {
			secondary = record.Bucket(secondaryField)
		}
		resolved := SelectValue(record.Bucket(primaryField), secondary, primaryField, secondaryField, record.Quarter)
		if resolved == nil {
			continue
		}
		points = append(points, Point{
			Quarter:              record.Quarter,
			Year:                 record.Year,
			FilingDate:           record.FilingDate,
			Value:                resolved.Value,
			Concept:              resolved.Concept,
			SelectionMethod:      resolved.SelectionMethod,
			PeriodClassification: resolved.PeriodClassification,
			PeriodDays:           resolved.PeriodDays,
			NeedsQ4Calculation:   resolved.NeedsQ4Calculation,
		})
	}
	return ReconstructQ4(points)
}

// BuildRevenue is the common case: the revenue series across both revenue
// concept tags.
func BuildRevenue(records []xbrl.FilingRecord) []Point {
	return Build(records, RevenueConcepts[0], RevenueConcepts[1])
}
