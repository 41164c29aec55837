package series

import "fmt"

// Point is one quarter of a resolved value series, ready for consumers.
// IsCalculatedQ4 distinguishes derived fourth quarters from directly reported
// ones; a point still flagged NeedsQ4Calculation is an annual figure that
// could not be reconstructed.
type Point struct {
	Quarter              string  `json:"quarter"`
	Year                 int     `json:"year"`
	FilingDate           string  `json:"filing_date"`
	Value                float64 `json:"value"`
	Concept              string  `json:"concept"`
	SelectionMethod      string  `json:"selection_method"`
	PeriodClassification string  `json:"period_classification"`
	PeriodDays           int     `json:"period_days"`
	NeedsQ4Calculation   bool    `json:"needs_q4_calculation"`
	IsCalculatedQ4       bool    `json:"is_calculated_q4"`
}

// ReconstructQ4 derives missing fourth-quarter values in place of annual
// cumulative figures: Q4 = Annual − (Q1+Q2+Q3) over the same fiscal year.
// Reconstruction is skipped when fewer than two of Q1–Q3 are available, and
// rejected when the derived Q4 comes out non-positive (revenue is virtually
// never negative, so a non-positive result means inconsistent inputs). In
// both fallback cases the annual figure passes through unmodified.
//
// The input should be the calculation view (all retained quarters), not the
// display view: prior-year quarters the display drops are exactly what the
// subtraction needs.
func ReconstructQ4(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)

	for i := range out {
		p := &out[i]
		if !p.NeedsQ4Calculation || p.Quarter != "Q4" {
			continue
		}

		var sum float64
		found := 0
		for _, q := range out {
			if q.Year != p.Year || q.PeriodClassification != PeriodQuarterly {
				continue
			}
			switch q.Quarter {
			case "Q1", "Q2", "Q3":
				if q.Value > 0 {
					sum += q.Value
					found++
				}
			}
		}

		if found < 2 {
			fmt.Printf("Q4 reconstruction skipped for FY%d: only %d of Q1-Q3 available\n", p.Year, found)
			continue
		}

		q4 := p.Value - sum
		if q4 <= 0 {
			fmt.Printf("Q4 reconstruction rejected for FY%d: annual %.0f <= Q1-Q3 sum %.0f\n", p.Year, p.Value, sum)
			continue
		}

		p.Value = q4
		p.IsCalculatedQ4 = true
		p.NeedsQ4Calculation = false
	}
	return out
}
