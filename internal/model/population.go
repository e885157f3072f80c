package model

import "fmt"

// SentinelUnmeasured is the value written to tabular exports when population
// aggregation failed for a threshold. Distinct from 0, which is a legitimate
// empty-area result.
const SentinelUnmeasured = -1

// Population is a raster aggregation outcome: either a measured count or an
// explicit aggregation failure. Keeping the two apart prevents accidental
// arithmetic on the failure sentinel.
type Population struct {
	Value    float64 `json:"value"`
	Measured bool    `json:"measured"`
}

// MeasuredPopulation returns a measured population count.
func MeasuredPopulation(v float64) Population {
	return Population{Value: v, Measured: true}
}

// UnmeasuredPopulation returns the aggregation-failed outcome.
func UnmeasuredPopulation() Population {
	return Population{}
}

// Export returns the numeric form used in tabular output: the measured value,
// or SentinelUnmeasured when aggregation failed.
func (p Population) Export() float64 {
	if !p.Measured {
		return SentinelUnmeasured
	}
	return p.Value
}

func (p Population) String() string {
	if !p.Measured {
		return "unmeasured"
	}
	return fmt.Sprintf("%.0f", p.Value)
}
