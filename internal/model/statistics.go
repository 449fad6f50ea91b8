package model

import "fmt"

// StatisticsSnapshot is an aggregate over every stored record, computed per
// request.
type StatisticsSnapshot struct {
	Total    int     `json:"total"`
	Critical int     `json:"critical"`
	Mean     float64 `json:"mean"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// CriticalRatio is the share of critical records, 0 when empty.
func (s StatisticsSnapshot) CriticalRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Critical) / float64(s.Total)
}

func (s StatisticsSnapshot) String() string {
	return fmt.Sprintf("total=%d critical=%d (%.1f%%) mean=%.2f",
		s.Total, s.Critical, s.CriticalRatio()*100, s.Mean)
}
