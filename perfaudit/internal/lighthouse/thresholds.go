package lighthouse

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hazyhaar/perfaudit/perfaudit/internal/metrics"
)

// Violation is a category scoring below its threshold. A category missing
// from the report, or with a null score, always violates.
type Violation struct {
	Category  string  `json:"category"`
	Threshold float64 `json:"threshold"`
	Score     float64 `json:"score"`
	Missing   bool    `json:"missing,omitempty"`
}

func (v Violation) String() string {
	if v.Missing {
		return fmt.Sprintf("%s missing (want >= %v)", v.Category, v.Threshold)
	}
	return fmt.Sprintf("%s %v < %v", v.Category, v.Score, v.Threshold)
}

// CheckThresholds compares the category scores of an LHR with thresholds
// (0-100). Violations are sorted by category.
func CheckThresholds(lhr []byte, thresholds map[string]float64) []Violation {
	if len(thresholds) == 0 {
		return nil
	}
	scores := metrics.CategoryScores(lhr)

	var out []Violation
	for cat, want := range thresholds {
		score, ok := scores[cat]
		if !ok {
			out = append(out, Violation{Category: cat, Threshold: want, Missing: true})
			continue
		}
		if score < want {
			out = append(out, Violation{Category: cat, Threshold: want, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// ThresholdError reports threshold violations under the strict policy.
type ThresholdError struct {
	Violations []Violation
}

func (e *ThresholdError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "lighthouse: thresholds not met: " + strings.Join(parts, ", ")
}

func (e *ThresholdError) Unwrap() error { return ErrAuditExecution }
