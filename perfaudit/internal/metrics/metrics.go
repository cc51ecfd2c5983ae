// Package metrics projects a Lighthouse result (LHR) onto the fixed set
// of numbers the suite asserts on.
package metrics

import (
	"errors"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

// ErrExtraction is returned when the report does not carry a usable value
// for every metric. The report shape changed or the performance category
// was not audited; either way nothing is defaulted.
var ErrExtraction = errors.New("metrics: extraction failed")

// Audit identifiers read from the report.
const (
	AuditFCP = "first-contentful-paint"
	AuditLCP = "largest-contentful-paint"
	AuditTBT = "total-blocking-time"
	AuditCLS = "cumulative-layout-shift"
)

// Performance is the normalised metric record of one run.
type Performance struct {
	Score                  float64 `json:"score"` // 0-100
	FirstContentfulPaint   float64 `json:"fcp"`   // ms
	LargestContentfulPaint float64 `json:"lcp"`   // ms
	TotalBlockingTime      float64 `json:"tbt"`   // ms
	CumulativeLayoutShift  float64 `json:"cls"`   // unitless
}

// Extract reads the performance score and the four audit values.
func Extract(report []byte) (Performance, error) {
	if !gjson.ValidBytes(report) {
		return Performance{}, fmt.Errorf("%w: report is not valid JSON", ErrExtraction)
	}

	score, err := number(report, "categories.performance.score")
	if err != nil {
		return Performance{}, err
	}

	var p Performance
	p.Score = scale(score)

	for _, f := range []struct {
		id  string
		dst *float64
	}{
		{AuditFCP, &p.FirstContentfulPaint},
		{AuditLCP, &p.LargestContentfulPaint},
		{AuditTBT, &p.TotalBlockingTime},
		{AuditCLS, &p.CumulativeLayoutShift},
	} {
		v, err := number(report, "audits."+f.id+".numericValue")
		if err != nil {
			return Performance{}, err
		}
		*f.dst = v
	}

	if err := p.Validate(); err != nil {
		return Performance{}, err
	}
	return p, nil
}

// Validate checks every field is finite and in range.
func (p Performance) Validate() error {
	fields := []struct {
		name string
		v    float64
		max  float64
	}{
		{"score", p.Score, 100},
		{AuditFCP, p.FirstContentfulPaint, math.Inf(1)},
		{AuditLCP, p.LargestContentfulPaint, math.Inf(1)},
		{AuditTBT, p.TotalBlockingTime, math.Inf(1)},
		{AuditCLS, p.CumulativeLayoutShift, math.Inf(1)},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrExtraction, f.name)
		}
		if f.v < 0 || f.v > f.max {
			return fmt.Errorf("%w: %s out of range: %v", ErrExtraction, f.name, f.v)
		}
	}
	return nil
}

func number(report []byte, path string) (float64, error) {
	r := gjson.GetBytes(report, path)
	if !r.Exists() {
		return 0, fmt.Errorf("%w: %s missing", ErrExtraction, path)
	}
	if r.Type != gjson.Number {
		return 0, fmt.Errorf("%w: %s is not a number (got %s)", ErrExtraction, path, r.Type)
	}
	return r.Float(), nil
}

// CategoryScores returns every category score of the report on a 0-100
// scale. Categories with a null score are omitted.
func CategoryScores(report []byte) map[string]float64 {
	out := make(map[string]float64)
	gjson.GetBytes(report, "categories").ForEach(func(key, value gjson.Result) bool {
		s := value.Get("score")
		if s.Type == gjson.Number {
			out[key.String()] = scale(s.Float())
		}
		return true
	})
	return out
}

// scale maps a native 0-1 score to 0-100, keeping two decimals.
func scale(score float64) float64 {
	return math.Round(score*10000) / 100
}
