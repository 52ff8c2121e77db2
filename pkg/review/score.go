package review

import (
	"math"

	"github.com/coderloop/coderloop/pkg/llmclient"
)

// ComputeQualityScore implements spec §4.5.2: start at 100, apply
// per-defect deductions by severity, a flat deduction per policy
// violation, then a coverage adjustment (only when hasCoverage is
// true), and clamp into [0, 100] rounded to the nearest integer.
func ComputeQualityScore(defects []llmclient.Defect, policyViolations int, coverage float64, hasCoverage bool) int {
	score := 100.0

	for _, d := range defects {
		score -= severityDeduction(d.Severity)
	}

	score -= float64(policyViolations) * 5

	if hasCoverage {
		if coverage < 80 {
			score -= (80 - coverage) / 5
		} else {
			score += (coverage - 80) / 10
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(math.Round(score))
}

func severityDeduction(s llmclient.Severity) float64 {
	switch s {
	case llmclient.SeverityCritical:
		return 25
	case llmclient.SeverityMajor:
		return 10
	case llmclient.SeverityMinor:
		return 3
	case llmclient.SeverityInfo:
		return 1
	default:
		return 0
	}
}
