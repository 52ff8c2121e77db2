package review

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coderloop/coderloop/pkg/llmclient"
)

func TestComputeQualityScore(t *testing.T) {
	tests := []struct {
		name             string
		defects          []llmclient.Defect
		policyViolations int
		coverage         float64
		hasCoverage      bool
		want             int
	}{
		{
			name:        "scenario A: no defects, coverage 90 clamps to 100",
			hasCoverage: true,
			coverage:    90,
			want:        100,
		},
		{
			name:        "one critical defect, no coverage signal",
			defects:     []llmclient.Defect{{Severity: llmclient.SeverityCritical}},
			hasCoverage: false,
			want:        75,
		},
		{
			name:        "coverage below 80 reduces score",
			hasCoverage: true,
			coverage:    50,
			want:        94, // 100 - (80-50)/5 = 100-6=94
		},
		{
			name:             "policy violation flat deduction",
			policyViolations: 2,
			hasCoverage:      false,
			want:             90,
		},
		{
			name:        "unknown severity deducts nothing",
			defects:     []llmclient.Defect{{Severity: "weird"}},
			hasCoverage: false,
			want:        100,
		},
		{
			name: "many critical defects clamp to zero",
			defects: []llmclient.Defect{
				{Severity: llmclient.SeverityCritical},
				{Severity: llmclient.SeverityCritical},
				{Severity: llmclient.SeverityCritical},
				{Severity: llmclient.SeverityCritical},
				{Severity: llmclient.SeverityCritical},
			},
			hasCoverage: false,
			want:        0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeQualityScore(tt.defects, tt.policyViolations, tt.coverage, tt.hasCoverage)
			assert.Equal(t, tt.want, got)
		})
	}
}
