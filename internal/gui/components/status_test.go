package components

import (
	"errors"
	"fmt"
	"testing"

	"precipitate-meter/internal/models"
)

func TestFormatResult(t *testing.T) {
	defined := &models.RunResult{
		Parameters: models.Snapshot{Mode: models.ModeCrossSection},
		Count:      2,
		Mean:       200,
		StdDev:     50,
		Rejected:   models.RejectionCounts{LowConfidence: 1, BorderClipped: 2},
	}
	length := &models.RunResult{
		Parameters: models.Snapshot{Mode: models.ModeLength},
		Count:      1,
		Mean:       20.4183,
	}

	cases := []struct {
		name   string
		result *models.RunResult
		err    error
		want   string
	}{
		{"no pass yet", nil, nil, "n: -- | mean: -- | std: --"},
		{"empty result", &models.RunResult{}, fmt.Errorf("pass: %w", models.ErrEmptyResult),
			"No particles accepted: lower the threshold or erosion"},
		{"failure", nil, errors.New("mask decode failed"), "Measurement failed: mask decode failed"},
		{"cross-section", defined, nil, "n: 2 | mean: 200.000 nm² | std: 50.000 nm² | rejected: 3"},
		{"length", length, nil, "n: 1 | mean: 20.418 nm | std: 0.000 nm | rejected: 0"},
	}

	for _, tc := range cases {
		if got := FormatResult(tc.result, tc.err); got != tc.want {
			t.Fatalf("%s: FormatResult = %q, want %q", tc.name, got, tc.want)
		}
	}
}
