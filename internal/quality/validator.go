// Package quality implements pre-flight validation of historical bar
// sequences. The validator is a pure function of its input: it mutates
// nothing, performs no I/O, and the same bars always produce the same
// report, so reports may be computed once and shared read-only across
// concurrent backtest jobs.
package quality

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantlab/backrun/internal/domain"
)

// Config holds the validator thresholds. Exposed as a struct so callers
// can tighten or relax individual checks without forking the validator.
type Config struct {
	// GapFactor: a gap larger than GapFactor × expected interval counts
	// toward missing records.
	GapFactor float64 `yaml:"gap_factor"`
	// MaxFieldJump: per-field fractional change between consecutive bars
	// above this raises an "extreme change" issue.
	MaxFieldJump float64 `yaml:"max_field_jump"`
	// MaxZeroVolumeFrac: fraction of zero-volume bars above this raises
	// an issue.
	MaxZeroVolumeFrac float64 `yaml:"max_zero_volume_frac"`
	// MaxDuplicatePenalty caps the score penalty from duplicate timestamps.
	MaxDuplicatePenalty float64 `yaml:"max_duplicate_penalty"`
	// IssuePenalty is the per-issue score penalty; the aggregate is capped
	// at MaxIssuePenalty.
	IssuePenalty    float64 `yaml:"issue_penalty"`
	MaxIssuePenalty float64 `yaml:"max_issue_penalty"`
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig() Config {
	return Config{
		GapFactor:           1.5,
		MaxFieldJump:        0.50,
		MaxZeroVolumeFrac:   0.10,
		MaxDuplicatePenalty: 0.20,
		IssuePenalty:        0.10,
		MaxIssuePenalty:     0.30,
	}
}

// Validator inspects bar sequences before simulation.
type Validator struct {
	cfg Config
}

// NewValidator creates a validator with the given thresholds.
func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Validate inspects bars for a symbol/timeframe and produces a quality
// report. Empty input yields a zero score with an explicit issue rather
// than an error: absence of data is a quality finding, not a failure of
// the validator itself.
func (v *Validator) Validate(bars []domain.Bar, symbol, timeframe string) *domain.DataQualityReport {
	report := &domain.DataQualityReport{
		Symbol:       symbol,
		Timeframe:    timeframe,
		TotalRecords: len(bars),
	}

	if len(bars) == 0 {
		report.Issues = append(report.Issues, "no data")
		return report
	}

	expected, err := domain.ParseTimeframe(timeframe)
	if err != nil {
		report.Issues = append(report.Issues,
			fmt.Sprintf("unknown timeframe %q, gap detection skipped", timeframe))
		expected = 0
	}

	v.checkContinuity(bars, expected, report)
	v.checkPrices(bars, report)
	v.checkVolume(bars, report)
	v.score(report)

	if len(report.Issues) > 0 {
		log.Warn().
			Str("symbol", symbol).
			Str("timeframe", timeframe).
			Int("issues", len(report.Issues)).
			Float64("score", report.Score).
			Msg("data quality issues detected")
	}

	return report
}

// checkContinuity counts duplicate timestamps and, when the expected
// interval is known, estimates bars missing from oversized gaps.
func (v *Validator) checkContinuity(bars []domain.Bar, expected time.Duration, report *domain.DataQualityReport) {
	for i := 1; i < len(bars); i++ {
		delta := bars[i].Timestamp.Sub(bars[i-1].Timestamp)

		if delta == 0 {
			report.DuplicateRecords++
			continue
		}

		if expected <= 0 {
			continue
		}
		if float64(delta) > v.cfg.GapFactor*float64(expected) {
			// Number of bars that should have landed inside the gap.
			missed := int(delta/expected) - 1
			if missed < 1 {
				missed = 1
			}
			report.MissingRecords += missed
		}
	}

	if report.DuplicateRecords > 0 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%d duplicate timestamps", report.DuplicateRecords))
	}
	if report.MissingRecords > 0 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%d missing bars across gaps", report.MissingRecords))
	}
}

func (v *Validator) checkPrices(bars []domain.Bar, report *domain.DataQualityReport) {
	for i, bar := range bars {
		if bar.Open <= 0 || bar.High <= 0 || bar.Low <= 0 || bar.Close <= 0 {
			report.Issues = append(report.Issues,
				fmt.Sprintf("non-positive price at index %d (%s)", i, bar.Timestamp.Format(time.RFC3339)))
		}
		if bar.High < bar.Low {
			report.Issues = append(report.Issues,
				fmt.Sprintf("high < low at index %d (%s)", i, bar.Timestamp.Format(time.RFC3339)))
		}
		if i == 0 {
			continue
		}

		prev := bars[i-1]
		fields := [4][2]float64{
			{prev.Open, bar.Open},
			{prev.High, bar.High},
			{prev.Low, bar.Low},
			{prev.Close, bar.Close},
		}
		for _, f := range fields {
			if f[0] <= 0 {
				continue
			}
			jump := math.Abs(f[1]-f[0]) / f[0]
			if jump > v.cfg.MaxFieldJump {
				report.Issues = append(report.Issues,
					fmt.Sprintf("extreme change %.1f%% at index %d", jump*100, i))
				break
			}
		}
	}
}

func (v *Validator) checkVolume(bars []domain.Bar, report *domain.DataQualityReport) {
	zero := 0
	for _, bar := range bars {
		if bar.Volume == 0 {
			zero++
		}
	}
	frac := float64(zero) / float64(len(bars))
	if frac > v.cfg.MaxZeroVolumeFrac {
		report.Issues = append(report.Issues,
			fmt.Sprintf("zero-volume bars %.1f%% exceed %.1f%% limit", frac*100, v.cfg.MaxZeroVolumeFrac*100))
	}
}

// score combines completeness with duplicate and issue penalties:
// score = max(0, completeness − duplicatePenalty − issuePenalty).
func (v *Validator) score(report *domain.DataQualityReport) {
	total := float64(report.TotalRecords)
	completeness := math.Max(0, 1.0-float64(report.MissingRecords)/total)
	report.Coverage = completeness

	dupPenalty := math.Min(v.cfg.MaxDuplicatePenalty, float64(report.DuplicateRecords)/total)
	issuePenalty := math.Min(v.cfg.MaxIssuePenalty, v.cfg.IssuePenalty*float64(len(report.Issues)))

	report.Score = math.Max(0, completeness-dupPenalty-issuePenalty)
}
