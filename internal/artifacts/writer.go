// Package artifacts writes completed backtest results to disk as JSONL
// plus a human-readable summary. Writing structured artifacts is the
// engine's only output channel; rendering dashboards from them is
// someone else's job.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quantlab/backrun/internal/domain"
)

// Writer persists sweep artifacts under a dated directory.
type Writer struct {
	outputDir string
}

// NewWriter creates a writer rooted at outputDir/<date>.
func NewWriter(outputDir string) *Writer {
	return &Writer{
		outputDir: filepath.Join(outputDir, time.Now().Format("2006-01-02")),
	}
}

// OutputDir returns the full output directory path.
func (w *Writer) OutputDir() string {
	return w.outputDir
}

// WriteResults writes one JSON line per result to results.jsonl.
func (w *Writer) WriteResults(results []*domain.BacktestResult) error {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(w.outputDir, "results.jsonl")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	defer f.Close()

	for _, res := range results {
		line, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("marshal result %s: %w", res.JobID, err)
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("write result %s: %w", res.JobID, err)
		}
	}
	return nil
}

// WriteSummary writes a markdown table of headline metrics per result.
func (w *Writer) WriteSummary(results []*domain.BacktestResult) error {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Backtest Sweep Summary\n\n")
	b.WriteString(fmt.Sprintf("Generated: %s\n\n", time.Now().Format(time.RFC3339)))
	b.WriteString("| Job | Symbol | Strategy | Trades | Win Rate | Return | Max DD | Sharpe |\n")
	b.WriteString("|-----|--------|----------|--------|----------|--------|--------|--------|\n")

	for _, res := range results {
		totalReturn := 0.0
		if res.InitialCapital > 0 {
			totalReturn = (res.FinalCapital - res.InitialCapital) / res.InitialCapital
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %.1f%% | %.2f%% | %.2f%% | %.2f |\n",
			shortID(res.JobID), res.Symbol, res.Strategy, res.TotalTrades,
			res.WinRate*100, totalReturn*100, res.MaxDrawdown*100,
			res.Metrics["sharpe_ratio"]))
	}

	path := filepath.Join(w.outputDir, "summary.md")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
