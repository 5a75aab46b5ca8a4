package service

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/timmy/tenderkg/internal/domain"
)

// reportedErrors is how many error messages the printed report lists.
const reportedErrors = 5

// FormatReport renders a run report as a table followed by the first few
// recorded errors.
func FormatReport(r domain.RunReport) (string, error) {
	rate := 0.0
	if r.TotalProcessed > 0 {
		rate = float64(r.SuccessfulWrites) / float64(r.TotalProcessed) * 100
	}

	data := pterm.TableData{
		{"Metric", "Value"},
		{"Identifiers processed", fmt.Sprint(r.TotalProcessed)},
		{"Units written", fmt.Sprint(r.SuccessfulWrites)},
		{"Units filtered", fmt.Sprint(r.FilteredCount)},
		{"Preview rejected", fmt.Sprint(r.PreviewRejectedCount)},
		{"Duplicates skipped", fmt.Sprint(r.SkippedDuplicateCount)},
		{"Soft skips", fmt.Sprint(r.SoftSkipCount)},
		{"Errors", fmt.Sprint(r.ErrorCount)},
		{"Writes per identifier", fmt.Sprintf("%.1f%%", rate)},
		{"Duration", r.Duration().Round(time.Millisecond).String()},
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(table)
	sb.WriteString("\n")

	if len(r.Errors) > 0 {
		sb.WriteString("\nErrors:\n")
		shown := r.Errors
		if len(shown) > reportedErrors {
			shown = shown[:reportedErrors]
		}
		for _, msg := range shown {
			fmt.Fprintf(&sb, "  - %s\n", msg)
		}
		if more := int64(len(r.Errors)-len(shown)) + r.HiddenErrors(); more > 0 {
			fmt.Fprintf(&sb, "  ... %d more\n", more)
		}
	}
	return sb.String(), nil
}

// PrintReport writes the formatted report to w.
func PrintReport(w io.Writer, r domain.RunReport) error {
	out, err := FormatReport(r)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
