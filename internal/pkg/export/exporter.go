// Package export flattens probability reports into tabular formats.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/Vodeneev/linecalc/internal/engine"
)

// Export represents the export format
type Export struct {
	Timestamp   string              `json:"timestamp"`
	Corrections []string            `json:"corrections"`
	Opening     engine.MatchLine    `json:"opening"`
	Current     engine.MatchLine    `json:"current"`
	Rates       engine.ScoringRates `json:"rates"`
	Degenerate  bool                `json:"degenerate,omitempty"`
	Entries     []EntryExport       `json:"entries"`
}

// EntryExport is one outcome with its opening and current probability
type EntryExport struct {
	Market   engine.Market `json:"market"`
	Outcome  string        `json:"outcome"`
	Opening  float64       `json:"opening"`
	Current  float64       `json:"current"`
	ChangePP float64       `json:"change_pp"`
}

var csvHeader = []string{"market", "outcome", "opening", "current", "change_pp"}

// Exporter handles the export format
type Exporter struct {
	now func() time.Time
}

// NewExporter creates a new exporter
func NewExporter() *Exporter {
	return &Exporter{now: time.Now}
}

// ExportReport pairs every current outcome with its opening probability.
func (e *Exporter) ExportReport(rep engine.Report) *Export {
	opening := make(map[string]float64)
	for _, entry := range rep.Opening.Markets.Entries() {
		opening[string(entry.Market)+"/"+entry.Outcome] = entry.Probability
	}

	export := &Export{
		Timestamp:   e.now().UTC().Format(time.RFC3339),
		Corrections: rep.Corrections,
		Opening:     rep.Opening.Line,
		Current:     rep.Current.Line,
		Rates:       rep.Current.Rates,
		Degenerate:  rep.Current.Degenerate,
		Entries:     []EntryExport{},
	}
	for _, entry := range rep.Current.Markets.Entries() {
		o := opening[string(entry.Market)+"/"+entry.Outcome]
		export.Entries = append(export.Entries, EntryExport{
			Market:   entry.Market,
			Outcome:  entry.Outcome,
			Opening:  o,
			Current:  entry.Probability,
			ChangePP: (entry.Probability - o) * 100,
		})
	}
	return export
}

// ExportToJSON exports a report to JSON format
func (e *Exporter) ExportToJSON(rep engine.Report) ([]byte, error) {
	return json.MarshalIndent(e.ExportReport(rep), "", "  ")
}

// ExportToCSV exports a report as one row per outcome
func (e *Exporter) ExportToCSV(rep engine.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, e.ExportReport(rep)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSV writes the entries with a header row
func WriteCSV(w io.Writer, export *Export) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, entry := range export.Entries {
		row := []string{
			string(entry.Market),
			entry.Outcome,
			strconv.FormatFloat(entry.Opening, 'f', 6, 64),
			strconv.FormatFloat(entry.Current, 'f', 6, 64),
			strconv.FormatFloat(entry.ChangePP, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable prints a human readable summary followed by the entries
func WriteTable(w io.Writer, export *Export) error {
	fmt.Fprintf(w, "Rates: home %.3f, away %.3f\n", export.Rates.Home, export.Rates.Away)
	if export.Degenerate {
		fmt.Fprintln(w, "Warning: some markets fell back to neutral values")
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MARKET\tOUTCOME\tOPENING\tCURRENT\tCHANGE (pp)")
	for _, entry := range export.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.4f\t%+.2f\n", entry.Market, entry.Outcome, entry.Opening, entry.Current, entry.ChangePP)
	}
	return tw.Flush()
}
