// Package report renders run history into a human-readable report: a
// markdown summary with a unit table, converted to standalone HTML.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/parsekit/grambuild/internal/history"
)

// Markdown builds the report source for one run.
func Markdown(run history.RunRecord, units []history.UnitRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Grammar build report for run %s\n\n", run.RunID)
	fmt.Fprintf(&b, "- Started: %s\n", run.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Finished: %s\n", run.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Flavor: %s\n", run.Flavor)
	fmt.Fprintf(&b, "- Outcome: **%s**\n", run.Outcome)
	fmt.Fprintf(&b, "- Stale units: %d, succeeded: %d, failed: %d\n\n", run.Stale, run.Succeeded, run.Failed)

	if len(units) == 0 {
		b.WriteString("No units were processed.\n")
		return b.String()
	}

	b.WriteString("| Unit | Decision | Outcome | Stage | Duration (ms) | Detail |\n")
	b.WriteString("|---|---|---|---|---:|---|\n")
	for _, u := range units {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d | %s |\n",
			escapeCell(u.Unit), escapeCell(u.Decision), u.Outcome,
			u.Stage, u.DurationMS, escapeCell(u.Detail))
	}
	return b.String()
}

// RenderHTML converts the markdown report to an HTML document body.
func RenderHTML(md string) ([]byte, error) {
	gm := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := gm.Convert([]byte(md), &buf); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	return buf.Bytes(), nil
}

// Write renders a run's report and writes it to path as HTML.
func Write(path string, run history.RunRecord, units []history.UnitRecord) error {
	html, err := RenderHTML(Markdown(run, units))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	doc := "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>grambuild report</title></head><body>\n" +
		string(html) + "</body></html>\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// escapeCell keeps pipes in unit paths or error text from breaking the table.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
