package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// writeJSON encodes v as indented JSON to w.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// printTable renders rows to w. Terminals get a boxed table; pipes and files
// get borderless columns that are easier to grep. Columns listed in
// rightAligned are zero-based.
func printTable(w io.Writer, headers []string, rows [][]string, rightAligned ...int) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	if shouldColorize(w) {
		tw.SetStyle(table.StyleRounded)
	} else {
		style := table.StyleLight
		style.Options = table.OptionsNoBordersAndSeparators
		tw.SetStyle(style)
	}

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(rightAligned))
	for _, col := range rightAligned {
		configs = append(configs, table.ColumnConfig{Number: col + 1, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	tw.Render()
}

// truncate shortens long cells such as log messages and URLs.
func truncate(value string, width int) string {
	runes := []rune(value)
	if width <= 3 || len(runes) <= width {
		return value
	}
	return string(runes[:width-3]) + "..."
}

type severity int

const (
	severityInfo severity = iota
	severityOK
	severityWarn
	severityError
)

func (s severity) label() string {
	return [...]string{"INFO", "OK", "WARN", "ERROR"}[s]
}

func (s severity) color() text.Color {
	return [...]text.Color{text.FgBlue, text.FgGreen, text.FgYellow, text.FgRed}[s]
}

// statusPrinter writes the sectioned "label: [KIND] detail" report used by
// the status command.
type statusPrinter struct {
	w     io.Writer
	color bool
}

func newStatusPrinter(w io.Writer) *statusPrinter {
	return &statusPrinter{w: w, color: shouldColorize(w)}
}

func (p *statusPrinter) section(title string) {
	heading := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(heading))
	if p.color {
		heading = text.FgBlue.Sprint(heading)
		rule = text.FgBlue.Sprint(rule)
	}
	fmt.Fprintln(p.w, heading)
	fmt.Fprintln(p.w, rule)
}

func (p *statusPrinter) line(label string, sev severity, detail string) {
	badge := "[" + sev.label() + "]"
	if detail != "" {
		badge += " " + detail
	}
	out := fmt.Sprintf("  %-20s %s", label+":", badge)
	if p.color {
		out = sev.color().Sprint(out)
	}
	fmt.Fprintln(p.w, out)
}

func (p *statusPrinter) gap() {
	fmt.Fprintln(p.w)
}
