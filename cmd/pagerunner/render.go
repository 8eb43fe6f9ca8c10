package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/entrhq/pagerunner/pkg/logging"
	"github.com/entrhq/pagerunner/pkg/merge"
)

var (
	colorGreen  = lipgloss.Color("10")
	colorYellow = lipgloss.Color("11")
	colorCyan   = lipgloss.Color("14")
	colorGray   = lipgloss.Color("8")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	okStyle     = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle   = lipgloss.NewStyle().Foreground(colorYellow)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorGray)
)

// colored reports whether styled output goes to w.
func (c *cli) colored(w io.Writer) bool {
	return !c.noColor && logging.IsTerminal(w)
}

// printSource writes source code, syntax highlighted on a terminal.
func (c *cli) printSource(w io.Writer, source, lexer string) error {
	if c.colored(w) {
		if err := quick.Highlight(w, source, lexer, "terminal256", "monokai"); err == nil {
			return nil
		}
	}
	_, err := io.WriteString(w, source)
	return err
}

// style renders s with st on a terminal and returns it unchanged otherwise.
func (c *cli) style(w io.Writer, st lipgloss.Style, s string) string {
	if !c.colored(w) {
		return s
	}
	return st.Render(s)
}

// sourceRow is one line of a provenance table.
type sourceRow struct {
	key    string
	value  string
	source string
}

// sourceRows lists the keys of items with their origin. Keys missing from
// sources were set by derivation or by a rule and are reported as fallback.
func sourceRows(items map[string]any, sources map[string]merge.Source, fallback string) []sourceRow {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]sourceRow, 0, len(keys))
	for _, k := range keys {
		src := fallback
		if s, ok := sources[k]; ok {
			src = string(s)
		}
		rows = append(rows, sourceRow{key: k, value: merge.Redact(k, items[k]), source: src})
	}
	return rows
}

// printTable writes a bordered table, styled on a terminal.
func (c *cli) printTable(w io.Writer, title string, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		Rows(rows...)
	if c.colored(w) {
		t = t.BorderStyle(mutedStyle).StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	}
	fmt.Fprintln(w, c.style(w, headerStyle, title))
	fmt.Fprintln(w, t.Render())
}
