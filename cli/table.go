package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
)

// Table styles.
const (
	SQLStyle   = "sql"
	PlainStyle = "plain"
	CSVStyle   = "csv"
	JSONStyle  = "json"
)

// Styles lists the accepted table styles.
var Styles = []string{SQLStyle, PlainStyle, CSVStyle, JSONStyle}

// ValidStyle returns true if s names a table style.
func ValidStyle(s string) bool {
	for _, style := range Styles {
		if s == style {
			return true
		}
	}
	return false
}

// TableBuilder collects rows and renders them in one of the table styles.
type TableBuilder struct {
	headers []string
	align   string
	style   string
	rows    [][]string
}

// NewTableBuilder returns a builder with the given column headers, left-aligned and in
// the sql style.
func NewTableBuilder(headers ...string) *TableBuilder {
	return &TableBuilder{headers: headers, style: SQLStyle}
}

// SetAlign sets column alignment, one character per column: 'l' or 'r'.
func (tb *TableBuilder) SetAlign(align string) {
	tb.align = align
}

func (tb *TableBuilder) SetStyle(style string) error {
	if !ValidStyle(style) {
		return fmt.Errorf("unknown table style %q (choose from %s)", style, strings.Join(Styles, ", "))
	}
	tb.style = style
	return nil
}

// Row adds a row.  Nil values print as "None".
func (tb *TableBuilder) Row(values ...interface{}) {
	row := make([]string, len(tb.headers))
	for i := range row {
		if i < len(values) {
			row[i] = cell(values[i])
		}
	}
	tb.rows = append(tb.rows, row)
}

func cell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case *int64:
		if x == nil {
			return "None"
		}
		return fmt.Sprintf("%d", *x)
	case string:
		return x
	default:
		return fmt.Sprint(v)
	}
}

// Build renders the table.
func (tb *TableBuilder) Build() string {
	switch tb.style {
	case PlainStyle:
		return tb.plain()
	case CSVStyle:
		return tb.csv()
	case JSONStyle:
		return tb.json()
	default:
		return tb.sql()
	}
}

func (tb *TableBuilder) String() string {
	return tb.Build()
}

func (tb *TableBuilder) widths() []int {
	w := make([]int, len(tb.headers))
	for i, h := range tb.headers {
		w[i] = len(h)
	}
	for _, row := range tb.rows {
		for i, c := range row {
			if len(c) > w[i] {
				w[i] = len(c)
			}
		}
	}
	return w
}

func (tb *TableBuilder) pad(i, width int, s string) string {
	if i < len(tb.align) && tb.align[i] == 'r' {
		return fmt.Sprintf("%*s", width, s)
	}
	return fmt.Sprintf("%-*s", width, s)
}

func (tb *TableBuilder) sql() string {
	w := tb.widths()
	var buf bytes.Buffer
	line := func(cells []string, header bool) {
		parts := make([]string, len(cells))
		for i, c := range cells {
			if header {
				parts[i] = " " + fmt.Sprintf("%-*s", w[i], c) + " "
			} else {
				parts[i] = " " + tb.pad(i, w[i], c) + " "
			}
		}
		buf.WriteString(strings.TrimRight(strings.Join(parts, "|"), " "))
		buf.WriteString("\n")
	}
	line(tb.headers, true)
	seps := make([]string, len(w))
	for i := range w {
		seps[i] = strings.Repeat("-", w[i]+2)
	}
	buf.WriteString(strings.Join(seps, "+"))
	buf.WriteString("\n")
	for _, row := range tb.rows {
		line(row, false)
	}
	if len(tb.rows) == 1 {
		buf.WriteString("(1 row)")
	} else {
		fmt.Fprintf(&buf, "(%d rows)", len(tb.rows))
	}
	return buf.String()
}

func (tb *TableBuilder) plain() string {
	lines := make([]string, len(tb.rows))
	for i, row := range tb.rows {
		lines[i] = strings.Join(row, ",")
	}
	return strings.Join(lines, "\n")
}

func (tb *TableBuilder) csv() string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write(tb.headers)
	w.WriteAll(tb.rows)
	return strings.TrimRight(buf.String(), "\n")
}

func (tb *TableBuilder) json() string {
	objs := make([]map[string]string, len(tb.rows))
	for i, row := range tb.rows {
		obj := make(map[string]string, len(row))
		for j, c := range row {
			obj[tb.headers[j]] = c
		}
		objs[i] = obj
	}
	data, err := json.Marshal(objs)
	if err != nil {
		return fmt.Sprintf("error rendering table as JSON: %v", err)
	}
	return string(data)
}
