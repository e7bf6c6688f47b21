// Package table turns chunks of raw delimited lines into rows and columns for
// display.
package table

import (
	"fmt"
	"slices"
	"strings"
)

// Options controls how a chunk is turned into a View.
type Options struct {
	// Column separator, e.g. "," or "\t".
	Separator string

	// The first row of the input. Used for column labels when UseHeader is set.
	Header    []string
	UseHeader bool

	// Search in "column:value" form. Empty means no search.
	Search string
	// Treat the search value as a regular expression.
	Regex bool

	// Optional jq filter rows must pass.
	Filter *JQFilter
}

// View is a chunk ready to be displayed.
type View struct {
	Columns []string
	Rows    [][]string

	// Rows in the chunk before searching and filtering. The header row is
	// not counted when it is hidden.
	Total int

	// Indices of rows in the chunk whose column count differs from the
	// header, or from the first row when there is no header.
	Mismatched []int
}

// SplitRow splits a raw line into fields. Line endings left over from CRLF
// input are dropped.
func SplitRow(line, sep string) []string {
	line = strings.TrimRight(line, "\r\n")
	if sep == "" {
		return []string{line}
	}
	return strings.Split(line, sep)
}

// Labels returns n column labels. Header names are used when the header is
// on, generic "column N" labels otherwise.
func (o Options) Labels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		if o.UseHeader && i < len(o.Header) && o.Header[i] != "" {
			labels[i] = o.Header[i]
		} else {
			labels[i] = fmt.Sprintf("column %d", i+1)
		}
	}
	return labels
}

// Build splits chunk into rows and applies the header, search and filter
// settings of o.
func Build(chunk []string, o Options) (View, error) {
	var (
		view  View
		rows  = make([][]string, 0, len(chunk))
		width = 0
		want  = -1
	)
	if o.UseHeader && len(o.Header) > 0 {
		want = len(o.Header)
		width = want
	}

	for i, line := range chunk {
		row := SplitRow(line, o.Separator)
		if want == -1 {
			want = len(row)
		}
		if len(row) != want {
			view.Mismatched = append(view.Mismatched, i)
		}
		if o.UseHeader && slices.Equal(row, o.Header) {
			continue
		}
		width = max(width, len(row))
		rows = append(rows, row)
	}

	view.Columns = o.Labels(width)
	view.Total = len(rows)

	search, err := ParseSearch(o.Search, o.Regex, view.Columns)
	if err != nil {
		return view, err
	}

	view.Rows = make([][]string, 0, len(rows))
	for _, row := range rows {
		if search != nil && !search.Match(row) {
			continue
		}
		if o.Filter != nil {
			ok, err := o.Filter.Match(view.Columns, row)
			if err != nil {
				return view, err
			}
			if !ok {
				continue
			}
		}
		view.Rows = append(view.Rows, row)
	}

	return view, nil
}
