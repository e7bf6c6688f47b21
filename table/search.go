package table

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrBadSearch indicates a search that cannot be applied to the current view.
var ErrBadSearch = errors.New("invalid search")

// Search matches rows whose value in one column equals a value, or matches a
// regular expression anchored at the start of the value.
type Search struct {
	Column int
	Value  string
	re     *regexp.Regexp
}

// ParseSearch parses text in "column:value" form against the given column
// labels. An empty text is no search and returns nil.
func ParseSearch(text string, regex bool, labels []string) (*Search, error) {
	if text == "" {
		return nil, nil
	}

	column, value, ok := strings.Cut(text, ":")
	if !ok {
		return nil, fmt.Errorf("%w: %q is not in column:value form", ErrBadSearch, text)
	}

	idx := -1
	for i, label := range labels {
		if label == column {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, fmt.Errorf("%w: no column named %q", ErrBadSearch, column)
	}

	s := &Search{Column: idx, Value: value}
	if regex {
		re, err := regexp.Compile("^(?:" + value + ")")
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadSearch, err)
		}
		s.re = re
	}
	return s, nil
}

// Match reports whether row matches the search.
func (s *Search) Match(row []string) bool {
	if s.Column >= len(row) {
		return false
	}
	if s.re != nil {
		return s.re.MatchString(row[s.Column])
	}
	return row[s.Column] == s.Value
}
