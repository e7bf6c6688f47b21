package table

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/itchyny/gojq"
)

// ErrBadFilter indicates a jq filter that failed to compile or run.
var ErrBadFilter = errors.New("invalid filter")

// JQFilter keeps rows for which a jq expression is truthy. Each row is given
// to the expression as an object keyed by column label. Values that look like
// numbers are passed as numbers so comparisons like .age > 30 work.
type JQFilter struct {
	expr string
	code *gojq.Code
}

func NewJQFilter(expr string) (*JQFilter, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadFilter, err)
	}

	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadFilter, err)
	}

	return &JQFilter{expr: expr, code: code}, nil
}

func (f *JQFilter) String() string {
	return f.expr
}

// Match runs the filter against row. Only the first result counts.
func (f *JQFilter) Match(labels, row []string) (bool, error) {
	obj := make(map[string]any, len(labels))
	for i, label := range labels {
		if i < len(row) {
			obj[label] = jqValue(row[i])
		} else {
			obj[label] = nil
		}
	}

	iter := f.code.Run(obj)
	v, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if err, isErr := v.(error); isErr {
		return false, fmt.Errorf("%w: %s: %w", ErrBadFilter, f.expr, err)
	}
	return v != nil && v != false, nil
}

func jqValue(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}
