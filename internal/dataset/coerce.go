package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are tried in order when parsing timestamp cells. The CityCar
// exports use "2006-01-02 15:04:05"; the rest cover common variants so a
// re-exported file does not silently lose a column.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// coerceFn converts one non-empty trimmed cell into its typed value.
type coerceFn func(s string) (any, error)

// coercerFor returns the coercion function for a column kind. Text columns
// pass through unchanged.
func coercerFor(k Kind) coerceFn {
	switch k {
	case KindTime:
		return coerceTime
	case KindFloat:
		return coerceFloat
	default:
		return func(s string) (any, error) { return s, nil }
	}
}

// coerceTime parses a timezone-naive instant. Layouts without a zone produce
// a UTC wall clock, which is what the duration arithmetic expects: deltas are
// meaningful as long as all timestamps in a file share a convention.
func coerceTime(s string) (any, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return nil, fmt.Errorf("unparseable timestamp %q", s)
}

func coerceFloat(s string) (any, error) {
	// Tolerate a decimal comma; some locales export "12,5".
	if strings.ContainsRune(s, ',') && !strings.ContainsRune(s, '.') {
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("unparseable number %q", s)
	}
	return f, nil
}
