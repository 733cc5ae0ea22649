package download

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	errMalformedRange      = errors.New("malformed range header")
	errRangeNotSatisfiable = errors.New("range not satisfiable")
)

// span is an inclusive byte range within a file.
type span struct {
	first, last int64
}

func (s span) length() int64 { return s.last - s.first + 1 }

func (s span) header(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", s.first, s.last, size)
}

// parseSpan reads a single-range "bytes=" header. Only the first range of a
// multi-range request is honored. A nil span with nil error means the whole
// file.
func parseSpan(header string, size int64) (*span, error) {
	if header == "" {
		return nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, errMalformedRange
	}
	spec, _, _ = strings.Cut(spec, ",")
	from, to, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return nil, errMalformedRange
	}

	var s span
	switch {
	case from == "":
		// Suffix form: the last n bytes.
		n, err := strconv.ParseInt(to, 10, 64)
		if err != nil || n <= 0 {
			return nil, errMalformedRange
		}
		s = span{first: max(size-n, 0), last: size - 1}
	default:
		first, err := strconv.ParseInt(from, 10, 64)
		if err != nil || first < 0 {
			return nil, errMalformedRange
		}
		last := size - 1
		if to != "" {
			if last, err = strconv.ParseInt(to, 10, 64); err != nil {
				return nil, errMalformedRange
			}
		}
		s = span{first: first, last: min(last, size-1)}
		if first > last {
			return nil, errRangeNotSatisfiable
		}
	}
	if size == 0 || s.first >= size {
		return nil, errRangeNotSatisfiable
	}
	return &s, nil
}
