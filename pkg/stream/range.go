package stream

import (
	"fmt"
	"strconv"
	"strings"
)

// bytesUnit is the only range unit supported.
const bytesUnit = "bytes="

// ResolvedRange is a byte range resolved against a concrete resource size.
// Start and End are inclusive offsets. Partial reports whether the range
// covers less than the whole resource and the response should be a 206.
type ResolvedRange struct {
	Start int64
	End   int64
	Size  int64
	// Partial is true when the request carried a Range header, even if the
	// resolved range happens to cover the full resource.
	Partial bool
}

// Length returns the number of bytes the range spans.
func (r ResolvedRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the range for a Content-Range response header.
func (r ResolvedRange) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Size)
}

// ParseRange resolves an HTTP Range header against a resource of the given
// size. An empty header resolves to the whole resource with Partial false.
//
// Only a single bytes-range is supported: multi-range headers are rejected
// with ErrInvalidRange rather than silently serving the first part. A range
// whose start lies past the end of the resource is ErrUnsatisfiableRange;
// an end past the resource is clamped, not rejected.
func ParseRange(header string, size int64) (ResolvedRange, error) {
	if header == "" {
		if size == 0 {
			return ResolvedRange{Start: 0, End: -1, Size: 0}, nil
		}
		return ResolvedRange{Start: 0, End: size - 1, Size: size}, nil
	}

	if !strings.HasPrefix(header, bytesUnit) {
		return ResolvedRange{}, fmt.Errorf("%w: unsupported unit in %q", ErrInvalidRange, header)
	}

	spec := strings.TrimPrefix(header, bytesUnit)
	if strings.Contains(spec, ",") {
		return ResolvedRange{}, fmt.Errorf("%w: multiple ranges not supported", ErrInvalidRange)
	}

	spec = strings.TrimSpace(spec)
	dash := strings.Index(spec, "-")
	if dash < 0 {
		return ResolvedRange{}, fmt.Errorf("%w: missing separator in %q", ErrInvalidRange, header)
	}

	startStr := strings.TrimSpace(spec[:dash])
	endStr := strings.TrimSpace(spec[dash+1:])

	if startStr == "" {
		// Suffix range: last N bytes.
		return parseSuffixRange(endStr, size)
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return ResolvedRange{}, fmt.Errorf("%w: bad start in %q", ErrInvalidRange, header)
	}

	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < 0 {
			return ResolvedRange{}, fmt.Errorf("%w: bad end in %q", ErrInvalidRange, header)
		}
		if start > end {
			return ResolvedRange{}, fmt.Errorf("%w: start %d after end %d", ErrInvalidRange, start, end)
		}
		if end > size-1 {
			end = size - 1
		}
	}

	if start >= size {
		return ResolvedRange{}, fmt.Errorf("%w: start %d beyond size %d", ErrUnsatisfiableRange, start, size)
	}

	return ResolvedRange{Start: start, End: end, Size: size, Partial: true}, nil
}

// parseSuffixRange resolves "bytes=-N": the final N bytes of the resource.
func parseSuffixRange(lenStr string, size int64) (ResolvedRange, error) {
	if lenStr == "" {
		return ResolvedRange{}, fmt.Errorf("%w: empty suffix length", ErrInvalidRange)
	}

	suffixLen, err := strconv.ParseInt(lenStr, 10, 64)
	if err != nil || suffixLen < 0 {
		return ResolvedRange{}, fmt.Errorf("%w: bad suffix length %q", ErrInvalidRange, lenStr)
	}
	if suffixLen == 0 {
		return ResolvedRange{}, fmt.Errorf("%w: zero-length suffix", ErrUnsatisfiableRange)
	}

	start := size - suffixLen
	if start < 0 {
		start = 0
	}
	if size == 0 {
		return ResolvedRange{}, fmt.Errorf("%w: empty resource", ErrUnsatisfiableRange)
	}

	return ResolvedRange{Start: start, End: size - 1, Size: size, Partial: true}, nil
}
