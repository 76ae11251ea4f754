package schema

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/cuemby/restpose/pkg/rperrors"
)

// encodeDate parses a "YYYY-MM-DD" date (arbitrary-length year, optional
// leading "-" for a negative/BCE year) and emits sortable bytes: the
// proleptic Gregorian ordinal day number, encoded so byte-wise comparison
// matches calendar order.
func encodeDate(s string) ([]byte, error) {
	neg := false
	rest := s
	if strings.HasPrefix(rest, "-") {
		neg = true
		rest = rest[1:]
	}
	parts := strings.Split(rest, "-")
	if len(parts) != 3 {
		return nil, rperrors.Invalidf("date %q is not in YYYY-MM-DD form", s)
	}
	year, err := strconv.ParseInt(parts[0], 10, 63)
	if err != nil {
		return nil, rperrors.Invalidf("date %q has an invalid year", s)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return nil, rperrors.Invalidf("date %q has an invalid month", s)
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil || day < 1 || day > 31 {
		return nil, rperrors.Invalidf("date %q has an invalid day", s)
	}
	if neg {
		year = -year
	}
	ordinal := gregorianOrdinal(year, month, day)
	return encodeSortableInt64(ordinal), nil
}

// gregorianOrdinal computes the proleptic Gregorian day number for
// year-month-day, valid for any (possibly negative) year.
func gregorianOrdinal(year int64, month, day int) int64 {
	a := floorDiv(int64(14-month), 12)
	y := year + 4800 - a
	m := int64(month) + 12*a - 3
	return int64(day) + floorDiv(153*m+2, 5) + 365*y + floorDiv(y, 4) - floorDiv(y, 100) + floorDiv(y, 400) - 32045
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// encodeSortableInt64 maps a signed 64-bit ordinal to 8 bytes whose
// big-endian byte order matches numeric order.
func encodeSortableInt64(n int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n)^0x8000000000000000)
	return buf
}

// encodeSortableUint encodes a non-negative integer as 8 big-endian bytes.
func encodeSortableUint(n uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}
