// Package varint implements the length-prefix encoding used throughout the
// core's wire and on-disk formats. It is a non-standard variable-length
// scheme: values below 255 fit in a single byte; larger values switch to a
// continuation stream whose *cleared* top bit (not set) signals "more
// bytes follow", the inverse of most common varint encodings.
package varint

import "github.com/cuemby/restpose/pkg/rperrors"

// Encode appends the varint encoding of n to buf and returns the result.
func Encode(buf []byte, n uint64) []byte {
	if n < 255 {
		return append(buf, byte(n))
	}
	buf = append(buf, 0xff)
	rem := n - 255
	for {
		b := byte(rem & 0x7f)
		rem >>= 7
		if rem == 0 {
			buf = append(buf, b|0x80)
			return buf
		}
		buf = append(buf, b)
	}
}

// EncodeString returns the varint-length-prefixed encoding of s.
func EncodeString(s string) []byte {
	buf := Encode(make([]byte, 0, len(s)+2), uint64(len(s)))
	return append(buf, s...)
}

// Decode reads one varint-encoded length from buf, returning the decoded
// value and the number of bytes consumed. It fails with a KindUnserialization
// rperrors.Error if buf runs out before a terminating byte is seen.
func Decode(buf []byte) (uint64, int, error) {
	if len(buf) == 0 {
		return 0, 0, rperrors.New(rperrors.KindUnserialization, "varint: empty buffer")
	}
	first := buf[0]
	if first < 0xff {
		return uint64(first), 1, nil
	}

	var value uint64
	var shift uint
	pos := 1
	for {
		if pos >= len(buf) {
			return 0, 0, rperrors.New(rperrors.KindUnserialization, "varint: truncated continuation stream")
		}
		b := buf[pos]
		pos++
		value |= uint64(b&0x7f) << shift
		shift += 7
		if b&0x80 != 0 {
			break
		}
	}
	return value + 255, pos, nil
}

// DecodeChecked is like Decode but additionally fails if the decoded length
// exceeds the number of bytes remaining after the prefix, i.e. remaining
// is the size of the buffer the caller intends to slice the payload from.
func DecodeChecked(buf []byte, remaining int) (uint64, int, error) {
	n, consumed, err := Decode(buf)
	if err != nil {
		return 0, 0, err
	}
	if n > uint64(remaining) {
		return 0, 0, rperrors.New(rperrors.KindUnserialization, "varint: declared length exceeds remaining buffer")
	}
	return n, consumed, nil
}

// DecodeString reads a varint-length-prefixed string from buf, returning the
// string and the total number of bytes consumed (prefix + payload).
func DecodeString(buf []byte) (string, int, error) {
	n, prefixLen, err := Decode(buf)
	if err != nil {
		return "", 0, err
	}
	end := prefixLen + int(n)
	if end > len(buf) || end < prefixLen {
		return "", 0, rperrors.New(rperrors.KindUnserialization, "varint: truncated string payload")
	}
	return string(buf[prefixLen:end]), end, nil
}
