// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Miscellaneous utility functions

package utils

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// ErrBadNumber is returned when a command line number cannot be parsed.
var ErrBadNumber = errors.New("bad number")

type multiplier struct {
	binary  uint64 // plain suffix, e.g. "k" or "KiB"
	decimal uint64 // "KB" suffix
}

var multipliers = map[byte]multiplier{
	'K': {1 << 10, 1e3},
	'M': {1 << 20, 1e6},
	'G': {1 << 30, 1e9},
	'T': {1 << 40, 1e12},
	'P': {1 << 50, 1e15},
}

// ParseNum parses a command line number in the customary sg3_utils manner. Accepted forms are
// decimal, hex with a leading "0x" or trailing "h", decimal followed by a multiplier suffix (c=1,
// w=2, b=512, k/m/g/t/p as powers of 1024, KB/MB/... as powers of 1000, KiB/MiB/... as powers of
// 1024) and NxM products.
func ParseNum(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrBadNumber
	}

	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return parseHex(s[2:])
	}

	if c := s[len(s)-1]; c == 'h' || c == 'H' {
		return parseHex(s[:len(s)-1])
	}

	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, s)
	}

	num, err := strconv.ParseUint(s[:i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, s)
	}

	suffix := s[i:]
	if suffix == "" {
		return num, nil
	}

	var mult uint64

	switch c := upper(suffix[0]); c {
	case 'C':
		mult = 1
	case 'W':
		mult = 2
	case 'B':
		mult = 512
	case 'X':
		num2, err := ParseNum(suffix[1:])
		if err != nil {
			return 0, err
		}
		return mulChecked(num, num2, s)
	default:
		m, ok := multipliers[c]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrBadNumber, s)
		}
		switch strings.ToUpper(suffix[1:]) {
		case "":
			mult = m.binary
		case "B":
			mult = m.decimal
		case "IB":
			mult = m.binary
		default:
			return 0, fmt.Errorf("%w: %q", ErrBadNumber, s)
		}
		return mulChecked(num, mult, s)
	}

	if len(suffix) > 1 {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, s)
	}

	return mulChecked(num, mult, s)
}

// ParseNumMax parses a number and checks that it does not exceed max.
func ParseNumMax(s string, max uint64) (uint64, error) {
	v, err := ParseNum(s)
	if err != nil {
		return 0, err
	}

	if v > max {
		return 0, fmt.Errorf("%w: %q exceeds %d", ErrBadNumber, s, max)
	}

	return v, nil
}

func parseHex(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad hex number %q", ErrBadNumber, s)
	}

	return v, nil
}

func mulChecked(a, b uint64, s string) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, fmt.Errorf("%w: %q overflows", ErrBadNumber, s)
	}

	return lo, nil
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}

	return c
}
