// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package utils

import (
	"bytes"
	"fmt"
	"io"
)

const (
	hexLineLen  = 80
	hexByteCol  = 5
	hexASCIICol = 60
)

func blankLine() []byte {
	return bytes.Repeat([]byte{' '}, hexLineLen)
}

// HexDump writes b as lines of 16 hex bytes, with an extra space after the eighth. When noASCII is
// zero each line starts with its offset and ends with a printable ASCII rendering; a positive
// noASCII keeps the offset but omits the ASCII column; a negative noASCII prints hex bytes only.
func HexDump(w io.Writer, b []byte, noASCII int) {
	if len(b) == 0 {
		return
	}

	if noASCII < 0 {
		hexDumpBare(w, b)
		return
	}

	var (
		addr int
		bpos = hexByteCol
		cpos = hexASCIICol
		line = blankLine()
	)

	putAddr := func() {
		s := fmt.Sprintf("%.2x", addr)
		copy(line[1:], s)
	}
	flush := func(l []byte) {
		if noASCII > 0 {
			l = bytes.TrimRight(l, " ")
		}
		w.Write(append(l, '\n'))
	}

	putAddr()

	for _, c := range b {
		bpos += 3
		if bpos == hexByteCol+9*3 {
			bpos++
		}
		copy(line[bpos:], fmt.Sprintf("%.2x", c))

		if noASCII > 0 {
			line[cpos] = ' '
		} else if c < ' ' || c >= 0x7f {
			line[cpos] = '.'
		} else {
			line[cpos] = c
		}
		cpos++

		if cpos > hexASCIICol+15 {
			flush(line[:cpos])
			bpos = hexByteCol
			cpos = hexASCIICol
			addr += 16
			line = blankLine()
			putAddr()
		}
	}

	if cpos > hexASCIICol {
		flush(line[:cpos])
	}
}

func hexDumpBare(w io.Writer, b []byte) {
	bpos := hexByteCol
	line := blankLine()

	for k, c := range b {
		bpos += 3
		if bpos == hexByteCol+9*3 {
			bpos++
		}
		copy(line[bpos:], fmt.Sprintf("%.2x", c))

		if (k+1)%16 == 0 {
			w.Write(append(bytes.TrimRight(line, " "), '\n'))
			bpos = hexByteCol
			line = blankLine()
		}
	}

	if bpos > hexByteCol {
		w.Write(append(bytes.TrimRight(line[:bpos+2], " "), '\n'))
	}
}
