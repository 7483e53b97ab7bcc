// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SAM-5 hierarchical LUN decoding and Linux LUN conversions.

package scsi

import (
	"fmt"
	"io"
	"strings"
)

// LUN addressing methods (top two bits of each level)
const (
	LUN_METHOD_PERIPHERAL   = 0
	LUN_METHOD_FLAT         = 1
	LUN_METHOD_LOGICAL_UNIT = 2
	LUN_METHOD_EXTENDED     = 3
)

// LUNHeading is the line introducing a LUN level.
type LUNHeading int

const (
	HeadingNone LUNHeading = iota
	// First level of an LU_CONG LUN
	HeadingAdministrative
	// Later level of an LU_CONG LUN
	HeadingSubsidiary
	// Second, third or fourth level of a plain LUN
	HeadingNextLevel
)

// LUNLevelKind identifies how a LUN level was decoded.
type LUNLevelKind int

const (
	KindPeripheral LUNLevelKind = iota
	KindSimpleLU
	KindFlat
	KindFlatUnexpected
	KindLogicalUnit
	KindLogicalUnitUnexpected
	KindWellKnown
	KindExtendedFlat
	KindLongExtendedFlat
	KindExtendedNotSpecified
	KindExtended
	// Subsidiary element of 0x0000 terminating an LU_CONG LUN
	KindAdministrativeLU
)

// LUNLevel is one decoded two-byte addressing level.
type LUNLevel struct {
	Index   int
	Heading LUNHeading
	Kind    LUNLevelKind
	Method  uint8
	BusID   uint8
	Target  uint8
	// Value is the LUN, well known LU number or extended address, depending on Kind.
	Value    uint64
	LenField uint8
	EAMethod uint8
	// UnexpectedNext is set when a logical unit addressed level is followed by non-zero bytes.
	UnexpectedNext bool
}

// LUNDecoding is the result of walking an 8-byte LUN.
type LUNDecoding struct {
	NotSpecified bool
	Levels       []LUNLevel
}

var lunNotSpecified = [8]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// lunByte returns lun[i], or zero past the end of the LUN. Extended addressing at a later level can
// describe more bytes than remain.
func lunByte(lun [8]byte, i int) uint64 {
	if i >= len(lun) {
		return 0
	}

	return uint64(lun[i])
}

func lunBytes(lun [8]byte, off, n int) uint64 {
	var v uint64

	for j := 0; j < n; j++ {
		v = v<<8 | lunByte(lun, off+j)
	}

	return v
}

// DecodeLUN walks the (up to) four addressing levels of a LUN. When luCong is set the first level
// is an administrative element and later levels are subsidiary elements.
func DecodeLUN(lun [8]byte, luCong bool) LUNDecoding {
	var d LUNDecoding

	if lun == lunNotSpecified {
		d.NotSpecified = true
		return d
	}

	luCongAdmin := luCong

	for k := 0; k < 4; k++ {
		p := 2 * k
		b0, b1 := lun[p], lun[p+1]
		lvl := LUNLevel{Index: k}
		nextLevel := false

		if k > 0 {
			if luCong {
				luCongAdmin = false
				if b0 == 0 && b1 == 0 {
					lvl.Heading = HeadingNone
					lvl.Kind = KindAdministrativeLU
					d.Levels = append(d.Levels, lvl)
					break
				}
				lvl.Heading = HeadingSubsidiary
			} else {
				lvl.Heading = HeadingNextLevel
			}
		} else if luCong {
			lvl.Heading = HeadingAdministrative
		}

		lvl.Method = b0 >> 6

		switch lvl.Method {
		case LUN_METHOD_PERIPHERAL:
			if luCong {
				lvl.Kind = KindSimpleLU
				lvl.Value = uint64(b0&0x3f)<<8 | uint64(b1)
				nextLevel = luCongAdmin
			} else {
				lvl.Kind = KindPeripheral
				lvl.BusID = b0 & 0x3f
				lvl.Value = uint64(b1)
				nextLevel = lvl.BusID != 0
			}
		case LUN_METHOD_FLAT:
			lvl.Kind = KindFlat
			if luCong {
				lvl.Kind = KindFlatUnexpected
			}
			lvl.Value = uint64(b0&0x3f)<<8 | uint64(b1)
		case LUN_METHOD_LOGICAL_UNIT:
			lvl.Kind = KindLogicalUnit
			if luCong {
				lvl.Kind = KindLogicalUnitUnexpected
			}
			lvl.Target = b0 & 0x3f
			lvl.BusID = (b1 >> 5) & 0x7
			lvl.Value = uint64(b1 & 0x1f)
		case LUN_METHOD_EXTENDED:
			lvl.LenField = (b0 & 0x30) >> 4
			lvl.EAMethod = b0 & 0x0f
			switch {
			case lvl.LenField == 0 && lvl.EAMethod == 1:
				lvl.Kind = KindWellKnown
				lvl.Value = uint64(b1)
			case lvl.LenField == 1 && lvl.EAMethod == 2:
				lvl.Kind = KindExtendedFlat
				lvl.Value = lunBytes(lun, p+1, 3)
			case lvl.LenField == 2 && lvl.EAMethod == 2:
				lvl.Kind = KindLongExtendedFlat
				lvl.Value = lunBytes(lun, p+1, 5)
			case lvl.LenField == 3 && lvl.EAMethod == 0xf:
				lvl.Kind = KindExtendedNotSpecified
			default:
				lvl.Kind = KindExtended
				switch lvl.LenField {
				case 0:
					lvl.Value = uint64(b1)
				case 1:
					lvl.Value = lunBytes(lun, p+1, 3)
				case 2:
					lvl.Value = lunBytes(lun, p+1, 5)
				default:
					lvl.Value = lunBytes(lun, p+1, 7)
				}
			}
		}

		if nextLevel {
			d.Levels = append(d.Levels, lvl)
			continue
		}

		if lvl.Method == LUN_METHOD_LOGICAL_UNIT && k < 3 && (lun[p+2] != 0 || lun[p+3] != 0) {
			lvl.UnexpectedNext = true
		}

		d.Levels = append(d.Levels, lvl)
		break
	}

	return d
}

var levelNames = [4]string{"First", "Second", "Third", "Fourth"}

var wellKnownLUNames = map[uint64]string{
	1: "REPORT LUNS",
	2: "ACCESS CONTROLS",
	3: "TARGET LOG PAGES",
	4: "SECURITY PROTOCOL",
	5: "MANAGEMENT PROTOCOL",
}

// Format writes the decoded LUN in the customary sg_luns layout, each line prefixed by leadin.
// Hex selects hexadecimal values; verbose shows the bus_id of peripheral addressing even when zero.
func (d LUNDecoding) Format(w io.Writer, leadin string, hex, verbose bool) {
	if d.NotSpecified {
		fmt.Fprintf(w, "%sLogical unit not specified\n", leadin)
		return
	}

	for _, lvl := range d.Levels {
		l := leadin

		switch lvl.Heading {
		case HeadingAdministrative:
			fmt.Fprintf(w, "%s>>Administrative element:\n", l)
			l += "  "
		case HeadingSubsidiary:
			fmt.Fprintf(w, "%s>>Subsidiary element:\n", l)
			l += "  "
		case HeadingNextLevel:
			fmt.Fprintf(w, "%s>>%s level addressing:\n", l, levelNames[lvl.Index])
			l += "  "
		}

		formatLevel(w, l, lvl, hex, verbose)

		if lvl.UnexpectedNext {
			fmt.Fprintf(w, "%s<<unexpected data at next level, continue>>\n", l)
		}
	}
}

// String renders the decoding with no leadin, decimal values.
func (d LUNDecoding) String() string {
	var sb strings.Builder

	d.Format(&sb, "", false, false)
	return sb.String()
}

func formatLevel(w io.Writer, l string, lvl LUNLevel, hex, verbose bool) {
	pick := func(h, dec string) string {
		if hex {
			return h
		}
		return dec
	}

	switch lvl.Kind {
	case KindAdministrativeLU:
		fmt.Fprintf(w, "%s>>>> Administrative LU\n", l)
		if hex || verbose {
			fmt.Fprintf(w, "        since Subsidiary element is 0x0000\n")
		}
	case KindSimpleLU:
		fmt.Fprintf(w, pick("%sSimple lu addressing: 0x%04x\n", "%sSimple lu addressing: %d\n"), l, lvl.Value)
	case KindPeripheral:
		b := l + "Peripheral device addressing: "
		if lvl.BusID == 0 && !verbose {
			fmt.Fprintf(w, pick("%slun=0x%02x\n", "%slun=%d\n"), b, lvl.Value)
		} else {
			name := "lun"
			if lvl.BusID != 0 {
				name = "target"
			}
			fmt.Fprintf(w, pick("%sbus_id=0x%02x, %s=0x%02x\n", "%sbus_id=%d, %s=%d\n"), b, lvl.BusID, name, lvl.Value)
		}
	case KindFlatUnexpected:
		fmt.Fprintf(w, "%sSince LU_CONG=1, unexpected Flat space addressing: lun=0x%04x\n", l, lvl.Value)
	case KindFlat:
		fmt.Fprintf(w, pick("%sFlat space addressing: lun=0x%04x\n", "%sFlat space addressing: lun=%d\n"), l, lvl.Value)
	case KindLogicalUnitUnexpected:
		fmt.Fprintf(w, "%sSince LU_CONG=1, unexpected lu addressing: bus_id=0x%x, target=0x%02x, lun=0x%02x\n",
			l, lvl.BusID, lvl.Target, lvl.Value)
	case KindLogicalUnit:
		fmt.Fprintf(w, pick("%sLogical unit addressing: bus_id=0x%x, target=0x%02x, lun=0x%02x\n",
			"%sLogical unit addressing: bus_id=%d, target=%d, lun=%d\n"), l, lvl.BusID, lvl.Target, lvl.Value)
	case KindWellKnown:
		const wk = "well known logical unit"
		if name, ok := wellKnownLUNames[lvl.Value]; ok {
			fmt.Fprintf(w, "%s%s %s\n", l, name, wk)
		} else {
			fmt.Fprintf(w, pick("%s%s 0x%02x\n", "%s%s %d\n"), l, wk, lvl.Value)
		}
	case KindExtendedFlat:
		fmt.Fprintf(w, pick("%sExtended flat space addressing: lun=0x%06x\n",
			"%sExtended flat space addressing: lun=%d\n"), l, lvl.Value)
	case KindLongExtendedFlat:
		fmt.Fprintf(w, pick("%sLong extended flat space addressing: lun=0x%010x\n",
			"%sLong extended flat space addressing: lun=%d\n"), l, lvl.Value)
	case KindExtendedNotSpecified:
		fmt.Fprintf(w, "%sLogical unit _not_ specified addressing\n", l)
	case KindExtended:
		if lvl.LenField < 2 {
			fmt.Fprintf(w, pick("%sExtended logical unit addressing: length=%d, e.a. method=%d, value=0x%06x\n",
				"%sExtended logical unit addressing: length=%d, e.a. method=%d, value=%d\n"),
				l, lvl.LenField, lvl.EAMethod, lvl.Value)
		} else if !hex {
			fmt.Fprintf(w, "%sExtended logical unit addressing: length=%d, e. a. method=%d, value=%d\n",
				l, lvl.LenField, lvl.EAMethod, lvl.Value)
		} else if lvl.LenField == 2 {
			fmt.Fprintf(w, "%sExtended logical unit addressing: length=%d, e. a. method=%d, value=0x%010x\n",
				l, lvl.LenField, lvl.EAMethod, lvl.Value)
		} else {
			fmt.Fprintf(w, "%sExtended logical unit addressing: length=%d, e. a. method=%d, value=0x%014x\n",
				l, lvl.LenField, lvl.EAMethod, lvl.Value)
		}
	}
}

// LinuxToT10 converts a Linux integer LUN into the 8-byte T10 representation. Each 16-bit word of
// the integer, least significant first, becomes the next addressing level.
func LinuxToT10(lun uint64) [8]byte {
	var t10 [8]byte

	for k := 0; k < 4; k++ {
		t10[2*k] = byte(lun >> 8)
		t10[2*k+1] = byte(lun)
		lun >>= 16
	}

	return t10
}

// T10ToLinux converts a T10 LUN into the Linux "word flipped" integer representation.
func T10ToLinux(t10 [8]byte) uint64 {
	var lun uint64

	for k := 3; k >= 0; k-- {
		lun = lun<<16 | uint64(t10[2*k])<<8 | uint64(t10[2*k+1])
	}

	return lun
}

// LegacyT10ToLinux reproduces the historic kernel conversion (scsilun_to_int, up to Linux 3.8)
// naively extended to 64 bits with 32-bit int arithmetic. It is kept for comparison only and gives
// wrong answers: shifts of 32 bits or more yield zero, so only the first two levels survive, and
// a second level word of 0x8000 or more is sign extended into the upper 32 bits.
func LegacyT10ToLinux(t10 [8]byte) uint64 {
	var lun uint64

	for i := 0; i < 8; i += 2 {
		word := int32(t10[i])<<8 | int32(t10[i+1])
		lun |= uint64(int64(word << uint(i*8)))
	}

	return lun
}
