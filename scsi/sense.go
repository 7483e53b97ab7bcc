// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI sense data parsing.

package scsi

import (
	"encoding/binary"
	"fmt"
)

// Sense keys
const (
	SENSE_NO_SENSE        = 0x0
	SENSE_RECOVERED_ERROR = 0x1
	SENSE_NOT_READY       = 0x2
	SENSE_MEDIUM_ERROR    = 0x3
	SENSE_HARDWARE_ERROR  = 0x4
	SENSE_ILLEGAL_REQUEST = 0x5
	SENSE_UNIT_ATTENTION  = 0x6
	SENSE_DATA_PROTECT    = 0x7
	SENSE_BLANK_CHECK     = 0x8
	SENSE_VENDOR_SPECIFIC = 0x9
	SENSE_COPY_ABORTED    = 0xa
	SENSE_ABORTED_COMMAND = 0xb
	SENSE_VOLUME_OVERFLOW = 0xd
	SENSE_MISCOMPARE      = 0xe
)

// Sense data descriptor types
const (
	SENSE_DESC_INFORMATION = 0x00
	SENSE_DESC_ATA_RETURN  = 0x09
)

// Sense is parsed fixed or descriptor format sense data.
type Sense struct {
	ResponseCode uint8
	Key          uint8
	ASC          uint8
	ASCQ         uint8
	// Raw holds the sense bytes as returned by the device.
	Raw []byte
}

// ParseSense parses the sense key and additional sense code of b. It returns false when b is too
// short or the response code is not one of 0x70-0x73.
func ParseSense(b []byte) (Sense, bool) {
	var s Sense

	if len(b) < 2 {
		return s, false
	}

	s.ResponseCode = b[0] & 0x7f
	s.Raw = b

	switch s.ResponseCode {
	case 0x70, 0x71:
		if len(b) > 2 {
			s.Key = b[2] & 0x0f
		}
		if len(b) > 13 {
			s.ASC = b[12]
			s.ASCQ = b[13]
		}
	case 0x72, 0x73:
		s.Key = b[1] & 0x0f
		if len(b) > 3 {
			s.ASC = b[2]
			s.ASCQ = b[3]
		}
	default:
		return Sense{}, false
	}

	return s, true
}

// IsDescriptorFormat reports whether the sense data uses descriptor format.
func (s Sense) IsDescriptorFormat() bool {
	return s.ResponseCode >= 0x72
}

// Descriptor returns the first sense data descriptor of type typ, including its two header bytes.
// Fixed format sense never carries descriptors.
func (s Sense) Descriptor(typ uint8) ([]byte, bool) {
	if !s.IsDescriptorFormat() || len(s.Raw) < 8 {
		return nil, false
	}

	end := 8 + int(s.Raw[7])
	if end > len(s.Raw) {
		end = len(s.Raw)
	}

	for off := 8; off+1 < end; {
		dlen := 2 + int(s.Raw[off+1])
		if s.Raw[off] == typ {
			if off+dlen > end {
				return s.Raw[off:end], true
			}
			return s.Raw[off : off+dlen], true
		}
		off += dlen
	}

	return nil, false
}

// Info returns the information field and whether it is valid.
func (s Sense) Info() (uint64, bool) {
	if !s.IsDescriptorFormat() {
		if len(s.Raw) < 7 || s.Raw[0]&0x80 == 0 {
			return 0, false
		}
		return uint64(binary.BigEndian.Uint32(s.Raw[3:])), true
	}

	d, ok := s.Descriptor(SENSE_DESC_INFORMATION)
	if !ok || len(d) < 12 || d[2]&0x80 == 0 {
		return 0, false
	}

	return binary.BigEndian.Uint64(d[4:]), true
}

var senseKeyNames = [16]string{
	"No Sense",
	"Recovered Error",
	"Not Ready",
	"Medium Error",
	"Hardware Error",
	"Illegal Request",
	"Unit Attention",
	"Data Protect",
	"Blank Check",
	"Vendor specific",
	"Copy Aborted",
	"Aborted Command",
	"Key=12",
	"Volume Overflow",
	"Miscompare",
	"Completed",
}

// SenseKeyString returns the short name of a sense key.
func SenseKeyString(key uint8) string {
	return senseKeyNames[key&0x0f]
}

func (s Sense) String() string {
	format := "Fixed"
	if s.IsDescriptorFormat() {
		format = "Descriptor"
	}

	if s.ResponseCode&0x01 != 0 {
		format += " format, deferred error"
	} else {
		format += " format, current"
	}

	return fmt.Sprintf("%s; Sense key: %s; asc=0x%02x, ascq=0x%02x", format, SenseKeyString(s.Key), s.ASC, s.ASCQ)
}
