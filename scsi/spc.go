// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI primary command (SPC) CDB builders and decoders.

package scsi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned by decoders when a response is too short to contain the fields they need.
var ErrMalformed = errors.New("response malformed")

// Inquiry builds a standard INQUIRY CDB.
func Inquiry(allocLen uint16) CDB6 {
	cdb := CDB6{SCSI_INQUIRY}
	binary.BigEndian.PutUint16(cdb[3:], allocLen)

	return cdb
}

// InquiryData holds the fields of a standard INQUIRY response used by these tools.
type InquiryData struct {
	PeripheralQualifier uint8
	PeripheralType      uint8
	LUCong              bool
	Vendor              string
	Product             string
	Revision            string
}

// DecodeInquiry decodes a standard INQUIRY response. Only the first 8 bytes are mandatory; the
// identification strings are filled in when present.
func DecodeInquiry(buf []byte) (InquiryData, error) {
	var inq InquiryData

	if len(buf) < 8 {
		return inq, ErrMalformed
	}

	inq.PeripheralQualifier = buf[0] >> 5
	inq.PeripheralType = buf[0] & 0x1f
	inq.LUCong = buf[1]&0x40 != 0

	if len(buf) >= INQ_REPLY_LEN {
		inq.Vendor = strings.TrimSpace(string(buf[8:16]))
		inq.Product = strings.TrimSpace(string(buf[16:32]))
		inq.Revision = strings.TrimSpace(string(buf[32:36]))
	}

	return inq, nil
}

// ReportLuns builds a REPORT LUNS CDB.
func ReportLuns(selectReport uint8, allocLen uint32) CDB12 {
	cdb := CDB12{SCSI_REPORT_LUNS}
	cdb[2] = selectReport
	binary.BigEndian.PutUint32(cdb[6:], allocLen)

	return cdb
}

// ReportLunsList is a decoded REPORT LUNS parameter list.
type ReportLunsList struct {
	// ListLength is the LUN list length in bytes as reported by the device (excludes the header).
	ListLength uint32
	LUNs       [][8]byte
	// Truncated is set when the device had more LUNs than fitted in the buffer.
	Truncated bool
}

// Entries returns the number of LUNs implied by ListLength.
func (r ReportLunsList) Entries() int {
	return int(r.ListLength / 8)
}

// DecodeReportLuns decodes a REPORT LUNS response. The length of buf is taken as the allocation
// length that was used.
func DecodeReportLuns(buf []byte) (ReportLunsList, error) {
	var r ReportLunsList

	if len(buf) < 8 {
		return r, ErrMalformed
	}

	r.ListLength = binary.BigEndian.Uint32(buf)

	n := uint64(r.ListLength)
	if n+8 > uint64(len(buf)) {
		n = uint64(len(buf) - 8)
		r.Truncated = true
	}

	count := int(n / 8)
	r.LUNs = make([][8]byte, count)
	for k := 0; k < count; k++ {
		copy(r.LUNs[k][:], buf[8+8*k:])
	}

	return r, nil
}

// READ BUFFER modes
const (
	RB_MODE_HEADER_DATA = 0x00
	RB_MODE_VENDOR      = 0x01
	RB_MODE_DATA        = 0x02
	RB_MODE_DESCRIPTOR  = 0x03
	RB_MODE_ECHO_BUFFER = 0x0a
	RB_MODE_ECHO_BDESC  = 0x0b
	RB_MODE_EN_EX_ECHO  = 0x1a
	RB_MODE_ERR_HISTORY = 0x1c
)

// ReadBufferMode names a READ BUFFER mode.
type ReadBufferMode struct {
	Name    string
	Mode    uint8
	Comment string
}

// ReadBufferModes lists the symbolic READ BUFFER modes.
var ReadBufferModes = []ReadBufferMode{
	{"hd", RB_MODE_HEADER_DATA, "combined header and data"},
	{"vendor", RB_MODE_VENDOR, "vendor specific"},
	{"data", RB_MODE_DATA, "data"},
	{"desc", RB_MODE_DESCRIPTOR, "descriptor"},
	{"echo", RB_MODE_ECHO_BUFFER, "read data from echo buffer (spc-2)"},
	{"echo_desc", RB_MODE_ECHO_BDESC, "echo buffer descriptor (spc-2)"},
	{"en_ex", RB_MODE_EN_EX_ECHO, "enable expander communications protocol and echo buffer (spc-3)"},
	{"err_hist", RB_MODE_ERR_HISTORY, "error history (spc-4)"},
}

// LookupReadBufferMode returns the first mode whose name starts with prefix.
func LookupReadBufferMode(prefix string) (ReadBufferMode, bool) {
	if prefix == "" {
		return ReadBufferMode{}, false
	}

	for _, m := range ReadBufferModes {
		if strings.HasPrefix(m.Name, prefix) {
			return m, true
		}
	}

	return ReadBufferMode{}, false
}

// ReadBufferParams holds the fields of a READ BUFFER CDB.
type ReadBufferParams struct {
	Mode         uint8
	ModeSpecific uint8
	ID           uint8
	Offset       uint64
	Length       uint32
}

func (p ReadBufferParams) modeByte() byte {
	return p.Mode&0x1f | (p.ModeSpecific&0x7)<<5
}

// ReadBuffer10 builds a READ BUFFER (10) CDB. Offset and length are 24-bit fields.
func ReadBuffer10(p ReadBufferParams) CDB10 {
	cdb := CDB10{SCSI_READ_BUFFER_10}
	cdb[1] = p.modeByte()
	cdb[2] = p.ID
	putBE24(cdb[3:], uint32(p.Offset))
	putBE24(cdb[6:], p.Length)

	return cdb
}

// ReadBuffer16 builds a READ BUFFER (16) CDB.
func ReadBuffer16(p ReadBufferParams) CDB16 {
	cdb := CDB16{SCSI_READ_BUFFER_16}
	cdb[1] = p.modeByte()
	binary.BigEndian.PutUint64(cdb[2:], p.Offset)
	putBE24(cdb[11:], p.Length)
	cdb[14] = p.ID

	return cdb
}

// BufferDescriptor is the READ BUFFER descriptor mode payload.
type BufferDescriptor struct {
	OffsetBoundary uint8
	Capacity       uint32
}

// Alignment returns the buffer offset alignment in bytes.
func (d BufferDescriptor) Alignment() uint64 {
	return 1 << d.OffsetBoundary
}

func (d BufferDescriptor) String() string {
	return fmt.Sprintf("OFFSET BOUNDARY: %d, Buffer offset alignment: %d-byte\nBUFFER CAPACITY: %d (0x%x)\n",
		d.OffsetBoundary, d.Alignment(), d.Capacity, d.Capacity)
}

// DecodeBufferDescriptor decodes the 4-byte descriptor mode payload.
func DecodeBufferDescriptor(buf []byte) (BufferDescriptor, error) {
	if len(buf) < 4 {
		return BufferDescriptor{}, ErrMalformed
	}

	return BufferDescriptor{OffsetBoundary: buf[0], Capacity: getBE24(buf[1:])}, nil
}

// EchoBufferDescriptor is the READ BUFFER echo buffer descriptor mode payload.
type EchoBufferDescriptor struct {
	EBOS     bool
	Capacity uint16
}

func (d EchoBufferDescriptor) String() string {
	ebos := 0
	if d.EBOS {
		ebos = 1
	}

	return fmt.Sprintf("EBOS:%d\nEcho buffer capacity: %d (0x%x)\n", ebos, d.Capacity, d.Capacity)
}

// DecodeEchoBufferDescriptor decodes the 4-byte echo buffer descriptor payload.
func DecodeEchoBufferDescriptor(buf []byte) (EchoBufferDescriptor, error) {
	if len(buf) < 4 {
		return EchoBufferDescriptor{}, ErrMalformed
	}

	return EchoBufferDescriptor{
		EBOS:     buf[0]&0x01 != 0,
		Capacity: uint16(buf[2]&0x1f)<<8 | uint16(buf[3]),
	}, nil
}
