// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI zoned block command (ZBC) CDB builders and decoders.

package scsi

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/lunixbochs/struc"
)

const (
	zoneHeaderLen     = 64
	zoneDescriptorLen = 64
)

// ReportZones builds a REPORT ZONES CDB (ZONING IN, service action 0).
func ReportZones(startLBA uint64, allocLen uint32, reportOpts uint8) CDB16 {
	cdb := CDB16{SCSI_ZONING_IN, SA_REPORT_ZONES}
	binary.BigEndian.PutUint64(cdb[2:], startLBA)
	binary.BigEndian.PutUint32(cdb[10:], allocLen)
	cdb[14] = reportOpts & 0x0f

	return cdb
}

// ZoneOut builds a ZONING OUT CDB for the given service action (close, finish, open or reset write
// pointer). When all is set the zone ID is ignored by the device.
func ZoneOut(sa uint8, zoneID uint64, all bool) CDB16 {
	cdb := CDB16{SCSI_ZONING_OUT}
	cdb[1] = sa & 0x1f
	binary.BigEndian.PutUint64(cdb[2:], zoneID)
	if all {
		cdb[14] = 0x01
	}

	return cdb
}

// ResetWritePointer builds a RESET WRITE POINTER CDB.
func ResetWritePointer(zoneID uint64, all bool) CDB16 {
	return ZoneOut(SA_RESET_WRITE_POINTER, zoneID, all)
}

// ZoneOutName returns the command name of a ZONING OUT service action.
func ZoneOutName(sa uint8) string {
	switch sa {
	case SA_CLOSE_ZONE:
		return "Close zone"
	case SA_FINISH_ZONE:
		return "Finish zone"
	case SA_OPEN_ZONE:
		return "Open zone"
	case SA_RESET_WRITE_POINTER:
		return "Reset write pointer"
	}

	return fmt.Sprintf("Zoning out SA=0x%x", sa)
}

var zoneSameDesc = [4]string{
	"zone type and length may differ in each descriptor",
	"zone type and length same in each descriptor",
	"zone type and length same apart from length in last descriptor",
	"Reserved",
}

// ZoneSameDescription describes the SAME field of a REPORT ZONES header.
func ZoneSameDescription(same uint8) string {
	return zoneSameDesc[same&0x3]
}

var zoneTypeNames = map[uint8]string{
	0x1: "Conventional",
	0x2: "Sequential write required",
	0x3: "Sequential write preferred",
}

var zoneConditionNames = map[uint8]string{
	0x0: "No write pointer",
	0x1: "Empty",
	0x2: "Open",
	0xd: "Read only",
	0xe: "Full",
	0xf: "Offline",
}

func zoneName(names map[uint8]string, v uint8, verbose bool) string {
	name, ok := names[v]
	if !ok {
		return fmt.Sprintf("Reserved [0x%x]", v)
	}

	if verbose {
		return fmt.Sprintf("%s [0x%x]", name, v)
	}

	return name
}

// ZoneTypeName names a zone type. Verbose appends the numeric value.
func ZoneTypeName(zt uint8, verbose bool) string {
	return zoneName(zoneTypeNames, zt, verbose)
}

// ZoneConditionName names a zone condition. Verbose appends the numeric value.
func ZoneConditionName(zc uint8, verbose bool) string {
	return zoneName(zoneConditionNames, zc, verbose)
}

type zoneListHeader struct {
	ListLength uint32   `struc:"uint32,big"`
	Same       uint8    `struc:"uint8"`
	Reserved1  [3]byte  `struc:"[3]uint8"`
	MaxLBA     uint64   `struc:"uint64,big"`
	Reserved2  [48]byte `struc:"[48]uint8"`
}

type zoneDescriptor struct {
	ZoneType     uint8    `struc:"uint8"`
	Flags        uint8    `struc:"uint8"`
	Reserved1    [6]byte  `struc:"[6]uint8"`
	Length       uint64   `struc:"uint64,big"`
	StartLBA     uint64   `struc:"uint64,big"`
	WritePointer uint64   `struc:"uint64,big"`
	Reserved2    [32]byte `struc:"[32]uint8"`
}

// Zone is a decoded zone descriptor.
type Zone struct {
	Type         uint8
	Condition    uint8
	NonSeq       bool
	Reset        bool
	Length       uint64
	StartLBA     uint64
	WritePointer uint64
	// Raw holds the 64 descriptor bytes.
	Raw []byte
}

// ZoneList is a decoded REPORT ZONES response.
type ZoneList struct {
	// ListLength is the zone list length reported by the device (excludes the 64-byte header).
	ListLength uint32
	Same       uint8
	MaxLBA     uint64
	Zones      []Zone
	// Truncated is set when the device reported more descriptors than were returned.
	Truncated bool
}

// ZoneListLength returns the number of response bytes worth showing: the reported list plus its
// header, clamped to the bytes actually received. It fails when fewer than 4 bytes were received.
func ZoneListLength(buf []byte) (int, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("%w: response length (%d) too short", ErrMalformed, len(buf))
	}

	zlLen := uint64(binary.BigEndian.Uint32(buf)) + zoneHeaderLen
	if zlLen > uint64(len(buf)) {
		return len(buf), nil
	}

	return int(zlLen), nil
}

// DecodeReportZones decodes a REPORT ZONES response; buf must hold only the bytes actually
// transferred (allocation length minus residual).
func DecodeReportZones(buf []byte) (ZoneList, error) {
	var (
		zl  ZoneList
		hdr zoneListHeader
	)

	n, err := ZoneListLength(buf)
	if err != nil {
		return zl, err
	}

	if n < zoneHeaderLen {
		return zl, fmt.Errorf("%w: zone length [%d] too short (perhaps after truncation)", ErrMalformed, n)
	}

	r := bytes.NewReader(buf[:n])
	if err := struc.Unpack(r, &hdr); err != nil {
		return zl, err
	}

	zl.ListLength = hdr.ListLength
	zl.Same = hdr.Same & 0x3
	zl.MaxLBA = hdr.MaxLBA

	count := (n - zoneHeaderLen) / zoneDescriptorLen
	for k := 0; k < count; k++ {
		var d zoneDescriptor

		off := zoneHeaderLen + k*zoneDescriptorLen
		if err := struc.Unpack(r, &d); err != nil {
			return zl, err
		}

		zl.Zones = append(zl.Zones, Zone{
			Type:         d.ZoneType & 0x0f,
			Condition:    d.Flags >> 4,
			NonSeq:       d.Flags&0x02 != 0,
			Reset:        d.Flags&0x01 != 0,
			Length:       d.Length,
			StartLBA:     d.StartLBA,
			WritePointer: d.WritePointer,
			Raw:          buf[off : off+zoneDescriptorLen],
		})
	}

	zl.Truncated = uint64(zoneHeaderLen+zoneDescriptorLen*count) < uint64(hdr.ListLength)+zoneHeaderLen

	return zl, nil
}
