// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI block command (SBC) CDB builders and decoders.

package scsi

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/lunixbochs/struc"
)

// CompareAndWriteParams holds the fields of a COMPARE AND WRITE CDB.
type CompareAndWriteParams struct {
	LBA       uint64
	NumBlocks uint8
	Group     uint8
	WrProtect uint8
	DPO       bool
	FUA       bool
	FUANV     bool
}

// CompareAndWrite builds a COMPARE AND WRITE (16) CDB.
func CompareAndWrite(p CompareAndWriteParams) CDB16 {
	cdb := CDB16{SCSI_COMPARE_AND_WRITE}
	cdb[1] = wrprotectByte(p.WrProtect)
	if p.DPO {
		cdb[1] |= 0x10
	}
	if p.FUA {
		cdb[1] |= 0x08
	}
	if p.FUANV {
		cdb[1] |= 0x02
	}
	binary.BigEndian.PutUint64(cdb[2:], p.LBA)
	// Bytes 10-12 reserved
	cdb[13] = p.NumBlocks
	cdb[14] = p.Group & groupMask

	return cdb
}

// WriteSameParams holds the fields of a WRITE SAME CDB. CDBSize is the requested CDB length (10, 16
// or 32); Want10 records that the 10-byte form was asked for explicitly, which keeps UNMAP from
// forcing an upgrade.
type WriteSameParams struct {
	LBA       uint64
	NumBlocks uint32
	Group     uint8
	WrProtect uint8
	Anchor    bool
	Unmap     bool
	PBData    bool
	LBData    bool
	NDOB      bool
	CDBSize   int
	Want10    bool
}

// WriteSameUpgrade records why a WRITE SAME(10) request was promoted to WRITE SAME(16).
type WriteSameUpgrade int

const (
	NoUpgrade WriteSameUpgrade = iota
	UpgradeBlocks
	UpgradeLBA
	UpgradeFlags
)

func (u WriteSameUpgrade) String() string {
	const cp = "use WRITE SAME(16) instead of 10 byte cdb"

	switch u {
	case UpgradeBlocks:
		return cp + " since blocks exceed 65535"
	case UpgradeLBA:
		return cp + " since LBA may exceed 32 bits"
	case UpgradeFlags:
		return cp + " due to ndob or unmap settings"
	}

	return "no upgrade"
}

// WriteSameSize applies the CDB size decision table and returns the CDB length that will actually
// be used. Only a 10-byte request is ever changed.
func WriteSameSize(p WriteSameParams) (int, WriteSameUpgrade) {
	size := p.CDBSize
	if size == 0 {
		size = 10
	}

	if size != 10 {
		return size, NoUpgrade
	}

	switch {
	case p.NumBlocks > 0xffff:
		return 16, UpgradeBlocks
	case p.LBA+uint64(p.NumBlocks) > 0xffffffff:
		return 16, UpgradeLBA
	case p.NDOB || (p.Unmap && !p.Want10):
		return 16, UpgradeFlags
	}

	return 10, NoUpgrade
}

func writeSameFlags(p WriteSameParams, ndob bool) byte {
	b := wrprotectByte(p.WrProtect)
	if p.Anchor {
		b |= 0x10
	}
	if p.Unmap {
		b |= 0x08
	}
	if p.PBData {
		b |= 0x04
	}
	if p.LBData {
		b |= 0x02
	}
	if ndob && p.NDOB {
		b |= 0x01
	}

	return b
}

// WriteSame builds a WRITE SAME CDB of the size chosen by WriteSameSize. The returned slice is 10,
// 16 or 32 bytes long.
func WriteSame(p WriteSameParams) ([]byte, WriteSameUpgrade) {
	size, upgrade := WriteSameSize(p)

	switch size {
	case 10:
		cdb := CDB10{SCSI_WRITE_SAME_10}
		cdb[1] = writeSameFlags(p, false)
		binary.BigEndian.PutUint32(cdb[2:], uint32(p.LBA))
		cdb[6] = p.Group & groupMask
		binary.BigEndian.PutUint16(cdb[7:], uint16(p.NumBlocks))
		return cdb[:], upgrade
	case 32:
		cdb := CDB32{SCSI_VARIABLE_LENGTH}
		cdb[6] = p.Group & groupMask
		cdb[7] = WRITE_SAME_32_ADD_LEN
		binary.BigEndian.PutUint16(cdb[8:], SA_WRITE_SAME_32)
		cdb[10] = writeSameFlags(p, true)
		binary.BigEndian.PutUint64(cdb[12:], p.LBA)
		binary.BigEndian.PutUint32(cdb[28:], p.NumBlocks)
		return cdb[:], upgrade
	}

	cdb := CDB16{SCSI_WRITE_SAME_16}
	cdb[1] = writeSameFlags(p, true)
	binary.BigEndian.PutUint64(cdb[2:], p.LBA)
	binary.BigEndian.PutUint32(cdb[10:], p.NumBlocks)
	cdb[14] = p.Group & groupMask

	return cdb[:], upgrade
}

// WriteAndVerifyParams holds the fields of a WRITE AND VERIFY CDB.
type WriteAndVerifyParams struct {
	LBA       uint64
	NumBlocks uint32
	Group     uint8
	WrProtect uint8
	ByteCheck uint8
	DPO       bool
}

// WriteAndVerifySize returns 16 when the LBA or block count does not fit WRITE AND VERIFY(10).
func WriteAndVerifySize(lba uint64, num uint32, force16 bool) int {
	if force16 || lba > 0xffffffff || num > 0xffff {
		return 16
	}

	return 10
}

func writeVerifyFlags(p WriteAndVerifyParams) byte {
	b := wrprotectByte(p.WrProtect)
	if p.DPO {
		b |= 0x10
	}

	return b | (p.ByteCheck&0x3)<<1
}

// WriteAndVerify10 builds a WRITE AND VERIFY (10) CDB.
func WriteAndVerify10(p WriteAndVerifyParams) CDB10 {
	cdb := CDB10{SCSI_WRITE_AND_VERIFY_10}
	cdb[1] = writeVerifyFlags(p)
	binary.BigEndian.PutUint32(cdb[2:], uint32(p.LBA))
	cdb[6] = p.Group & groupMask
	binary.BigEndian.PutUint16(cdb[7:], uint16(p.NumBlocks))

	return cdb
}

// WriteAndVerify16 builds a WRITE AND VERIFY (16) CDB.
func WriteAndVerify16(p WriteAndVerifyParams) CDB16 {
	cdb := CDB16{SCSI_WRITE_AND_VERIFY_16}
	cdb[1] = writeVerifyFlags(p)
	binary.BigEndian.PutUint64(cdb[2:], p.LBA)
	binary.BigEndian.PutUint32(cdb[10:], p.NumBlocks)
	cdb[14] = p.Group & groupMask

	return cdb
}

// ReadCapacity10 builds a READ CAPACITY (10) CDB.
func ReadCapacity10() CDB10 {
	return CDB10{SCSI_READ_CAPACITY_10}
}

// ReadCapacity16 builds a READ CAPACITY (16) CDB (SERVICE ACTION IN (16)).
func ReadCapacity16(allocLen uint32) CDB16 {
	cdb := CDB16{SCSI_SERVICE_ACTION_IN_16, SA_READ_CAPACITY_16}
	binary.BigEndian.PutUint32(cdb[10:], allocLen)

	return cdb
}

// Capacity is the decoded READ CAPACITY response.
type Capacity struct {
	LastLBA     uint64
	BlockLength uint32
	ProtEnable  bool
}

type readCapacity16Resp struct {
	LastLBA     uint64   `struc:"uint64,big"`
	BlockLength uint32   `struc:"uint32,big"`
	Flags       uint8    `struc:"uint8"`
	Exponent    uint8    `struc:"uint8"`
	LowestLBA   uint16   `struc:"uint16,big"`
	Reserved    [16]byte `struc:"[16]uint8"`
}

// DecodeReadCapacity10 decodes an 8-byte READ CAPACITY (10) response.
func DecodeReadCapacity10(buf []byte) (Capacity, error) {
	if len(buf) < READ_CAPACITY_10_LEN {
		return Capacity{}, fmt.Errorf("read capacity(10) response too short: %d bytes", len(buf))
	}

	return Capacity{
		LastLBA:     uint64(binary.BigEndian.Uint32(buf)),
		BlockLength: binary.BigEndian.Uint32(buf[4:]),
	}, nil
}

// DecodeReadCapacity16 decodes a 32-byte READ CAPACITY (16) response.
func DecodeReadCapacity16(buf []byte) (Capacity, error) {
	var resp readCapacity16Resp

	if len(buf) < READ_CAPACITY_16_LEN {
		return Capacity{}, fmt.Errorf("read capacity(16) response too short: %d bytes", len(buf))
	}

	if err := struc.Unpack(bytes.NewReader(buf[:READ_CAPACITY_16_LEN]), &resp); err != nil {
		return Capacity{}, err
	}

	return Capacity{
		LastLBA:     resp.LastLBA,
		BlockLength: resp.BlockLength,
		ProtEnable:  resp.Flags&0x01 != 0,
	}, nil
}

// StartStopParams holds the fields of a START STOP UNIT CDB. Modifier carries either the power
// condition modifier or, when FL is set, the format layer number. NoFlush shares its bit with FL.
type StartStopParams struct {
	Immed          bool
	Modifier       uint8
	PowerCondition uint8
	NoFlush        bool
	LoEj           bool
	Start          bool
}

// StartStopUnit builds a START STOP UNIT CDB.
func StartStopUnit(p StartStopParams) CDB6 {
	cdb := CDB6{SCSI_START_STOP_UNIT}
	if p.Immed {
		cdb[1] = 0x01
	}
	cdb[3] = p.Modifier & 0x0f
	cdb[4] = (p.PowerCondition & 0x0f) << 4
	if p.NoFlush {
		cdb[4] |= 0x04
	}
	if p.LoEj {
		cdb[4] |= 0x02
	}
	if p.Start {
		cdb[4] |= 0x01
	}

	return cdb
}
