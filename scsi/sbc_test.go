// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package scsi

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareAndWrite(t *testing.T) {
	assert := assert.New(t)

	cdb := CompareAndWrite(CompareAndWriteParams{
		LBA:       0x1122334455667788,
		NumBlocks: 2,
		Group:     0x25,
		WrProtect: 3,
		DPO:       true,
		FUA:       true,
		FUANV:     true,
	})

	assert.Equal(CDB16{0x89, 0x7a, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0, 0, 0, 0x02, 0x05, 0}, cdb)
}

func TestWrprotectAndGroupFields(t *testing.T) {
	for wp := uint8(0); wp < 8; wp++ {
		for group := uint8(0); group < 32; group++ {
			caw := CompareAndWrite(CompareAndWriteParams{WrProtect: wp, Group: group})
			assert.Equal(t, wp, caw[1]>>5)
			assert.Equal(t, group, caw[14])

			wv := WriteAndVerify16(WriteAndVerifyParams{WrProtect: wp, Group: group})
			assert.Equal(t, wp, wv[1]>>5)
			assert.Equal(t, group, wv[14])

			ws, _ := WriteSame(WriteSameParams{WrProtect: wp, Group: group, CDBSize: 16})
			assert.Equal(t, wp, ws[1]>>5)
			assert.Equal(t, group, ws[14])
		}
	}
}

func TestLBARoundTrip(t *testing.T) {
	for _, lba := range []uint64{0, 1, 0xffffffff, 0x100000000, 0xfedcba9876543210} {
		cdb := WriteAndVerify16(WriteAndVerifyParams{LBA: lba})
		assert.Equal(t, lba, GetUnalignedBE(cdb[2:10]))

		caw := CompareAndWrite(CompareAndWriteParams{LBA: lba})
		assert.Equal(t, lba, binary.BigEndian.Uint64(caw[2:]))
	}
}

func TestWriteSameUpgrade(t *testing.T) {
	assert := assert.New(t)

	cdb, up := WriteSame(WriteSameParams{LBA: 0x1000, NumBlocks: 70000, CDBSize: 10})
	require.Len(t, cdb, 16)
	assert.Equal(UpgradeBlocks, up)
	assert.Equal(byte(SCSI_WRITE_SAME_16), cdb[0])
	assert.Equal([]byte{0x00, 0x01, 0x11, 0x70}, cdb[10:14])
	assert.Equal("use WRITE SAME(16) instead of 10 byte cdb since blocks exceed 65535", up.String())

	_, up = WriteSame(WriteSameParams{LBA: 0xfffffff0, NumBlocks: 0x20, CDBSize: 10})
	assert.Equal(UpgradeLBA, up)

	_, up = WriteSame(WriteSameParams{NumBlocks: 1, NDOB: true, CDBSize: 10, Want10: true})
	assert.Equal(UpgradeFlags, up)

	_, up = WriteSame(WriteSameParams{NumBlocks: 1, Unmap: true})
	assert.Equal(UpgradeFlags, up)

	// Explicitly asking for the 10 byte form keeps it for UNMAP
	cdb, up = WriteSame(WriteSameParams{LBA: 0x12345678, NumBlocks: 8, Unmap: true, CDBSize: 10, Want10: true, Group: 3})
	assert.Equal(NoUpgrade, up)
	assert.Equal([]byte{0x41, 0x08, 0x12, 0x34, 0x56, 0x78, 0x03, 0x00, 0x08, 0x00}, cdb)

	// Larger requests are never changed
	size, up := WriteSameSize(WriteSameParams{NumBlocks: 70000, CDBSize: 32})
	assert.Equal(32, size)
	assert.Equal(NoUpgrade, up)
}

func TestWriteSame32(t *testing.T) {
	assert := assert.New(t)

	cdb, _ := WriteSame(WriteSameParams{
		LBA:       0x0102030405060708,
		NumBlocks: 0x11223344,
		Group:     7,
		Anchor:    true,
		NDOB:      true,
		PBData:    true,
		CDBSize:   32,
	})
	require.Len(t, cdb, 32)

	assert.Equal(byte(SCSI_VARIABLE_LENGTH), cdb[0])
	assert.Equal(byte(7), cdb[6])
	assert.Equal(byte(0x18), cdb[7])
	assert.Equal([]byte{0x00, 0x0d}, cdb[8:10])
	assert.Equal(byte(0x15), cdb[10])
	assert.Equal([]byte{1, 2, 3, 4, 5, 6, 7, 8}, cdb[12:20])
	assert.Equal([]byte{0x11, 0x22, 0x33, 0x44}, cdb[28:32])
}

func TestWriteAndVerify(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(10, WriteAndVerifySize(0xffffffff, 0xffff, false))
	assert.Equal(16, WriteAndVerifySize(0x100000000, 1, false))
	assert.Equal(16, WriteAndVerifySize(0, 0x10000, false))
	assert.Equal(16, WriteAndVerifySize(0, 1, true))

	cdb := WriteAndVerify10(WriteAndVerifyParams{LBA: 0x200, NumBlocks: 4, ByteCheck: 1, DPO: true, WrProtect: 1})
	assert.Equal(CDB10{0x2e, 0x32, 0, 0, 0x02, 0x00, 0, 0, 0x04, 0}, cdb)
}

func TestStartStopUnit(t *testing.T) {
	cdb := StartStopUnit(StartStopParams{
		Immed:          true,
		Modifier:       2,
		PowerCondition: 3,
		NoFlush:        true,
		LoEj:           true,
		Start:          true,
	})

	assert.Equal(t, CDB6{0x1b, 0x01, 0x00, 0x02, 0x37, 0x00}, cdb)
}

func TestDecodeReadCapacity(t *testing.T) {
	assert := assert.New(t)

	buf := make([]byte, 32)
	binary.BigEndian.PutUint64(buf, 0x1d1c0beaf)
	binary.BigEndian.PutUint32(buf[8:], 512)
	buf[12] = 0x01

	c, err := DecodeReadCapacity16(buf)
	require.NoError(t, err)
	assert.Equal(uint64(0x1d1c0beaf), c.LastLBA)
	assert.Equal(uint32(512), c.BlockLength)
	assert.True(c.ProtEnable)

	c, err = DecodeReadCapacity10([]byte{0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00})
	require.NoError(t, err)
	assert.Equal(uint64(0x100000), c.LastLBA)
	assert.Equal(uint32(4096), c.BlockLength)

	_, err = DecodeReadCapacity16(buf[:16])
	assert.Error(err)

	assert.Equal(CDB16{0x9e, 0x10, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 32, 0, 0}, ReadCapacity16(32))
}
