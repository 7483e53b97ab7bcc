// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package scsi

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoneCDBs(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(CDB16{0x95, 0x00, 0, 0, 0, 0, 0, 0, 0x10, 0x00, 0, 0, 0x20, 0, 0x01, 0}, ReportZones(0x1000, 8192, 0x11))
	assert.Equal(CDB16{0x94, 0x01, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x01, 0}, ZoneOut(SA_CLOSE_ZONE, 0, true))
	assert.Equal(CDB16{0x94, 0x04, 0, 0, 0, 0, 0, 0x08, 0, 0, 0, 0, 0, 0, 0, 0}, ResetWritePointer(0x80000, false))

	assert.Equal("Finish zone", ZoneOutName(SA_FINISH_ZONE))
	assert.Equal("Reset write pointer", ZoneOutName(SA_RESET_WRITE_POINTER))
}

func zoneResponse(listLen uint32, descs int) []byte {
	buf := make([]byte, zoneHeaderLen+descs*zoneDescriptorLen)
	binary.BigEndian.PutUint32(buf, listLen)
	buf[4] = 0x01
	binary.BigEndian.PutUint64(buf[8:], 0x3a3812aaf)

	for k := 0; k < descs; k++ {
		d := buf[zoneHeaderLen+k*zoneDescriptorLen:]
		d[0] = 0x02
		d[1] = 0x12
		binary.BigEndian.PutUint64(d[8:], 0x80000)
		binary.BigEndian.PutUint64(d[16:], uint64(k)*0x80000)
		binary.BigEndian.PutUint64(d[24:], uint64(k)*0x80000+0x100)
	}

	return buf
}

func TestDecodeReportZones(t *testing.T) {
	assert := assert.New(t)

	zl, err := DecodeReportZones(zoneResponse(128, 2))
	require.NoError(t, err)
	assert.Equal(uint32(128), zl.ListLength)
	assert.Equal(uint8(1), zl.Same)
	assert.Equal(uint64(0x3a3812aaf), zl.MaxLBA)
	assert.False(zl.Truncated)
	require.Len(t, zl.Zones, 2)

	z := zl.Zones[1]
	assert.Equal(uint8(2), z.Type)
	assert.Equal(uint8(1), z.Condition)
	assert.True(z.NonSeq)
	assert.False(z.Reset)
	assert.Equal(uint64(0x80000), z.Length)
	assert.Equal(uint64(0x80000), z.StartLBA)
	assert.Equal(uint64(0x80100), z.WritePointer)
	assert.Len(z.Raw, 64)

	// Four zones reported, one returned
	zl, err = DecodeReportZones(zoneResponse(256, 1))
	require.NoError(t, err)
	assert.Len(zl.Zones, 1)
	assert.True(zl.Truncated)
}

func TestDecodeReportZonesMalformed(t *testing.T) {
	_, err := DecodeReportZones([]byte{0, 0})
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeReportZones(make([]byte, 32))
	assert.ErrorIs(t, err, ErrMalformed)

	n, err := ZoneListLength(zoneResponse(0x10000, 1))
	require.NoError(t, err)
	assert.Equal(t, 128, n)
}

func TestZoneNames(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("Sequential write required", ZoneTypeName(2, false))
	assert.Equal("Conventional [0x1]", ZoneTypeName(1, true))
	assert.Equal("Reserved [0x5]", ZoneTypeName(5, false))
	assert.Equal("Full", ZoneConditionName(0xe, false))
	assert.Equal("Reserved [0x7]", ZoneConditionName(7, true))
	assert.Equal("zone type and length same in each descriptor", ZoneSameDescription(1))
}
