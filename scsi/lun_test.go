// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package scsi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func formatLUN(lun [8]byte, luCong, hex, verbose bool) string {
	var sb strings.Builder

	DecodeLUN(lun, luCong).Format(&sb, "  ", hex, verbose)
	return sb.String()
}

func TestDecodeLUN(t *testing.T) {
	tests := []struct {
		name    string
		lun     [8]byte
		luCong  bool
		hex     bool
		verbose bool
		want    string
	}{
		{
			name: "not specified",
			lun:  [8]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
			want: "  Logical unit not specified\n",
		},
		{
			name: "peripheral",
			lun:  [8]byte{0x00, 0x05},
			want: "  Peripheral device addressing: lun=5\n",
		},
		{
			name:    "peripheral verbose",
			lun:     [8]byte{0x00, 0x05},
			verbose: true,
			want:    "  Peripheral device addressing: bus_id=0, lun=5\n",
		},
		{
			name: "peripheral with bus",
			lun:  [8]byte{0x01, 0x02, 0x00, 0x07},
			want: "  Peripheral device addressing: bus_id=1, target=2\n" +
				"  >>Second level addressing:\n" +
				"    Peripheral device addressing: lun=7\n",
		},
		{
			name: "flat",
			lun:  [8]byte{0x40, 0x10},
			want: "  Flat space addressing: lun=16\n",
		},
		{
			name: "flat hex",
			lun:  [8]byte{0x40, 0x10},
			hex:  true,
			want: "  Flat space addressing: lun=0x0010\n",
		},
		{
			name: "logical unit followed by data",
			lun:  [8]byte{0x85, 0x23, 0x00, 0x01},
			want: "  Logical unit addressing: bus_id=1, target=5, lun=3\n" +
				"  <<unexpected data at next level, continue>>\n",
		},
		{
			name: "well known",
			lun:  [8]byte{0xc1, 0x01},
			want: "  REPORT LUNS well known logical unit\n",
		},
		{
			name: "well known other",
			lun:  [8]byte{0xc1, 0x10},
			hex:  true,
			want: "  well known logical unit 0x10\n",
		},
		{
			name: "extended flat",
			lun:  [8]byte{0xd2, 0x12, 0x34, 0x56},
			want: "  Extended flat space addressing: lun=1193046\n",
		},
		{
			name: "long extended flat",
			lun:  [8]byte{0xe2, 0x01, 0x02, 0x03, 0x04, 0x05},
			hex:  true,
			want: "  Long extended flat space addressing: lun=0x0102030405\n",
		},
		{
			name: "extended not specified",
			lun:  [8]byte{0xff, 0x00},
			want: "  Logical unit _not_ specified addressing\n",
		},
		{
			name: "generic extended",
			lun:  [8]byte{0xc3, 0x07},
			want: "  Extended logical unit addressing: length=0, e.a. method=3, value=7\n",
		},
		{
			name: "generic extended long",
			lun:  [8]byte{0xe5, 0x01, 0x02, 0x03, 0x04, 0x05},
			hex:  true,
			want: "  Extended logical unit addressing: length=2, e. a. method=5, value=0x0102030405\n",
		},
		{
			name:   "lu_cong administrative LU",
			lun:    [8]byte{0x00, 0x01, 0x00, 0x00},
			luCong: true,
			want: "  >>Administrative element:\n" +
				"    Simple lu addressing: 1\n" +
				"  >>>> Administrative LU\n",
		},
		{
			name:   "lu_cong subsidiary",
			lun:    [8]byte{0x00, 0x01, 0x00, 0x02},
			luCong: true,
			hex:    true,
			want: "  >>Administrative element:\n" +
				"    Simple lu addressing: 0x0001\n" +
				"  >>Subsidiary element:\n" +
				"    Simple lu addressing: 0x0002\n",
		},
		{
			name:   "lu_cong flat",
			lun:    [8]byte{0x40, 0x01},
			luCong: true,
			want: "  >>Administrative element:\n" +
				"    Since LU_CONG=1, unexpected Flat space addressing: lun=0x0001\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatLUN(tt.lun, tt.luCong, tt.hex, tt.verbose))
		})
	}
}

func TestDecodeLUNPure(t *testing.T) {
	lun := [8]byte{0x01, 0x02, 0x85, 0x23, 0x00, 0x01}

	assert.Equal(t, DecodeLUN(lun, false), DecodeLUN(lun, false))
	assert.Equal(t, formatLUN(lun, false, true, true), formatLUN(lun, false, true, true))
}

func TestLinuxLUNConversions(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([8]byte{0x00, 0x05}, LinuxToT10(5))
	assert.Equal(uint64(5), T10ToLinux([8]byte{0x00, 0x05}))

	t10 := [8]byte{0x00, 0x04, 0x00, 0x03, 0x00, 0x02, 0x00, 0x01}
	assert.Equal(uint64(0x0001000200030004), T10ToLinux(t10))
	assert.Equal(t10, LinuxToT10(0x0001000200030004))

	for _, v := range []uint64{0, 1, 0x4001, 0xffffffffffffffff, 0x123456789abcdef0} {
		assert.Equal(v, T10ToLinux(LinuxToT10(v)))
	}
}

func TestLegacyT10ToLinux(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(uint64(5), LegacyT10ToLinux([8]byte{0x00, 0x05}))
	assert.Equal(uint64(0x00020001), LegacyT10ToLinux([8]byte{0x00, 0x01, 0x00, 0x02}))

	// Second word sign extends
	assert.Equal(uint64(0xffffffff80000001), LegacyT10ToLinux([8]byte{0x00, 0x01, 0x80, 0x00}))

	// Words beyond the second are lost
	assert.Equal(uint64(0), LegacyT10ToLinux([8]byte{0, 0, 0, 0, 0x00, 0x07, 0x00, 0x09}))
}
