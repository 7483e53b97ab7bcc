// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package scsi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPutUnalignedBE(t *testing.T) {
	assert := assert.New(t)

	b := make([]byte, 3)
	PutUnalignedBE(b, 0x123456)
	assert.Equal([]byte{0x12, 0x34, 0x56}, b)

	// Truncated to field width
	PutUnalignedBE(b, 0xaabbccdd)
	assert.Equal([]byte{0xbb, 0xcc, 0xdd}, b)

	b = make([]byte, 8)
	PutUnalignedBE(b, 0x0102030405060708)
	assert.Equal([]byte{1, 2, 3, 4, 5, 6, 7, 8}, b)
	assert.Equal(uint64(0x0102030405060708), GetUnalignedBE(b))
}

func TestGetBE24(t *testing.T) {
	b := []byte{0xff, 0x00, 0x10, 0x00}
	putBE24(b[1:], 0xabcdef)
	assert.Equal(t, []byte{0xff, 0xab, 0xcd, 0xef}, b)
	assert.Equal(t, uint32(0xabcdef), getBE24(b[1:]))
}
