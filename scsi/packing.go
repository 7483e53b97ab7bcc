// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Big-endian field packing for CDBs and response buffers.

package scsi

// PutUnalignedBE writes v MSB-first into all of b. The field width is len(b) (at most 8 bytes);
// high-order bits of v that do not fit are silently dropped.
func PutUnalignedBE(b []byte, v uint64) {
	for i := len(b) - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

// GetUnalignedBE reads an MSB-first unsigned integer spanning all of b.
func GetUnalignedBE(b []byte) uint64 {
	var v uint64

	for _, c := range b {
		v = v<<8 | uint64(c)
	}

	return v
}

func putBE24(b []byte, v uint32) {
	PutUnalignedBE(b[:3], uint64(v))
}

func getBE24(b []byte) uint32 {
	return uint32(GetUnalignedBE(b[:3]))
}

// wrprotectByte returns the WRPROTECT field shifted into the top three bits of CDB byte 1.
func wrprotectByte(wrprotect uint8) byte {
	return (wrprotect & wrprotectMask) << wrprotectShift
}
