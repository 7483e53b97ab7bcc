// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI command definitions.

package scsi

const (
	// SCSI commands used by this package
	SCSI_START_STOP_UNIT      = 0x1b
	SCSI_INQUIRY              = 0x12
	SCSI_READ_CAPACITY_10     = 0x25
	SCSI_WRITE_AND_VERIFY_10  = 0x2e
	SCSI_READ_BUFFER_10       = 0x3c
	SCSI_WRITE_SAME_10        = 0x41
	SCSI_VARIABLE_LENGTH      = 0x7f
	SCSI_ATA_PASSTHRU_16      = 0x85
	SCSI_COMPARE_AND_WRITE    = 0x89
	SCSI_WRITE_AND_VERIFY_16  = 0x8e
	SCSI_WRITE_SAME_16        = 0x93
	SCSI_ZONING_OUT           = 0x94
	SCSI_ZONING_IN            = 0x95
	SCSI_READ_BUFFER_16       = 0x9b
	SCSI_SERVICE_ACTION_IN_16 = 0x9e
	SCSI_REPORT_LUNS          = 0xa0
	SCSI_ATA_PASSTHRU_12      = 0xa1

	// Service actions
	SA_READ_CAPACITY_16    = 0x10
	SA_WRITE_SAME_32       = 0x0d
	SA_REPORT_ZONES        = 0x00
	SA_CLOSE_ZONE          = 0x01
	SA_FINISH_ZONE         = 0x02
	SA_OPEN_ZONE           = 0x03
	SA_RESET_WRITE_POINTER = 0x04

	// Additional CDB length of WRITE SAME(32)
	WRITE_SAME_32_ADD_LEN = 0x18

	// Minimum length of standard INQUIRY response
	INQ_REPLY_LEN = 36

	// Response lengths of READ CAPACITY
	READ_CAPACITY_10_LEN = 8
	READ_CAPACITY_16_LEN = 32

	// Default and maximum allocation lengths of REPORT LUNS and REPORT ZONES
	DEFAULT_ALLOC_LEN = 8 * 1024
	MAX_ALLOC_LEN     = 1024 * 1024

	// WRPROTECT / RDPROTECT field position in byte 1
	wrprotectShift = 5
	wrprotectMask  = 0x7
	groupMask      = 0x1f
)

// SCSI CDB types
type CDB6 [6]byte
type CDB10 [10]byte
type CDB12 [12]byte
type CDB16 [16]byte
type CDB32 [32]byte
