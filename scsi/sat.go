// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI / ATA Translation functions.

package scsi

import (
	"fmt"
)

const (
	// ATA protocols
	ATA_PROTO_NON_DATA = 3
	PIO_DATA_IN        = 4
	PIO_DATA_OUT       = 5

	ASCQ_ATA_PT_INFO_AVAILABLE = 0x1d
)

// ATAPassThroughParams holds the taskfile and transfer fields of an ATA PASS-THROUGH CDB.
type ATAPassThroughParams struct {
	MultipleCount uint8
	Protocol      uint8
	Extend        bool
	CkCond        bool
	TType         uint8
	TDir          uint8
	ByteBlock     uint8
	TLength       uint8
	Features      uint8
	Count         uint8
	LBA           uint64
	Command       uint8
}

func (p ATAPassThroughParams) transferByte() byte {
	var b byte
	if p.CkCond {
		b = 1 << 5
	}

	return b | (p.TType&1)<<4 | (p.TDir&1)<<3 | (p.ByteBlock&1)<<2 | p.TLength&0x3
}

// ATAPassThrough16 builds an ATA PASS-THROUGH (16) CDB. The 48-bit LBA is split into the low and
// high order register bytes.
func ATAPassThrough16(p ATAPassThroughParams) CDB16 {
	cdb := CDB16{SCSI_ATA_PASSTHRU_16}
	cdb[1] = (p.MultipleCount&0x7)<<5 | (p.Protocol&0xf)<<1
	if p.Extend {
		cdb[1] |= 0x01
	}
	cdb[2] = p.transferByte()
	cdb[4] = p.Features
	cdb[6] = p.Count
	cdb[8] = byte(p.LBA)
	cdb[10] = byte(p.LBA >> 8)
	cdb[12] = byte(p.LBA >> 16)
	cdb[7] = byte(p.LBA >> 24)
	cdb[9] = byte(p.LBA >> 32)
	cdb[11] = byte(p.LBA >> 40)
	cdb[14] = p.Command

	return cdb
}

// ATAPassThrough12 builds an ATA PASS-THROUGH (12) CDB. Only a 24-bit LBA fits.
func ATAPassThrough12(p ATAPassThroughParams) CDB12 {
	cdb := CDB12{SCSI_ATA_PASSTHRU_12}
	cdb[1] = (p.MultipleCount&0x7)<<5 | (p.Protocol&0xf)<<1
	cdb[2] = p.transferByte()
	cdb[3] = p.Features
	cdb[4] = p.Count
	cdb[5] = byte(p.LBA)
	cdb[6] = byte(p.LBA >> 8)
	cdb[7] = byte(p.LBA >> 16)
	cdb[9] = p.Command

	return cdb
}

// ATAReturnDescriptor is the ATA Status Return sense data descriptor.
type ATAReturnDescriptor struct {
	Extend bool
	Error  uint8
	Count  uint16
	LBA    uint64
	Device uint8
	Status uint8
}

// DecodeATAReturnDescriptor decodes a 14-byte descriptor as returned by Sense.Descriptor.
func DecodeATAReturnDescriptor(d []byte) (ATAReturnDescriptor, error) {
	if len(d) < 14 || d[0] != SENSE_DESC_ATA_RETURN {
		return ATAReturnDescriptor{}, ErrMalformed
	}

	r := ATAReturnDescriptor{
		Extend: d[2]&0x01 != 0,
		Error:  d[3],
		Count:  uint16(d[5]),
		LBA:    uint64(d[7]) | uint64(d[9])<<8 | uint64(d[11])<<16,
		Device: d[12],
		Status: d[13],
	}

	if r.Extend {
		r.Count |= uint16(d[4]) << 8
		r.LBA |= uint64(d[6])<<24 | uint64(d[8])<<32 | uint64(d[10])<<40
	}

	return r, nil
}

// Aborted reports the ABRT bit of the error register.
func (r ATAReturnDescriptor) Aborted() bool {
	return r.Error&0x04 != 0
}

// ATAPassThroughReport is the classified result of an ATA PASS-THROUGH command. Messages are the
// diagnostics to show the user.
type ATAPassThroughReport struct {
	Category  Category
	Return    ATAReturnDescriptor
	HasReturn bool
	Messages  []string
}

func (r *ATAPassThroughReport) say(format string, a ...interface{}) {
	r.Messages = append(r.Messages, fmt.Sprintf(format, a...))
}

// ClassifyATAPassThrough interprets the outcome of an ATA PASS-THROUGH command that expects no data.
// Beyond the generic classification it requires descriptor format sense when ATA status is returned
// and checks the error register of the ATA Return descriptor.
func ClassifyATAPassThrough(o Outcome, cdbLen int, verbose int) ATAPassThroughReport {
	var (
		rep    ATAPassThroughReport
		gotARD bool
		ard    []byte
		hasARD bool
	)

	if o.TransportErr != nil || o.Result.HostStatus != 0 ||
		(o.Result.DriverStatus != 0 && o.Result.DriverStatus&0x0f != DRIVER_SENSE) {
		rep.say("ATA pass through (%d) failed", cdbLen)
		if verbose < 2 {
			rep.say("    try adding '-v' for more information")
		}
		rep.Category = CategoryOther
		return rep
	}

	status := o.Result.Status & 0x7e

	switch status {
	case SAM_STAT_GOOD:
		rep.Category = CategoryClean
		return rep
	case SAM_STAT_CHECK_CONDITION:
	case SAM_STAT_RESERVATION_CONFLICT:
		rep.say("SCSI status: RESERVATION CONFLICT")
		rep.Category = CategoryResConflict
		return rep
	default:
		rep.say("Unexpected SCSI status=0x%x", o.Result.Status)
		rep.Category = CategoryMalformed
		return rep
	}

	s, ok := ParseSense(o.Result.Sense)
	if !ok {
		rep.say("CHECK CONDITION without response code ??")
		rep.Category = CategorySense
		return rep
	}

	ard, hasARD = s.Descriptor(SENSE_DESC_ATA_RETURN)

	switch s.Key {
	case SENSE_ILLEGAL_REQUEST:
		if s.ASC == 0x20 && s.ASCQ == 0x00 {
			if verbose < 2 {
				rep.say("ATA PASS-THROUGH (%d) not supported", cdbLen)
			}
			rep.Category = CategoryInvalidOp
		} else {
			if verbose < 2 {
				rep.say("ATA PASS-THROUGH (%d), bad field in cdb", cdbLen)
			}
			rep.Category = CategoryIllegalReq
		}
		return rep
	case SENSE_NO_SENSE, SENSE_RECOVERED_ERROR:
		if s.ASC == 0x00 && s.ASCQ == ASCQ_ATA_PT_INFO_AVAILABLE {
			if !hasARD {
				if verbose > 0 {
					rep.say("did not find ATA Return (sense) Descriptor")
				}
				rep.Category = CategoryRecovered
				return rep
			}
			gotARD = true
		} else if s.Key == SENSE_RECOVERED_ERROR {
			rep.Category = CategoryRecovered
			return rep
		} else if s.ASC != 0x00 || s.ASCQ != 0x00 {
			rep.Category = CategorySense
			return rep
		}
	case SENSE_UNIT_ATTENTION:
		if verbose < 2 {
			rep.say("ATA PASS-THROUGH (%d), Unit Attention detected", cdbLen)
		}
		rep.Category = CategoryUnitAttention
		return rep
	case SENSE_NOT_READY:
		if verbose < 2 {
			rep.say("ATA PASS-THROUGH (%d), device not ready", cdbLen)
		}
		rep.Category = CategoryNotReady
		return rep
	case SENSE_MEDIUM_ERROR, SENSE_HARDWARE_ERROR:
		if verbose < 2 {
			rep.say("ATA PASS-THROUGH (%d), medium or hardware error", cdbLen)
		}
		rep.Category = CategoryMediumHard
		return rep
	case SENSE_ABORTED_COMMAND:
		if s.ASC == 0x10 {
			rep.say("Aborted command: protection information")
			rep.Category = CategoryProtection
		} else {
			rep.say("Aborted command")
			rep.Category = CategoryAbortedCommand
		}
		return rep
	case SENSE_DATA_PROTECT:
		rep.say("ATA PASS-THROUGH (%d): data protect, read only media?", cdbLen)
		rep.Category = CategoryDataProtect
		return rep
	default:
		if verbose < 2 {
			rep.say("ATA PASS-THROUGH (%d), some sense data, use '-v' for more information", cdbLen)
		}
		rep.Category = CategorySense
		return rep
	}

	if s.ResponseCode != 0x72 {
		rep.say("expected descriptor sense format, response code=0x%x", s.Raw[0])
		rep.Category = CategoryMalformed
		return rep
	}

	if hasARD && !gotARD {
		rep.say("Seem to have got ATA Result Descriptor but it was not indicated")
	}

	if gotARD {
		rd, err := DecodeATAReturnDescriptor(ard)
		if err == nil {
			rep.Return, rep.HasReturn = rd, true
		}
		if len(ard) > 3 && ard[3]&0x04 != 0 {
			rep.say("error indication in returned FIS: aborted command")
			rep.Category = CategoryAbortedCommand
			return rep
		}
	}

	rep.Category = CategoryClean
	return rep
}
