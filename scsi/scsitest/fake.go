// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package scsitest provides an in-memory scsi.Transport for tests.
package scsitest

import (
	"github.com/dswarbrick/sgutils/scsi"
)

// Response is one scripted reply. Data is copied into the command's data-in buffer; Resid is
// derived from it unless set explicitly.
type Response struct {
	Result scsi.Result
	Data   []byte
	Err    error
	// KeepResid leaves Result.Resid untouched.
	KeepResid bool
}

// Transport replays scripted responses in order and records every command sent. Once the script
// is exhausted every further command completes with GOOD status.
type Transport struct {
	Responses []Response
	Sent      []scsi.Command
	// Written holds a copy of each data-out buffer.
	Written [][]byte
	Closed  bool

	// Device and ReadOnly record the arguments of the last Open.
	Device   string
	ReadOnly bool
}

// New returns a Transport replaying responses.
func New(responses ...Response) *Transport {
	return &Transport{Responses: responses}
}

func (t *Transport) Execute(cmd *scsi.Command) (scsi.Result, error) {
	c := *cmd
	c.CDB = append([]byte(nil), cmd.CDB...)
	t.Sent = append(t.Sent, c)

	if cmd.Direction == scsi.DirToDevice {
		t.Written = append(t.Written, append([]byte(nil), cmd.Data...))
	}

	if len(t.Responses) == 0 {
		return scsi.Result{}, nil
	}

	r := t.Responses[0]
	t.Responses = t.Responses[1:]

	if r.Err != nil {
		return scsi.Result{}, r.Err
	}

	res := r.Result
	if cmd.Direction == scsi.DirFromDevice {
		n := copy(cmd.Data, r.Data)
		if !r.KeepResid {
			res.Resid = len(cmd.Data) - n
		}
	}

	return res, nil
}

// Open has the signature of a device opener and always yields t.
func (t *Transport) Open(name string, readOnly bool) (scsi.Transport, error) {
	t.Device = name
	t.ReadOnly = readOnly

	return t, nil
}

func (t *Transport) Close() error {
	t.Closed = true
	return nil
}

// CheckCondition returns a CHECK CONDITION result with fixed format sense data.
func CheckCondition(key, asc, ascq uint8) scsi.Result {
	sense := make([]byte, 18)
	sense[0] = 0x70
	sense[2] = key
	sense[7] = 10
	sense[12] = asc
	sense[13] = ascq

	return scsi.Result{Status: scsi.SAM_STAT_CHECK_CONDITION, DriverStatus: scsi.DRIVER_SENSE, Sense: sense}
}

// CheckConditionInfo is CheckCondition with a valid information field.
func CheckConditionInfo(key, asc, ascq uint8, info uint32) scsi.Result {
	res := CheckCondition(key, asc, ascq)
	res.Sense[0] |= 0x80
	res.Sense[3] = byte(info >> 24)
	res.Sense[4] = byte(info >> 16)
	res.Sense[5] = byte(info >> 8)
	res.Sense[6] = byte(info)

	return res
}
