// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package scsi_test

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswarbrick/sgutils/scsi"
	"github.com/dswarbrick/sgutils/scsi/scsitest"
)

func TestRunDataIn(t *testing.T) {
	assert := assert.New(t)

	ft := scsitest.New(scsitest.Response{Data: []byte{0, 0, 0, 8, 0, 0, 0, 0, 0, 1}})

	cdb := scsi.ReportLuns(0, 64)
	cmd := &scsi.Command{Name: "Report Luns", CDB: cdb[:], Direction: scsi.DirFromDevice, Data: make([]byte, 64)}

	o := scsi.Run(ft, cmd)
	require.NoError(t, o.Err())
	assert.Equal(scsi.CategoryClean, o.Category)
	assert.Equal("Report Luns", o.Name)
	assert.Equal(54, o.Result.Resid)
	assert.Equal(10, o.Result.Transferred(len(cmd.Data)))
	assert.Equal(byte(8), cmd.Data[3])

	require.Len(t, ft.Sent, 1)
	assert.Equal(cdb[:], ft.Sent[0].CDB)
}

func TestRunSense(t *testing.T) {
	assert := assert.New(t)

	ft := scsitest.New(scsitest.Response{Result: scsitest.CheckConditionInfo(scsi.SENSE_MEDIUM_ERROR, 0x11, 0x00, 0x4000)})

	o := scsi.Run(ft, &scsi.Command{Name: "Write and verify(10)", CDB: make([]byte, 10), Direction: scsi.DirToDevice, Data: []byte{1, 2}})
	assert.Equal(scsi.CategoryMediumHard, o.Category)

	info, ok := o.Info()
	assert.True(ok)
	assert.Equal(uint64(0x4000), info)

	var cerr *scsi.CommandError
	require.True(t, errors.As(o.Err(), &cerr))
	assert.Equal(3, cerr.ExitCode())
	assert.Equal([][]byte{{1, 2}}, ft.Written)
}

func TestRunTransportError(t *testing.T) {
	ft := scsitest.New(scsitest.Response{Err: syscall.EIO})

	o := scsi.Run(ft, &scsi.Command{Name: "Inquiry", CDB: make([]byte, 6)})
	assert.Equal(t, scsi.CategoryOther, o.Category)
	assert.ErrorIs(t, o.Err(), syscall.EIO)
}

func TestResultTransferred(t *testing.T) {
	assert.Equal(t, 0, scsi.Result{Resid: 100}.Transferred(10))
	assert.Equal(t, 10, scsi.Result{Resid: -4}.Transferred(10))
	assert.Equal(t, 6, scsi.Result{Resid: 4}.Transferred(10))
}
