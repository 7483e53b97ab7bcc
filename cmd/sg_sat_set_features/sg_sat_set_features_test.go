// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswarbrick/sgutils/cli"
	"github.com/dswarbrick/sgutils/scsi"
	"github.com/dswarbrick/sgutils/scsi/scsitest"
)

func runTool(t *testing.T, fake *scsitest.Transport, args ...string) (int, string, string) {
	saved := cli.OpenTransport
	t.Cleanup(func() { cli.OpenTransport = saved })
	cli.OpenTransport = fake.Open

	var stdout, stderr bytes.Buffer

	tool, cmd := newCommand()
	tool.Stdout, tool.Stderr = &stdout, &stderr

	code := tool.Run(cmd, args)

	return code, stdout.String(), stderr.String()
}

// ataReturn is a CHECK CONDITION carrying descriptor format sense with an ATA Return descriptor.
func ataReturn(key, ascq, errReg uint8) scsi.Result {
	return scsi.Result{
		Status:       scsi.SAM_STAT_CHECK_CONDITION,
		DriverStatus: scsi.DRIVER_SENSE,
		Sense: []byte{
			0x72, key, 0x00, ascq, 0, 0, 0, 14,
			0x09, 0x0c, 0x00, errReg, 0, 0, 0, 0, 0, 0, 0, 0, 0x40, 0x50,
		},
	}
}

func TestSetFeatures16(t *testing.T) {
	assert := assert.New(t)

	fake := scsitest.New()
	code, stdout, stderr := runTool(t, fake, "--feature=2", "-c", "5", "-r", "/dev/sdc")
	assert.Equal(0, code)
	assert.Empty(stdout)
	assert.Empty(stderr)
	assert.True(fake.ReadOnly)

	require.Len(t, fake.Sent, 1)
	assert.Equal([]byte{0x85, 0x06, 0x0c, 0, 0x02, 0, 0x05, 0, 0, 0, 0, 0, 0, 0, 0xef, 0}, fake.Sent[0].CDB)
	assert.Equal(defTimeout, fake.Sent[0].Timeout)
}

func TestSetFeaturesExtendedLBA(t *testing.T) {
	fake := scsitest.New()
	code, _, _ := runTool(t, fake, "-l", "12", "-L", "0x123456789a", "-C", "/dev/sdc")
	assert.Equal(t, 0, code)

	require.Len(t, fake.Sent, 1)
	assert.Equal(t, []byte{0x85, 0x07, 0x2c, 0, 0, 0, 0, 0x34, 0x9a, 0x12, 0x78, 0, 0x56, 0, 0xef, 0}, fake.Sent[0].CDB)
}

func TestSetFeatures12(t *testing.T) {
	fake := scsitest.New()
	code, _, _ := runTool(t, fake, "--len=12", "-f", "0x82", "/dev/sdc")
	assert.Equal(t, 0, code)

	require.Len(t, fake.Sent, 1)
	assert.Equal(t, []byte{0xa1, 0x06, 0x0c, 0x82, 0, 0, 0, 0, 0, 0xef, 0, 0}, fake.Sent[0].CDB)
}

func TestSetFeaturesResults(t *testing.T) {
	tests := []struct {
		name   string
		resp   scsitest.Response
		code   int
		stderr string
	}{
		{
			name: "ata return descriptor",
			resp: scsitest.Response{Result: ataReturn(scsi.SENSE_RECOVERED_ERROR, 0x1d, 0)},
		},
		{
			name:   "aborted in fis",
			resp:   scsitest.Response{Result: ataReturn(scsi.SENSE_RECOVERED_ERROR, 0x1d, 0x04)},
			code:   11,
			stderr: "error indication in returned FIS: aborted command\n",
		},
		{
			name:   "not supported",
			resp:   scsitest.Response{Result: scsitest.CheckCondition(scsi.SENSE_ILLEGAL_REQUEST, 0x20, 0)},
			code:   9,
			stderr: "ATA PASS-THROUGH (16) not supported\n",
		},
		{
			name:   "bad field",
			resp:   scsitest.Response{Result: scsitest.CheckCondition(scsi.SENSE_ILLEGAL_REQUEST, 0x24, 0)},
			code:   5,
			stderr: "ATA PASS-THROUGH (16), bad field in cdb\n",
		},
		{
			name:   "fixed format sense",
			resp:   scsitest.Response{Result: scsitest.CheckCondition(scsi.SENSE_NO_SENSE, 0, 0)},
			code:   97,
			stderr: "expected descriptor sense format, response code=0x70\n",
		},
		{
			name:   "reservation conflict",
			resp:   scsitest.Response{Result: scsi.Result{Status: scsi.SAM_STAT_RESERVATION_CONFLICT}},
			code:   24,
			stderr: "SCSI status: RESERVATION CONFLICT\n",
		},
		{
			name:   "transport failure",
			resp:   scsitest.Response{Err: errors.New("boom")},
			code:   99,
			stderr: "ATA pass through (16) failed\n    try adding '-v' for more information\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runTool(t, scsitest.New(tt.resp), "-f", "2", "/dev/sdc")
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.stderr, stderr)
		})
	}
}

func TestSetFeaturesSyntax(t *testing.T) {
	assert := assert.New(t)

	code, _, stderr := runTool(t, scsitest.New(), "--len=13", "/dev/sdc")
	assert.Equal(1, code)
	assert.Equal("argument to '--len' should be 12 or 16\n", stderr)

	code, _, _ = runTool(t, scsitest.New(), "--count=256", "/dev/sdc")
	assert.Equal(1, code)

	code, _, stderr = runTool(t, scsitest.New(), "-f", "2")
	assert.Equal(1, code)
	assert.Contains(stderr, "missing device name!")
}
