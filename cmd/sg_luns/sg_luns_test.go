// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"bytes"
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

func lunList(luns ...[8]byte) []byte {
	buf := make([]byte, 8, 8+8*len(luns))
	buf[3] = byte(8 * len(luns))
	for _, l := range luns {
		buf = append(buf, l[:]...)
	}

	return buf
}

func TestTestOption(t *testing.T) {
	cases := []struct {
		name   string
		args   []string
		stdout string
	}{
		{
			name:   "peripheral",
			args:   []string{"--test=0x0005"},
			stdout: "Decoded LUN:\n  Peripheral device addressing: lun=5\n",
		},
		{
			name: "linux integer input",
			args: []string{"-t", "L5"},
			stdout: "64 bit LUN in T10 preferred (hex) format:  00 05 00 00 00 00 00 00\n" +
				"Decoded LUN:\n  Peripheral device addressing: lun=5\n",
		},
		{
			name: "word flipped output",
			args: []string{"--test=01 02 00 07L"},
			stdout: "Linux 'word flipped' integer LUN representation: 459010\n" +
				"Decoded LUN:\n" +
				"  Peripheral device addressing: bus_id=1, target=2\n" +
				"  >>Second level addressing:\n" +
				"    Peripheral device addressing: lun=7\n",
		},
		{
			name: "legacy output in hex",
			args: []string{"-H", "--test=4010W"},
			stdout: "64 bit LUN in T10 preferred (hex) format:  40 10 00 00 00 00 00 00\n" +
				"Linux internal 64 bit LUN representation: 0x4010\n" +
				"Decoded LUN:\n  Flat space addressing: lun=0x0010\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := scsitest.New()
			code, stdout, _ := runTool(t, fake, tc.args...)
			assert.Equal(t, 0, code)
			assert.Equal(t, tc.stdout, stdout)
			assert.Empty(t, fake.Sent)
		})
	}
}

func TestParseTestLUN(t *testing.T) {
	assert := assert.New(t)

	lun, linuxIn, linuxOut, legacyOut, err := parseTestLUN("0x0001000200030004")
	assert.NoError(err)
	assert.Equal([8]byte{0, 1, 0, 2, 0, 3, 0, 4}, lun)
	assert.False(linuxIn || linuxOut || legacyOut)

	lun, _, _, _, err = parseTestLUN("c1 1")
	assert.NoError(err)
	assert.Equal([8]byte{0xc1, 0x01}, lun)

	_, _, _, _, err = parseTestLUN("zz")
	assert.EqualError(err, "expected a hex number, optionally prefixed by '0x'")

	_, _, _, _, err = parseTestLUN("Lxyz")
	assert.EqualError(err, "Unable to read Linux style LUN integer given to --test=")
}

func TestReportLuns(t *testing.T) {
	assert := assert.New(t)

	inq := make([]byte, 36)
	fake := scsitest.New(
		scsitest.Response{Data: inq},
		scsitest.Response{Data: lunList([8]byte{}, [8]byte{0x00, 0x01})},
	)

	code, stdout, stderr := runTool(t, fake, "-d", "--linux", "-R", "/dev/sg1")
	assert.Equal(0, code)
	assert.Empty(stderr)
	assert.Equal("Lun list length = 16 which imples 2 lun entries\n"+
		"Report luns [select_report=0x0]:\n"+
		"    0000000000000000    [0]\n"+
		"      Peripheral device addressing: lun=0\n"+
		"    0001000000000000    [1]\n"+
		"      Peripheral device addressing: lun=1\n", stdout)

	require.Len(t, fake.Sent, 2)
	assert.Equal(byte(scsi.SCSI_INQUIRY), fake.Sent[0].CDB[0])
	assert.Equal([]byte{0xa0, 0, 0, 0, 0, 0, 0, 0, 0x20, 0, 0, 0}, fake.Sent[1].CDB)
	assert.True(fake.ReadOnly)
}

func TestReportLunsQuietTruncated(t *testing.T) {
	fake := scsitest.New(scsitest.Response{Data: lunList([8]byte{0x40, 0x01}, [8]byte{0x40, 0x02})})

	code, stdout, stderr := runTool(t, fake, "-q", "--maxlen=16", "-s", "2", "/dev/sg1")
	assert.Equal(t, 0, code)
	assert.Equal(t, "4001000000000000\n", stdout)
	assert.Equal(t, "  <<too many luns for internal buffer, will show 1 lun>>\n", stderr)
	assert.Equal(t, byte(2), fake.Sent[0].CDB[2])
}

func TestReportLunsHexAndRaw(t *testing.T) {
	resp := lunList([8]byte{})

	code, stdout, _ := runTool(t, scsitest.New(scsitest.Response{Data: resp}), "-H", "/dev/sg1")
	assert.Equal(t, 0, code)
	assert.Equal(t, " 00     00 00 00 08 00 00 00 00  00 00 00 00 00 00 00 00\n", stdout)

	code, stdout, _ = runTool(t, scsitest.New(scsitest.Response{Data: resp}), "--raw", "/dev/sg1")
	assert.Equal(t, 0, code)
	assert.Equal(t, string(resp), stdout)
}

func TestReportLunsErrors(t *testing.T) {
	assert := assert.New(t)

	fake := scsitest.New(scsitest.Response{Result: scsitest.CheckCondition(scsi.SENSE_ILLEGAL_REQUEST, 0x20, 0)})
	code, _, stderr := runTool(t, fake, "/dev/sg1")
	assert.Equal(9, code)
	assert.Equal("Report Luns command not supported (support mandatory in SPC-3)\n", stderr)

	fake = scsitest.New(scsitest.Response{Result: scsitest.CheckCondition(scsi.SENSE_NOT_READY, 0x04, 0)})
	code, _, stderr = runTool(t, fake, "/dev/sg1")
	assert.Equal(2, code)
	assert.Equal("Report Luns command: Not ready\n", stderr)

	code, _, stderr = runTool(t, scsitest.New())
	assert.Equal(1, code)
	assert.Contains(stderr, "missing device name!\n")

	code, _, stderr = runTool(t, scsitest.New(), "--test=5", "/dev/sg1", "extra")
	assert.Equal(1, code)
	assert.Contains(stderr, "Unexpected extra argument: extra\n")
}
