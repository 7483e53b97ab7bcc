// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
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

// inputFile writes n bytes where each 512-byte block is filled with its index.
func inputFile(t *testing.T, n int) string {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i / 512)
	}

	name := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(name, data, 0644))

	return name
}

func TestWriteVerifyDefaultBuffer(t *testing.T) {
	assert := assert.New(t)

	fake := scsitest.New()
	code, stdout, stderr := runTool(t, fake, "-l", "0x10", "/dev/sdb")
	assert.Equal(0, code)
	assert.Empty(stdout)
	assert.Empty(stderr)

	require.Len(t, fake.Sent, 1)
	assert.Equal([]byte{0x2e, 0, 0, 0, 0, 0x10, 0, 0, 1, 0}, fake.Sent[0].CDB)
	assert.Equal(bytes.Repeat([]byte{0xff}, 512), fake.Written[0])
}

func TestWriteVerify16(t *testing.T) {
	assert := assert.New(t)

	fake := scsitest.New()
	code, _, _ := runTool(t, fake, "-S", "-b", "1", "-d", "-g", "3", "-w", "2", "-n", "2", "--lba=5", "/dev/sdb")
	assert.Equal(0, code)

	require.Len(t, fake.Sent, 1)
	assert.Equal([]byte{0x8e, 0x52, 0, 0, 0, 0, 0, 0, 0, 5, 0, 0, 0, 2, 3, 0}, fake.Sent[0].CDB)
	assert.Len(fake.Written[0], 1024)

	fake = scsitest.New()
	code, _, _ = runTool(t, fake, "--lba=0x100000000", "/dev/sdb")
	assert.Equal(0, code)
	assert.Equal(byte(0x8e), fake.Sent[0].CDB[0])
}

func TestWriteVerifyInputFile(t *testing.T) {
	name := inputFile(t, 1024)

	fake := scsitest.New()
	code, _, stderr := runTool(t, fake, "-i", name, "-n", "2", "-l", "0", "/dev/sdb")
	assert.Equal(t, 0, code)
	assert.Empty(t, stderr)

	require.Len(t, fake.Written, 1)
	assert.Len(t, fake.Written[0], 1024)
	assert.Equal(t, byte(1), fake.Written[0][1023])
}

func TestWriteVerifyRepeat(t *testing.T) {
	assert := assert.New(t)

	name := inputFile(t, 5*512)

	fake := scsitest.New()
	code, _, stderr := runTool(t, fake, "-R", "-i", name, "-I", "1024", "-n", "2", "-l", "100", "/dev/sdb")
	assert.Equal(0, code)
	assert.Equal("5 [0x5] logical blocks written, in total\n", stderr)

	require.Len(t, fake.Sent, 3)
	for k, want := range []struct {
		lba uint32
		num uint16
		len int
	}{{100, 2, 1024}, {102, 2, 1024}, {104, 1, 512}} {
		cdb := fake.Sent[k].CDB
		assert.Equal(want.lba, binary.BigEndian.Uint32(cdb[2:]), k)
		assert.Equal(want.num, binary.BigEndian.Uint16(cdb[7:]), k)
		assert.Len(fake.Written[k], want.len, k)
		assert.Equal(byte(2*k), fake.Written[k][0], k)
	}
}

func TestWriteVerifyRepeatRemainder(t *testing.T) {
	name := inputFile(t, 1100)

	fake := scsitest.New()
	code, _, stderr := runTool(t, fake, "-R", "-i", name, "-I", "1024", "-n", "2", "-l", "0", "/dev/sdb")
	assert.Equal(t, 0, code)
	assert.Equal(t, ">>> warning: ignoring last 76 bytes of "+name+"\n2 [0x2] logical blocks written, in total\n", stderr)
	assert.Len(t, fake.Sent, 1)
}

func TestWriteVerifyRepeatStopsOnError(t *testing.T) {
	name := inputFile(t, 4*512)

	fake := scsitest.New(
		scsitest.Response{},
		scsitest.Response{Result: scsitest.CheckCondition(scsi.SENSE_MISCOMPARE, 0x1d, 0)},
	)
	code, _, stderr := runTool(t, fake, "-R", "-b", "1", "-i", name, "-I", "512", "-l", "0", "/dev/sdb")
	assert.Equal(t, 14, code)
	assert.Equal(t, "Write and verify(10): Miscompare\n1 [0x1] logical blocks written, in total\n", stderr)
	assert.Len(t, fake.Sent, 2)
}

func TestWriteVerifyErrors(t *testing.T) {
	name := inputFile(t, 1024)

	tests := []struct {
		name   string
		resp   []scsitest.Response
		args   []string
		code   int
		stderr string
	}{
		{"no lba", nil, []string{"/dev/sdb"}, 1, "need a --lba=LBA option\nUsage: sg_write_verify"},
		{"repeat without in", nil, []string{"-R", "-l", "0", "/dev/sdb"}, 1, "with '--repeat' need '--in=IF' option\n"},
		{"repeat without ilen", nil, []string{"-R", "-i", name, "-l", "0", "/dev/sdb"}, 1,
			"with '--repeat' need '--ilen=ILEN' option\n"},
		{"block too small", nil, []string{"-R", "-i", name, "-I", "100", "-n", "2", "-l", "0", "/dev/sdb"}, 1,
			"calculated 50 bytes per logical block, too small\n"},
		{"zero timeout", nil, []string{"-t", "0", "-l", "0", "/dev/sdb"}, 1, "bad argument to '--timeout'\n"},
		{"short read", nil, []string{"-i", name, "-I", "2048", "-l", "0", "/dev/sdb"}, 1,
			"Read only 1024 bytes (expected 2048) from " + name + "\n"},
		{"missing input", nil, []string{"-i", name + ".missing", "-l", "0", "/dev/sdb"}, 15,
			"sg_write_verify: open error: " + name + ".missing: no such file or directory\n"},
		{"medium error", []scsitest.Response{{Result: scsitest.CheckConditionInfo(scsi.SENSE_MEDIUM_ERROR, 0x0c, 0, 0x20)}},
			[]string{"-l", "0x20", "/dev/sdb"}, 3,
			"Medium or hardware error starting at lba=32 [0x20]\nWrite and verify(10): Medium or hardware error\n"},
		{"bytchk range", nil, []string{"-b", "4", "-l", "0", "/dev/sdb"}, 1, "Usage: sg_write_verify"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runTool(t, scsitest.New(tt.resp...), tt.args...)
			assert.Equal(t, tt.code, code)
			assert.Contains(t, stderr, tt.stderr)
		})
	}
}
