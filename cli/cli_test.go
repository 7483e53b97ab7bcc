// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswarbrick/sgutils/scsi"
	"github.com/dswarbrick/sgutils/sensedb"
)

func testTool() (*Tool, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer

	t := &Tool{
		Name:    "sg_test",
		Version: "1.00 20180101",
		Usage: func(w io.Writer) {
			fmt.Fprintln(w, "Usage: sg_test [--help] DEVICE")
		},
		Stdout: &stdout,
		Stderr: &stderr,
	}

	return t, &stdout, &stderr
}

func TestRunHelpAndVersion(t *testing.T) {
	assert := assert.New(t)

	tool, _, stderr := testTool()
	called := false
	cmd := tool.Command(func(args []string) error {
		called = true
		return nil
	})

	assert.Equal(0, tool.Run(cmd, []string{"-hh"}))
	assert.Equal(2, tool.Help)
	assert.False(called)
	assert.Equal("Usage: sg_test [--help] DEVICE\n", stderr.String())

	tool, _, stderr = testTool()
	cmd = tool.Command(func(args []string) error {
		called = true
		return nil
	})

	assert.Equal(0, tool.Run(cmd, []string{"-V"}))
	assert.False(called)
	assert.Equal("version: 1.00 20180101\n", stderr.String())
}

func TestRunErrors(t *testing.T) {
	cases := []struct {
		err    error
		code   int
		stderr string
	}{
		{nil, 0, ""},
		{Syntaxf("missing device name!"), 1, "missing device name!\nUsage: sg_test [--help] DEVICE\n"},
		{SyntaxOnlyf("need a --lba=LBA option"), 1, "need a --lba=LBA option\n"},
		{FileError("open error: /dev/sg9: no such file or directory"), 15,
			"open error: /dev/sg9: no such file or directory\n"},
		{Exit(scsi.CategoryMiscompare), 14, ""},
		{Exit(scsi.CategoryATAPassThroughInfo), 0, ""},
		{scsi.Outcome{Name: "Report zones", Category: scsi.CategoryIllegalReq}.Err(), 5,
			"sg_test: Report zones: Illegal request\n"},
		{errors.New("boom"), 99, "sg_test: boom\n"},
	}

	for _, tc := range cases {
		tool, _, stderr := testTool()
		cmd := tool.Command(func(args []string) error {
			return tc.err
		})

		assert.Equal(t, tc.code, tool.Run(cmd, []string{"/dev/sg0"}), "%v", tc.err)
		assert.Equal(t, tc.stderr, stderr.String(), "%v", tc.err)
	}
}

func TestRunFlagError(t *testing.T) {
	tool, _, stderr := testTool()
	cmd := tool.Command(func(args []string) error {
		return nil
	})

	var lba uint64
	NumVarP(cmd.Flags(), &lba, "lba", "l", 0, 1<<32-1, "logical block address")

	assert.Equal(t, 1, tool.Run(cmd, []string{"--lba=0x1ffffffff", "/dev/sg0"}))
	assert.Contains(t, stderr.String(), "--lba")
	assert.True(t, strings.HasSuffix(stderr.String(), "Usage: sg_test [--help] DEVICE\n"))
}

func TestNumFlag(t *testing.T) {
	assert := assert.New(t)

	tool, _, _ := testTool()

	var lba, num uint64
	var device string

	cmd := tool.Command(func(args []string) error {
		var err error
		device, err = DeviceArg(args)
		return err
	})
	NumVarP(cmd.Flags(), &lba, "lba", "l", 0, 1<<64-1, "logical block address")
	NumVarP(cmd.Flags(), &num, "num", "n", 1, 1<<20, "number of blocks")

	assert.Equal(1, int(num))
	assert.Equal(0, tool.Run(cmd, []string{"-l", "0x1000", "--num=2k", "-vv", "/dev/sg1"}))
	assert.Equal(uint64(0x1000), lba)
	assert.Equal(uint64(2048), num)
	assert.Equal("/dev/sg1", device)
	assert.Equal(2, tool.Verbose)
}

func TestDeviceArg(t *testing.T) {
	assert := assert.New(t)

	_, err := DeviceArg(nil)
	assert.EqualError(err, "missing device name!")

	_, err = DeviceArg([]string{"/dev/sg0", "a", "b"})
	assert.EqualError(err, "Unexpected extra argument: a\nUnexpected extra argument: b")

	dev, err := DeviceArg([]string{"/dev/sg0"})
	assert.NoError(err)
	assert.Equal("/dev/sg0", dev)
}

func TestLogLevel(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(log.WarnLevel, LogLevel(0))
	assert.Equal(log.InfoLevel, LogLevel(1))
	assert.Equal(log.DebugLevel, LogLevel(2))
	assert.Equal(log.TraceLevel, LogLevel(5))
}

func TestEnv(t *testing.T) {
	assert.False(t, Env().IsSet("old_opts"))

	t.Setenv("SG3_UTILS_OLD_OPTS", "")
	assert.True(t, Env().IsSet("old_opts"))
}

func TestOpenDevice(t *testing.T) {
	saved := OpenTransport
	defer func() { OpenTransport = saved }()

	OpenTransport = func(name string, readOnly bool) (scsi.Transport, error) {
		return nil, &os.PathError{Op: "open", Path: name, Err: syscall.ENOENT}
	}

	_, err := OpenDevice("/dev/sg9", true)
	require.Error(t, err)
	assert.Equal(t, 15, exitCode(err))
	assert.EqualError(t, err, "open error: /dev/sg9: no such file or directory")
}

func TestReadInput(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "in.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0600))

	buf := make([]byte, 8)
	n, err := ReadInput(path, nil, buf)
	assert.NoError(err)
	assert.Equal(3, n)
	assert.Equal([]byte{1, 2, 3, 0, 0, 0, 0, 0}, buf)

	n, err = ReadInput("-", strings.NewReader("abcdefghij"), buf)
	assert.NoError(err)
	assert.Equal(8, n)

	_, err = ReadInput(filepath.Join(t.TempDir(), "missing"), nil, buf)
	assert.Equal(15, exitCode(err))
}

func TestSenseLines(t *testing.T) {
	sense := []byte{0xf0, 0, 0x03, 0, 0, 0x10, 0, 10, 0, 0, 0, 0, 0x11, 0x00, 0, 0, 0, 0}
	s, ok := scsi.ParseSense(sense)
	require.True(t, ok)

	db := sensedb.Default()

	assert.Equal(t, []string{
		"Fixed format, current; Sense key: Medium Error",
		" Additional sense: Unrecovered read error",
		"  Info fld=0x1000 [4096]",
	}, SenseLines(db, s))

	tool, _, stderr := testTool()
	tool.ReportSense(scsi.Outcome{Category: scsi.CategoryMediumHard, Sense: s, HasSense: true})
	assert.Empty(t, stderr.String())

	tool.Verbose = 1
	tool.ReportSense(scsi.Outcome{Category: scsi.CategoryMediumHard, Sense: s, HasSense: true})
	assert.Contains(t, stderr.String(), "Sense key: Medium Error")
}
