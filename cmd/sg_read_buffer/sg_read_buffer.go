// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Issue a SCSI READ BUFFER (10 or 16) command and decode the response.
//
package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dswarbrick/sgutils/cli"
	"github.com/dswarbrick/sgutils/scsi"
	"github.com/dswarbrick/sgutils/utils"
)

const version = "1.13 20150105"

type options struct {
	long         bool
	hex          int
	id           uint64
	length       uint64
	mode         string
	offset       uint64
	raw          bool
	readOnly     bool
	modeSpecific uint64
}

const usageText = `Usage: sg_read_buffer [--16] [--help] [--hex] [--id=ID] [--length=LEN]
                      [--long] [--mode=MO] [--offset=OFF] [--raw]
                      [--readonly] [--specific=MS] [--verbose] [--version]
                      DEVICE
  where:
    --16|-L             issue READ BUFFER(16) (def: 10)
    --help|-h           print out usage message
    --hex|-H            print output in hex
    --id=ID|-i ID       buffer identifier (0 (default) to 255)
    --length=LEN|-l LEN    length in bytes to read (def: 4)
    --long|-L           issue READ BUFFER(16) (def: 10)
    --mode=MO|-m MO     read buffer mode, MO is number or acronym (def: 0)
    --offset=OFF|-o OFF    buffer offset (unit: bytes, def: 0)
    --raw|-r            output response to stdout
    --specific=MS|-S MS    mode specific value; 3 bit field (0 to 7)
    --readonly|-R       open DEVICE read-only (def: read-write)
    --verbose|-v        increase verbosity
    --version|-V        print version string and exit

Performs a SCSI READ BUFFER (10 or 16) command. Use '-m xxx' to list
available modes. Numbers given in options are decimal unless they have
a hex indicator (e.g. a leading '0x').
`

func printModes(w io.Writer) {
	fmt.Fprint(w, "The modes parameter argument can be numeric (hex or decimal)\nor symbolic:\n")
	for _, m := range scsi.ReadBufferModes {
		fmt.Fprintf(w, " %2d (0x%02x)  %-16s%s\n", m.Mode, m.Mode, m.Name, m.Comment)
	}
}

func newCommand() (*cli.Tool, *cobra.Command) {
	var opts options

	t := cli.NewTool("sg_read_buffer", version, nil)
	t.Usage = func(w io.Writer) {
		fmt.Fprint(w, usageText)
		if t.Help > 1 {
			fmt.Fprintln(w)
			printModes(w)
		}
	}

	cmd := t.Command(func(args []string) error {
		return run(t, &opts, args)
	})

	f := cmd.Flags()
	f.BoolVarP(&opts.long, "16", "L", false, "issue READ BUFFER(16)")
	f.BoolVar(&opts.long, "long", false, "issue READ BUFFER(16)")
	f.CountVarP(&opts.hex, "hex", "H", "print output in hex")
	cli.NumVarP(f, &opts.id, "id", "i", 0, 255, "buffer identifier")
	cli.NumVarP(f, &opts.length, "length", "l", 4, 0xffffff, "length in bytes to read")
	f.StringVarP(&opts.mode, "mode", "m", "0", "read buffer mode, number or acronym")
	cli.NumVarP(f, &opts.offset, "offset", "o", 0, 1<<63-1, "buffer offset")
	f.BoolVarP(&opts.raw, "raw", "r", false, "output response to stdout")
	f.BoolVarP(&opts.readOnly, "readonly", "R", false, "open DEVICE read-only")
	cli.NumVarP(f, &opts.modeSpecific, "specific", "S", 0, 7, "mode specific value")

	return t, cmd
}

// parseMode accepts a mode number or a prefix of a mode name.
func parseMode(t *cli.Tool, s string) (uint8, error) {
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		v, err := utils.ParseNumMax(s, 31)
		if err != nil {
			return 0, cli.SyntaxOnlyf("argument to '--mode' should be in the range 0 to 31")
		}
		return uint8(v), nil
	}

	m, ok := scsi.LookupReadBufferMode(s)
	if !ok {
		printModes(t.Stderr)
		return 0, &cli.SyntaxError{NoUsage: true}
	}

	return m.Mode, nil
}

func run(t *cli.Tool, opts *options, args []string) error {
	mode, err := parseMode(t, opts.mode)
	if err != nil {
		return err
	}

	device, err := cli.DeviceArg(args)
	if err != nil {
		return err
	}

	dev, err := cli.OpenDevice(device, opts.readOnly)
	if err != nil {
		return err
	}
	defer dev.Close()

	p := scsi.ReadBufferParams{
		Mode:         mode,
		ModeSpecific: uint8(opts.modeSpecific),
		ID:           uint8(opts.id),
		Offset:       opts.offset,
		Length:       uint32(opts.length),
	}

	var (
		cdb  []byte
		size = 10
	)

	if opts.long {
		c := scsi.ReadBuffer16(p)
		cdb, size = c[:], 16
	} else if opts.offset > 0xffffff {
		return cli.SyntaxOnlyf("--offset value is too large for READ BUFFER(10), try --16")
	} else {
		c := scsi.ReadBuffer10(p)
		cdb = c[:]
	}

	resp := make([]byte, opts.length)
	o := scsi.Run(dev, &scsi.Command{
		Name:      fmt.Sprintf("Read buffer(%d)", size),
		CDB:       cdb,
		Direction: scsi.DirFromDevice,
		Data:      resp,
	})
	if !o.OK() {
		t.ReportSense(o)
		t.Errorf("Read buffer(%d) failed: %s\n", size, cli.CategoryString(o))
		return cli.Exit(o.Category)
	}

	resp = resp[:o.Result.Transferred(len(resp))]
	if t.Verbose > 2 && len(resp) > 0 {
		n, more := len(resp), ""
		if n > 256 {
			n, more = 256, ", first 256 bytes"
		}
		t.Errorf("    Read buffer(%d): response%s\n", size, more)
		utils.HexDump(t.Stderr, resp[:n], -1)
	}

	printResponse(t, opts, mode, resp)

	return nil
}

func printResponse(t *cli.Tool, opts *options, mode uint8, resp []byte) {
	if len(resp) == 0 {
		return
	}

	if opts.raw {
		t.Stdout.Write(resp)
		return
	}

	if opts.hex > 0 || len(resp) < 4 {
		noASCII := 1
		if opts.hex > 1 {
			noASCII = 0
		}
		utils.HexDump(t.Stdout, resp, noASCII)
		return
	}

	switch mode {
	case scsi.RB_MODE_DESCRIPTOR:
		d, _ := scsi.DecodeBufferDescriptor(resp)
		t.Printf("%s", d)
	case scsi.RB_MODE_ECHO_BDESC:
		d, _ := scsi.DecodeEchoBufferDescriptor(resp)
		t.Printf("%s", d)
	default:
		noASCII := 1
		if t.Verbose > 1 {
			noASCII = 0
		}
		utils.HexDump(t.Stdout, resp, noASCII)
	}
}

func main() {
	t, cmd := newCommand()
	t.Main(cmd)
}
