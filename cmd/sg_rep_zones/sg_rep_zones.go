// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Issue a SCSI REPORT ZONES command and decode the response.
//
package main

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dswarbrick/sgutils/cli"
	"github.com/dswarbrick/sgutils/scsi"
	"github.com/dswarbrick/sgutils/utils"
)

const (
	version = "1.04 20141215"

	maxRzonesBuffLen = 1024 * 1024
	defRzonesBuffLen = 1024 * 8
)

type options struct {
	hex      int
	maxLen   uint64
	raw      bool
	readOnly bool
	report   uint64
	start    uint64
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: sg_rep_zones  [--help] [--hex] [--maxlen=LEN] [--raw]
                     [--readonly] [--report=OPT] [--start=LBA]
                     [--verbose] [--version] DEVICE
  where:
    --help|-h          print out usage message
    --hex|-H           output response in hexadecimal; used twice
                       shows decoded values in hex
    --maxlen=LEN|-m LEN    max response length (allocation length in cdb)
                           (def: 0 -> 8192 bytes)
    --raw|-r           output response in binary
    --readonly|-R      open DEVICE read-only (def: read-write)
    --report=OPT|-o OP    reporting option (def: 0)
    --start=LBA|-s LBA    report zones from the LBA (def: 0)
                          need not be a zone starting LBA
    --verbose|-v       increase verbosity
    --version|-V       print version string and exit

Performs a SCSI REPORT ZONES command.
`)
}

func newCommand() (*cli.Tool, *cobra.Command) {
	var opts options

	t := cli.NewTool("sg_rep_zones", version, usage)
	cmd := t.Command(func(args []string) error {
		return run(t, &opts, args)
	})

	f := cmd.Flags()
	f.CountVarP(&opts.hex, "hex", "H", "output response in hexadecimal")
	cli.NumVarP(f, &opts.maxLen, "maxlen", "m", 0, maxRzonesBuffLen, "max response length")
	f.BoolVarP(&opts.raw, "raw", "r", false, "output response in binary")
	f.BoolVarP(&opts.readOnly, "readonly", "R", false, "open DEVICE read-only")
	cli.NumVarP(f, &opts.report, "report", "o", 0, 15, "reporting option")
	cli.NumVarP(f, &opts.start, "start", "s", 0, 1<<63-1, "report zones from the LBA")

	return t, cmd
}

func run(t *cli.Tool, opts *options, args []string) error {
	device, err := cli.DeviceArg(args)
	if err != nil {
		return err
	}

	dev, err := cli.OpenDevice(device, opts.readOnly)
	if err != nil {
		return err
	}
	defer dev.Close()

	maxLen := int(opts.maxLen)
	if maxLen == 0 {
		maxLen = defRzonesBuffLen
	}

	buf := make([]byte, maxLen)
	cdb := scsi.ReportZones(opts.start, uint32(maxLen), uint8(opts.report))

	o := scsi.Run(dev, &scsi.Command{Name: "Report zones", CDB: cdb[:], Direction: scsi.DirFromDevice, Data: buf})
	if !o.OK() {
		t.ReportSense(o)
		if o.Category == scsi.CategoryInvalidOp {
			t.Errorf("Report zones command not supported\n")
		} else {
			t.Errorf("Report zones command: %s\n", cli.CategoryString(o))
		}
		return cli.Exit(o.Category)
	}

	resp := buf[:o.Result.Transferred(maxLen)]

	n, err := scsi.ZoneListLength(resp)
	if err != nil {
		t.Errorf("Response length (%d) too short\n", len(resp))
		return cli.Exit(scsi.CategoryMalformed)
	}

	log.WithFields(log.Fields{"available": n, "received": len(resp)}).Info("zone list length")

	if opts.raw {
		t.Stdout.Write(resp[:n])
		return nil
	}

	if opts.hex > 0 && opts.hex != 2 {
		noASCII := 1
		if opts.hex > 2 {
			noASCII = -1
		}
		utils.HexDump(t.Stdout, resp[:n], noASCII)
		return nil
	}

	t.Printf("Report zones response:\n")

	zl, err := scsi.DecodeReportZones(resp)
	if err != nil {
		t.Errorf("Zone length [%d] too short (perhaps after truncation)\n", n)
		return cli.Exit(scsi.CategoryMalformed)
	}

	t.Printf("  Same=%d: %s\n\n", zl.Same, scsi.ZoneSameDescription(zl.Same))

	verbose := t.Verbose > 0
	for k, z := range zl.Zones {
		t.Printf(" Zone descriptor: %d\n", k)
		if opts.hex > 0 {
			utils.HexDump(t.Stdout, z.Raw, -1)
			continue
		}

		t.Printf("   Zone type: %s\n", scsi.ZoneTypeName(z.Type, verbose))
		t.Printf("   Zone condition: %s\n", scsi.ZoneConditionName(z.Condition, verbose))
		t.Printf("   Non_seq: %d\n", b2i(z.NonSeq))
		t.Printf("   Reset: %d\n", b2i(z.Reset))
		t.Printf("   Zone Length: 0x%x\n", z.Length)
		t.Printf("   Zone start LBA: 0x%x\n", z.StartLBA)
		t.Printf("   Write pointer LBA: 0x%x\n", z.WritePointer)
	}

	if zl.Truncated {
		t.Printf("\n>>> Beware: Zone list truncated, may need another call\n")
	}

	return nil
}

func b2i(b bool) int {
	if b {
		return 1
	}

	return 0
}

func main() {
	t, cmd := newCommand()
	t.Main(cmd)
}
