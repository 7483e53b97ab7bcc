// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Issue a SCSI COMPARE AND WRITE command.
//
package main

import (
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dswarbrick/sgutils/cli"
	"github.com/dswarbrick/sgutils/scsi"
)

const (
	version = "1.10 20150511"

	defBlockSize = 512
	defTimeout   = 60
)

type options struct {
	dpo, fua, fuaNV bool
	group           uint64
	inFile          string
	writeFile       string
	lba             uint64
	lbaGiven        bool
	num             uint64
	quiet           bool
	timeout         uint64
	wrprotect       uint64
	xferLen         uint64
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: sg_compare_and_write [--dpo] [--fua] [--fua_nv] [--group=GN] [--help]
                            --in=IF [--inw=WF] --lba=LBA [--num=NUM]
                            [--quiet] [--timeout=TO] [--verbose] [--version]
                            [--wrpotect=WP] [--xferlen=LEN] DEVICE
  where:
    --dpo|-d            set the dpo bit in cdb (def: clear)
    --fua|-f            set the fua bit in cdb (def: clear)
    --fua_nv|-F         set the fua_nv bit in cdb (def: clear)
    --group=GN|-g GN    GN is GROUP NUMBER to set in cdb (def: 0)
    --help|-h           print out usage message
    --in=IF|-i IF       IF is a file containing a compare buffer and
                        optionally a write buffer (when --inw=WF is
                        not given)
    --inw=WF|-D WF      WF is a file containing a write buffer
    --lba=LBA|-l LBA    LBA of the first block to compare and write
    --num=NUM|-n NUM    number of blocks to compare/write (def: 1)
    --quiet|-q          suppress MISCOMPARE report to stderr,
                        still sets exit status of 14
    --timeout=TO|-t TO    timeout for the command (def: 60 secs)
    --verbose|-v        increase verbosity (use '-vv' for more)
    --version|-V        print version string then exit
    --wrprotect=WP|-w WP    write protect information (def: 0)
    --xferlen=LEN|-x LEN    number of bytes to transfer. Default is
                            (2 * NUM * 512) or 1024 when NUM is 1

Performs a SCSI COMPARE AND WRITE operation.
`)
}

func newCommand() (*cli.Tool, *cobra.Command) {
	var opts options

	t := cli.NewTool("sg_compare_and_write", version, usage)
	var cmd *cobra.Command
	cmd = t.Command(func(args []string) error {
		opts.lbaGiven = cmd.Flags().Changed("lba")
		return run(t, &opts, args)
	})

	f := cmd.Flags()
	f.BoolVarP(&opts.dpo, "dpo", "d", false, "set the dpo bit")
	f.BoolVarP(&opts.fua, "fua", "f", false, "set the fua bit")
	f.BoolVarP(&opts.fuaNV, "fua_nv", "F", false, "set the fua_nv bit")
	cli.NumVarP(f, &opts.group, "group", "g", 0, 31, "group number")
	f.StringVarP(&opts.inFile, "in", "i", "", "compare (and write) buffer file")
	f.StringVarP(&opts.inFile, "inc", "C", "", "compare buffer file")
	f.StringVarP(&opts.writeFile, "inw", "D", "", "write buffer file")
	cli.NumVarP(f, &opts.lba, "lba", "l", 0, 1<<64-1, "logical block address")
	cli.NumVarP(f, &opts.num, "num", "n", 1, 255, "number of blocks")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress miscompare report")
	cli.NumVarP(f, &opts.timeout, "timeout", "t", defTimeout, 1<<31-1, "command timeout in seconds")
	cli.NumVarP(f, &opts.wrprotect, "wrprotect", "w", 0, 7, "write protect information")
	cli.NumVarP(f, &opts.xferLen, "xferlen", "x", 0, 1<<31-1, "bytes to transfer")
	f.MarkHidden("inc")

	return t, cmd
}

func run(t *cli.Tool, opts *options, args []string) error {
	device, err := cli.DeviceArg(args)
	if err != nil {
		return err
	}

	if opts.inFile == "" {
		return cli.Syntaxf("missing input file")
	}

	if !opts.lbaGiven {
		return cli.Syntaxf("missing lba")
	}

	if opts.xferLen == 0 {
		opts.xferLen = 2 * opts.num * defBlockSize
	}

	log.WithFields(log.Fields{
		"in":       opts.inFile,
		"inw":      opts.writeFile,
		"device":   device,
		"lba":      fmt.Sprintf("%#x", opts.lba),
		"blocks":   opts.num,
		"xfer_len": opts.xferLen,
		"timeout":  opts.timeout,
	}).Info("running COMPARE AND WRITE")

	if opts.writeFile == "-" {
		return cli.FileError("sg_compare_and_write: don't allow stdin for write file")
	}

	buf := make([]byte, opts.xferLen)
	if opts.writeFile != "" {
		half := len(buf) / 2
		if err := readExact(t, opts.inFile, buf[:half]); err != nil {
			return err
		}
		if err := readExact(t, opts.writeFile, buf[half:2*half]); err != nil {
			return err
		}
	} else if err := readExact(t, opts.inFile, buf); err != nil {
		return err
	}

	dev, err := cli.OpenDevice(device, false)
	if err != nil {
		return err
	}
	defer dev.Close()

	cdb := scsi.CompareAndWrite(scsi.CompareAndWriteParams{
		LBA:       opts.lba,
		NumBlocks: uint8(opts.num),
		Group:     uint8(opts.group),
		WrProtect: uint8(opts.wrprotect),
		DPO:       opts.dpo,
		FUA:       opts.fua,
		FUANV:     opts.fuaNV,
	})

	o := scsi.Run(dev, &scsi.Command{
		Name:      "COMPARE AND WRITE",
		CDB:       cdb[:],
		Direction: scsi.DirToDevice,
		Data:      buf,
		Timeout:   time.Duration(opts.timeout) * time.Second,
	})

	return report(t, opts, o)
}

func readExact(t *cli.Tool, name string, buf []byte) error {
	n, err := cli.ReadInput(name, t.Stdin, buf)
	if err != nil {
		return err
	}

	if n < len(buf) {
		return cli.FileError("Read only %d bytes (expected %d) from %s", n, len(buf), name)
	}

	return nil
}

func report(t *cli.Tool, opts *options, o scsi.Outcome) error {
	if o.OK() {
		return nil
	}

	switch o.Category {
	case scsi.CategoryMediumHard:
		t.ReportSense(o)
		if lba, ok := o.Info(); ok {
			t.Errorf("Medium or hardware error starting at lba=%d [0x%x]\n", lba, lba)
		} else {
			t.Errorf("Medium or hardware error\n")
		}
		return cli.Exit(o.Category)
	case scsi.CategoryMiscompare:
		if opts.quiet && t.Verbose == 0 {
			return cli.Exit(o.Category)
		}
		t.ReportSense(o)
		if off, ok := o.Info(); ok {
			t.Errorf("Miscompare at byte offset: %d [0x%x]\n", off, off)
		} else {
			t.Errorf("Miscompare reported\n")
		}
		return cli.Exit(o.Category)
	}

	t.ReportSense(o)
	t.Errorf("sg_compare_and_write: SCSI COMPARE AND WRITE: %s\n", cli.CategoryString(o))

	return cli.Exit(o.Category)
}

func main() {
	t, cmd := newCommand()
	t.Main(cmd)
}
