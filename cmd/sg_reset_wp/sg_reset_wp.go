// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Issue a SCSI RESET WRITE POINTER command.
//
package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dswarbrick/sgutils/cli"
	"github.com/dswarbrick/sgutils/scsi"
)

const version = "1.02 20141215"

type options struct {
	all      bool
	zone     uint64
	zoneSet  bool
	resetAll bool
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: sg_reset_wp  [--all] [--help] [--verbose] [--version]
                    [--zone=ID] DEVICE
  where:
    --all|-a           sets the ALL flag in the cdb
    --help|-h          print out usage message
    --verbose|-v       increase verbosity
    --version|-V       print version string and exit

    --zone=ID|-z ID    ID is the starting LBA of the zone whose
                       write pointer is to be reset
Performs a SCSI RESET WRITE POINTER command. ID is decimal by default,
for hex use a leading '0x' or a trailing 'h'. Either the --zone=ID
or --all option needs to be given.
`)
}

func newCommand() (*cli.Tool, *cobra.Command) {
	var (
		opts options
		cmd  *cobra.Command
	)

	t := cli.NewTool("sg_reset_wp", version, usage)
	cmd = t.Command(func(args []string) error {
		opts.zoneSet = cmd.Flags().Changed("zone")
		return run(t, &opts, args)
	})

	f := cmd.Flags()
	f.BoolVarP(&opts.all, "all", "a", false, "sets the ALL flag in the cdb")
	f.BoolVarP(&opts.resetAll, "reset-all", "R", false, "sets the ALL flag in the cdb")
	f.BoolVar(&opts.resetAll, "reset_all", false, "sets the ALL flag in the cdb")
	cli.NumVarP(f, &opts.zone, "zone", "z", 0, 1<<63-1, "starting LBA of the zone")
	f.MarkHidden("reset-all")
	f.MarkHidden("reset_all")

	return t, cmd
}

func run(t *cli.Tool, opts *options, args []string) error {
	if len(args) > 1 {
		_, err := cli.DeviceArg(args)
		return err
	}

	all := opts.all || opts.resetAll
	if !opts.zoneSet && !all {
		return cli.Syntaxf("either the --zone=ID or --all option is required")
	}

	device, err := cli.DeviceArg(args)
	if err != nil {
		return err
	}

	dev, err := cli.OpenDevice(device, false)
	if err != nil {
		return err
	}
	defer dev.Close()

	cdb := scsi.ResetWritePointer(opts.zone, all)

	o := scsi.Run(dev, &scsi.Command{Name: "Reset write pointer", CDB: cdb[:], Direction: scsi.DirNone})
	if o.OK() {
		return nil
	}

	t.ReportSense(o)
	if o.Category == scsi.CategoryInvalidOp {
		t.Errorf("Reset write pointer command not supported\n")
	} else {
		t.Errorf("Reset write pointer command: %s\n", cli.CategoryString(o))
	}

	return cli.Exit(o.Category)
}

func main() {
	t, cmd := newCommand()
	t.Main(cmd)
}
