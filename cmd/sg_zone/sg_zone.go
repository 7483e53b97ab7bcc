// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Issue a SCSI OPEN ZONE, CLOSE ZONE or FINISH ZONE command.
//
package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dswarbrick/sgutils/cli"
	"github.com/dswarbrick/sgutils/scsi"
)

const version = "1.00 20141215"

type options struct {
	all    bool
	close  bool
	finish bool
	open   bool
	zone   uint64
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: sg_zone  [--all] [--close] [--finish] [--help] [--open]
                [--verbose] [--version] [--zone=ID] DEVICE
  where:
    --all|-a           sets the ALL flag in the cdb
    --close|-c         issue CLOSE ZONE command
    --finish|-f        issue FINISH ZONE command
    --help|-h          print out usage message
    --open|-o          issue OPEN ZONE command
    --verbose|-v       increase verbosity
    --version|-V       print version string and exit
    --zone=ID|-z ID    ID is the starting LBA of the zone

Performs a SCSI OPEN ZONE, CLOSE ZONE or FINISH ZONE command. ID is
decimal by default, for hex use a leading '0x' or a trailing 'h'.
Either --close, --finish, or --open option needs to be given.
`)
}

func newCommand() (*cli.Tool, *cobra.Command) {
	var opts options

	t := cli.NewTool("sg_zone", version, usage)
	cmd := t.Command(func(args []string) error {
		return run(t, &opts, args)
	})

	f := cmd.Flags()
	f.BoolVarP(&opts.all, "all", "a", false, "sets the ALL flag in the cdb")
	f.BoolVarP(&opts.close, "close", "c", false, "issue CLOSE ZONE command")
	f.BoolVarP(&opts.finish, "finish", "f", false, "issue FINISH ZONE command")
	f.BoolVarP(&opts.open, "open", "o", false, "issue OPEN ZONE command")
	f.BoolVarP(&opts.all, "reset-all", "R", false, "sets the ALL flag in the cdb")
	f.BoolVar(&opts.all, "reset_all", false, "sets the ALL flag in the cdb")
	cli.NumVarP(f, &opts.zone, "zone", "z", 0, 1<<63-1, "starting LBA of the zone")
	f.MarkHidden("reset-all")
	f.MarkHidden("reset_all")

	return t, cmd
}

// serviceAction returns the ZONING OUT service action selected by exactly one of the action flags.
func serviceAction(opts *options) (uint8, bool) {
	var (
		sa    uint8
		count int
	)

	if opts.close {
		sa = scsi.SA_CLOSE_ZONE
		count++
	}
	if opts.finish {
		sa = scsi.SA_FINISH_ZONE
		count++
	}
	if opts.open {
		sa = scsi.SA_OPEN_ZONE
		count++
	}

	return sa, count == 1
}

func run(t *cli.Tool, opts *options, args []string) error {
	if len(args) > 1 {
		_, err := cli.DeviceArg(args)
		return err
	}

	sa, ok := serviceAction(opts)
	if !ok {
		return cli.Syntaxf("one from the --close, --finish and --open options must be given")
	}
	name := scsi.ZoneOutName(sa)

	device, err := cli.DeviceArg(args)
	if err != nil {
		return err
	}

	dev, err := cli.OpenDevice(device, false)
	if err != nil {
		return err
	}
	defer dev.Close()

	cdb := scsi.ZoneOut(sa, opts.zone, opts.all)

	o := scsi.Run(dev, &scsi.Command{Name: name, CDB: cdb[:], Direction: scsi.DirNone})
	if o.OK() {
		return nil
	}

	t.ReportSense(o)
	if o.Category == scsi.CategoryInvalidOp {
		t.Errorf("%s command not supported\n", name)
	} else {
		t.Errorf("%s command: %s\n", name, cli.CategoryString(o))
	}

	return cli.Exit(o.Category)
}

func main() {
	t, cmd := newCommand()
	t.Main(cmd)
}
