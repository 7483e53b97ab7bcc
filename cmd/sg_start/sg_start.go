// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Issue a SCSI START STOP UNIT command.
//
// Two command line syntaxes are understood. The default is the usual GNU style; the older one,
// with options like "--imm=1" and bare "0" / "1" operands, is selected by setting the
// SG3_UTILS_OLD_OPTS environment variable or by passing -O. -N switches back.
//
package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dswarbrick/sgutils/cli"
	"github.com/dswarbrick/sgutils/scsi"
)

const (
	version = "0.59 20130507"

	startStopTimeout = 120 * time.Second
)

type options struct {
	eject    bool
	fl       uint64
	flGiven  bool
	immed    bool
	load     bool
	loej     bool
	mod      uint64
	noflush  bool
	newOpts  bool
	oldOpts  bool
	pc       uint64
	readOnly bool
	start    bool
	stop     bool
	device   string

	// old is true while the legacy syntax is in effect.
	old bool
}

func usageNew(w io.Writer) {
	fmt.Fprint(w, `Usage: sg_start [--eject] [--fl=FL] [--help] [--immed] [--load] [--loej]
                [--mod=PC_MOD] [--noflush] [--pc=PC] [--readonly]
                [--start] [--stop] [--verbose] [--version] DEVICE
  where:
    --eject|-e      stop unit then eject the medium
    --fl=FL|-f FL    format layer number (mmc5)
    --help|-h       print usage message then exit
    --immed|-i      device should return control after receiving cdb,
                    default action is to wait until action is complete
    --load|-l       load medium then start the unit
    --loej|-L       load or eject, corresponds to LOEJ bit in cdb;
                    load when START bit also set, else eject
    --mod=PC_MOD|-m PC_MOD    power condition modifier (def: 0) (sbc)
    --noflush|-n    no flush prior to operation that limits access (sbc)
    --pc=PC|-p PC    power condition: 0 (default) -> no power condition,
                    1 -> active, 2 -> idle, 3 -> standby, 5 -> sleep (mmc)
    --readonly|-r    open DEVICE read-only (def: read-write)
                     recommended if DEVICE is ATA disk
    --start|-s      start unit, corresponds to START bit in cdb,
                    default (START=1) if no other options given
    --stop|-S       stop unit (e.g. spin down disk)
    --verbose|-v    increase verbosity
    --version|-V    print version string then exit

    Example: 'sg_start --stop /dev/sdb'    stops unit
             'sg_start --eject /dev/scd0'  stops unit and ejects medium

Performs a SCSI START STOP UNIT command
`)
}

func usageOld(w io.Writer) {
	fmt.Fprint(w, `Usage:  sg_start [0] [1] [--eject] [--fl=FL] [-i] [--imm=0|1]
                 [--load] [--loej] [--mod=PC_MOD] [--noflush] [--pc=PC]
                 [--readonly] [--start] [--stop] [-v] [-V]
                 DEVICE
  where:
    0          stop unit (e.g. spin down a disk or a cd/dvd)
    1          start unit (e.g. spin up a disk or a cd/dvd)
    --eject    stop then eject the medium
    --fl=FL    format layer number (mmc5)
    -i         return immediately (same as '--imm=1')
    --imm=0|1  0->await completion(def), 1->return immediately
    --load     load then start the medium
    --loej     load the medium if '-start' option is also given
               or stop unit and eject
    --mod=PC_MOD    power condition modifier (def: 0) (sbc)
    --noflush    no flush prior to operation that limits access (sbc)
    --pc=PC    power condition (in hex, default 0 -> no power condition)
               1 -> active, 2 -> idle, 3 -> standby, 5 -> sleep (mmc)
    --readonly|-r    open DEVICE read-only (def: read-write)
                     recommended if DEVICE is ATA disk
    --start    start unit (same as '1'), default action
    --stop     stop unit (same as '0')
    -v         verbose (print out SCSI commands)
    -V         print version string then exit

    Example: 'sg_start --stop /dev/sdb'    stops unit
             'sg_start --eject /dev/scd0'  stops unit and ejects medium

Performs a SCSI START STOP UNIT command
`)
}

func newCommand() (*cli.Tool, *cobra.Command) {
	var (
		opts options
		cmd  *cobra.Command
	)

	t := cli.NewTool("sg_start", version, func(w io.Writer) {
		if opts.old {
			usageOld(w)
		} else {
			usageNew(w)
		}
	})
	cmd = t.Command(func(args []string) error {
		if err := parseArgs(t, cmd, &opts, args); err != nil {
			return err
		}
		return run(t, &opts)
	})
	cmd.DisableFlagParsing = true

	f := cmd.Flags()
	f.BoolVarP(&opts.eject, "eject", "e", false, "stop unit then eject the medium")
	cli.NumVarP(f, &opts.fl, "fl", "f", 0, 3, "format layer number (mmc5)")
	f.BoolVarP(&opts.immed, "immed", "i", false, "return control after receiving cdb")
	f.BoolVarP(&opts.load, "load", "l", false, "load medium then start the unit")
	f.BoolVarP(&opts.loej, "loej", "L", false, "load or eject")
	cli.NumVarP(f, &opts.mod, "mod", "m", 0, 15, "power condition modifier")
	f.BoolVarP(&opts.noflush, "noflush", "n", false, "no flush prior to operation that limits access")
	f.BoolVarP(&opts.newOpts, "new", "N", false, "use the current command line syntax")
	f.BoolVarP(&opts.oldOpts, "old", "O", false, "use the legacy command line syntax")
	cli.NumVarP(f, &opts.pc, "pc", "p", 0, 15, "power condition")
	f.BoolVarP(&opts.readOnly, "readonly", "r", false, "open DEVICE read-only")
	f.BoolVarP(&opts.start, "start", "s", false, "start unit")
	f.BoolVarP(&opts.stop, "stop", "S", false, "stop unit")

	return t, cmd
}

// parseArgs fills opts from args using whichever syntax is in effect, switching once if the
// chosen parser asks for the other.
func parseArgs(t *cli.Tool, cmd *cobra.Command, opts *options, args []string) error {
	opts.old = cli.Env().IsSet("old_opts")

	if opts.old {
		toNew, err := parseOld(t, opts, args)
		if err != nil || !toNew {
			return err
		}
		opts.old = false
		return parseNew(cmd, opts, args)
	}

	if wantsOld(args) {
		opts.old = true
		_, err := parseOld(t, opts, args)
		return err
	}

	return parseNew(cmd, opts, args)
}

// wantsOld reports whether args carry -O (possibly bundled with other short options) or --old
// before the end of options.
func wantsOld(args []string) bool {
	for _, a := range args {
		switch {
		case a == "--":
			return false
		case a == "--old":
			return true
		case len(a) > 1 && a[0] == '-' && a[1] != '-':
			for _, c := range a[1:] {
				if c == 'O' {
					return true
				}
				// Options taking a value end the bundle.
				if strings.ContainsRune("fmp", c) {
					break
				}
			}
		}
	}

	return false
}

func parseNew(cmd *cobra.Command, opts *options, args []string) error {
	f := cmd.Flags()
	if err := f.Parse(args); err != nil {
		return &cli.SyntaxError{Msg: err.Error()}
	}

	if f.Changed("fl") {
		opts.flGiven = true
		opts.start = true
	}
	if opts.eject || opts.load || opts.flGiven {
		opts.loej = true
	}

	var extra []string
	for _, a := range f.Args() {
		switch {
		case a == "0":
			opts.stop = true
		case a == "1":
			opts.start = true
		case opts.device == "":
			opts.device = a
		default:
			extra = append(extra, fmt.Sprintf("Unexpected extra argument: %s", a))
		}
	}

	if len(extra) > 0 {
		return cli.Syntaxf("%s", strings.Join(extra, "\n"))
	}

	return nil
}

// scanHex reads a leading hexadecimal number, with optional 0x prefix, ignoring anything after it.
func scanHex(s string) (uint64, bool) {
	s = strings.TrimLeft(s, " \t")
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}

	n := 0
	for n < len(s) && strings.IndexByte("0123456789abcdefABCDEF", s[n]) >= 0 {
		n++
	}

	v, err := strconv.ParseUint(s[:n], 16, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// parseOld applies the legacy syntax. It returns true when -N asks for the current syntax instead.
func parseOld(t *cli.Tool, opts *options, args []string) (bool, error) {
	const (
		unset = iota - 1
		stop
		start
	)

	startStop := unset
	ambiguous := false

	for _, arg := range args {
		if arg == "" {
			continue
		}

		if arg[0] == '-' {
			cp := arg[1:]
			jmpOut := false

		bundle:
			for len(cp) > 0 {
				switch cp[0] {
				case 'i':
					if len(cp) > 1 {
						jmpOut = true
						break bundle
					}
					opts.immed = true
				case 'r':
					opts.readOnly = true
				case 'v':
					t.Verbose++
				case 'V':
					t.ShowVersion = true
				case 'h', '?':
					t.Help++
				case 'N':
					return true, nil
				case 'O':
				case '-':
					cp = cp[1:]
					jmpOut = true
					break bundle
				default:
					jmpOut = true
					break bundle
				}
				cp = cp[1:]
			}

			if len(cp) == 0 {
				continue
			}

			switch {
			case strings.HasPrefix(cp, "eject"):
				opts.loej = true
				if startStop == start {
					ambiguous = true
				} else {
					startStop = stop
				}
			case strings.HasPrefix(cp, "fl="):
				u, ok := scanHex(cp[3:])
				if !ok {
					return false, cli.Syntaxf("Bad value after 'fl=' option")
				}
				startStop = start
				opts.loej = true
				opts.fl, opts.flGiven = u, true
			case strings.HasPrefix(cp, "imm="):
				u, ok := scanHex(cp[4:])
				if !ok || u > 1 {
					return false, cli.Syntaxf("Bad value after 'imm=' option")
				}
				opts.immed = u == 1
			case strings.HasPrefix(cp, "load"):
				opts.loej = true
				if startStop == stop {
					ambiguous = true
				} else {
					startStop = start
				}
			case strings.HasPrefix(cp, "loej"):
				opts.loej = true
			case strings.HasPrefix(cp, "pc="):
				u, ok := scanHex(cp[3:])
				if !ok || u > 15 {
					return false, cli.Syntaxf("Bad value after 'pc=' option")
				}
				opts.pc = u
			case strings.HasPrefix(cp, "mod="):
				u, ok := scanHex(cp[4:])
				if !ok || u > 15 {
					return false, cli.Syntaxf("Bad value after 'mod=' option")
				}
				opts.mod = u
			case strings.HasPrefix(cp, "noflush"):
				opts.noflush = true
			case strings.HasPrefix(cp, "start"):
				if startStop == stop {
					ambiguous = true
				} else {
					startStop = start
				}
			case strings.HasPrefix(cp, "stop"):
				if startStop == start {
					ambiguous = true
				} else {
					startStop = stop
				}
			case strings.HasPrefix(cp, "old"):
			case jmpOut:
				return false, cli.Syntaxf("Unrecognized option: %s", cp)
			}
		} else if arg == "0" {
			if startStop == start {
				ambiguous = true
			} else {
				startStop = stop
			}
		} else if arg == "1" {
			if startStop == stop {
				ambiguous = true
			} else {
				startStop = start
			}
		} else if opts.device == "" {
			opts.device = arg
		} else {
			return false, cli.Syntaxf("too many arguments, got: %s, not expecting: %s", opts.device, arg)
		}

		if ambiguous {
			return false, cli.Syntaxf("please, only one of 0, 1, --eject, --load, --start or --stop")
		}

		switch startStop {
		case stop:
			opts.stop = true
		case start:
			opts.start = true
		}
	}

	return false, nil
}

// params resolves the parsed options into the START STOP UNIT fields.
func params(opts *options) (scsi.StartStopParams, error) {
	if opts.start && opts.stop {
		return scsi.StartStopParams{}, cli.SyntaxOnlyf("Ambiguous to give both '--start' and '--stop'")
	}
	if opts.load && opts.eject {
		return scsi.StartStopParams{}, cli.SyntaxOnlyf("Ambiguous to give both '--load' and '--eject'")
	}

	start := opts.start
	switch {
	case opts.load:
		start = true
	case opts.eject || opts.stop:
		start = false
	case !opts.old && opts.loej && !start:
		// --loej alone loads.
		start = true
	case !opts.loej && !opts.flGiven && opts.pc == 0:
		start = true
	}

	if opts.device == "" {
		return scsi.StartStopParams{}, cli.Syntaxf("No DEVICE argument given")
	}

	if opts.flGiven {
		if !start {
			return scsi.StartStopParams{}, cli.SyntaxOnlyf("Giving '--fl=FL' with '--stop' (or '--eject') is invalid")
		}
		if opts.pc > 0 {
			return scsi.StartStopParams{}, cli.SyntaxOnlyf("Giving '--fl=FL' with '--pc=PC' when PC is non-zero is invalid")
		}

		// The format layer travels in the modifier field, flagged by the FL bit.
		return scsi.StartStopParams{
			Immed:    opts.immed,
			Modifier: uint8(opts.fl),
			NoFlush:  true,
			LoEj:     true,
			Start:    true,
		}, nil
	}

	if opts.pc > 0 {
		return scsi.StartStopParams{
			Immed:          opts.immed,
			Modifier:       uint8(opts.mod),
			PowerCondition: uint8(opts.pc),
			NoFlush:        opts.noflush,
		}, nil
	}

	return scsi.StartStopParams{
		Immed:   opts.immed,
		NoFlush: opts.noflush,
		LoEj:    opts.loej,
		Start:   start,
	}, nil
}

func run(t *cli.Tool, opts *options) error {
	if t.Help > 0 {
		t.Usage(t.Stderr)
		return nil
	}

	if t.ShowVersion {
		t.Errorf("Version string: %s\n", version)
		return nil
	}

	cli.SetupLogging(t.Verbose)

	p, err := params(opts)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"old_syntax": opts.old,
		"start":      p.Start,
		"loej":       p.LoEj,
		"pc":         p.PowerCondition,
	}).Info("start stop unit")

	dev, err := cli.OpenDevice(opts.device, opts.readOnly)
	if err != nil {
		return err
	}
	defer dev.Close()

	cdb := scsi.StartStopUnit(p)

	o := scsi.Run(dev, &scsi.Command{
		Name:      "start stop unit",
		CDB:       cdb[:],
		Direction: scsi.DirNone,
		Timeout:   startStopTimeout,
	})
	if o.OK() {
		return nil
	}

	t.ReportSense(o)
	if t.Verbose < 2 {
		t.Errorf("%s\n", cli.CategoryString(o))
	}
	t.Errorf("START STOP UNIT command failed\n")

	return cli.Exit(o.Category)
}

func main() {
	t, cmd := newCommand()
	t.Main(cmd)
}
