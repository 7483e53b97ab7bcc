// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Send an ATA SET FEATURES command through a SAT layer.
//
package main

import (
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dswarbrick/sgutils/ata"
	"github.com/dswarbrick/sgutils/cli"
	"github.com/dswarbrick/sgutils/scsi"
)

const (
	version = "1.10 20141106"

	defTimeout = 20 * time.Second
)

type options struct {
	count    uint64
	ckCond   bool
	extend   bool
	feature  uint64
	cdbLen   uint64
	lba      uint64
	readOnly bool
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: sg_sat_set_features [--count=CO] [--ck_cond] [--extended] [--feature=FEA]
                           [--help] [--lba=LBA] [--len=16|12] [--readonly]
                           [--verbose] [--version] DEVICE
  where:
    --count=CO | -c CO      count field contents (def: 0)
    --ck_cond | -C          set ck_cond field in pass-through (def: 0)
    --extended | -e         enable extended lba values
    --feature=FEA|-f FEA    feature field contents
                            (def: 0 (which is reserved))
    --help | -h             output this usage message
    --lba=LBA | -L LBA      LBA field contents (def: 0)
                            meaning depends on sub-command (feature)
    --len=16|12 | -l 16|12    cdb length: 16 or 12 bytes (def: 16)
    --verbose | -v          increase verbosity
    --readonly | -r         open DEVICE read-only (def: read-write)
                            recommended if DEVICE is ATA disk
    --version | -V          print version string and exit

Sends an ATA SET FEATURES command via a SAT pass through.
Primary feature code is placed in '--feature=FEA' with '--count=CO' and
'--lba=LBA' being auxiliaries for some features.  The arguments CO, FEA
and LBA are decimal unless prefixed by '0x' or have a trailing 'h'.
Example enabling write cache: 'sg_sat_set_feature --feature=2 /dev/sdc'
`)
}

func newCommand() (*cli.Tool, *cobra.Command) {
	var opts options

	t := cli.NewTool("sg_sat_set_features", version, usage)
	cmd := t.Command(func(args []string) error {
		return run(t, &opts, args)
	})

	f := cmd.Flags()
	cli.NumVarP(f, &opts.count, "count", "c", 0, 255, "count field contents")
	f.BoolVarP(&opts.ckCond, "ck_cond", "C", false, "set ck_cond field in pass-through")
	f.BoolVarP(&opts.extend, "extended", "e", false, "enable extended lba values")
	cli.NumVarP(f, &opts.feature, "feature", "f", 0, 255, "feature field contents")
	cli.NumVarP(f, &opts.cdbLen, "len", "l", 16, 16, "cdb length: 16 or 12 bytes")
	cli.NumVarP(f, &opts.lba, "lba", "L", 0, 1<<48-1, "LBA field contents")
	f.BoolVarP(&opts.readOnly, "readonly", "r", false, "open DEVICE read-only")

	return t, cmd
}

func run(t *cli.Tool, opts *options, args []string) error {
	if opts.cdbLen != 12 && opts.cdbLen != 16 {
		return cli.SyntaxOnlyf("argument to '--len' should be 12 or 16")
	}

	device, err := cli.DeviceArg(args)
	if err != nil {
		return err
	}

	// Register values above 32 bits only reach the device in the extended taskfile.
	extend := opts.extend || opts.lba > 0xffffffff

	cdbLen := int(opts.cdbLen)
	if opts.lba > 0xffffff && cdbLen == 12 {
		cdbLen = 16
		log.Info("Since lba > 0xffffff, forcing cdb length to 16")
	}

	dev, err := cli.OpenDevice(device, opts.readOnly)
	if err != nil {
		return err
	}
	defer dev.Close()

	p := scsi.ATAPassThroughParams{
		Protocol:  scsi.ATA_PROTO_NON_DATA,
		Extend:    extend,
		CkCond:    opts.ckCond,
		TDir:      1,
		ByteBlock: 1,
		Features:  uint8(opts.feature),
		Count:     uint8(opts.count),
		LBA:       opts.lba,
		Command:   ata.ATA_SET_FEATURES,
	}

	log.WithFields(log.Fields{
		"feature": fmt.Sprintf("0x%02x", opts.feature),
		"count":   opts.count,
		"lba":     opts.lba,
	}).Infof("ATA SET FEATURES: %s", ata.SetFeaturesName(uint8(opts.feature)))

	var cdb []byte
	if cdbLen == 16 {
		c := scsi.ATAPassThrough16(p)
		cdb = c[:]
	} else {
		c := scsi.ATAPassThrough12(p)
		cdb = c[:]
	}

	o := scsi.Run(dev, &scsi.Command{
		Name:      fmt.Sprintf("ATA pass through (%d)", cdbLen),
		CDB:       cdb,
		Direction: scsi.DirNone,
		Timeout:   defTimeout,
	})

	if t.Verbose > 1 {
		t.ReportSense(o)
	}

	rep := scsi.ClassifyATAPassThrough(o, cdbLen, t.Verbose)
	for _, msg := range rep.Messages {
		t.Errorf("%s\n", msg)
	}

	if rep.HasReturn {
		log.WithFields(log.Fields{
			"error":  fmt.Sprintf("0x%02x", rep.Return.Error),
			"status": fmt.Sprintf("0x%02x", rep.Return.Status),
			"count":  rep.Return.Count,
			"lba":    rep.Return.LBA,
		}).Debug("ATA return descriptor")
	}

	if rep.Category == scsi.CategoryClean {
		log.Trace("command completed with SCSI GOOD status")
	}

	return cli.Exit(rep.Category)
}

func main() {
	t, cmd := newCommand()
	t.Main(cmd)
}
