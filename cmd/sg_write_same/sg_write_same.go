// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Issue a SCSI WRITE SAME (10, 16 or 32) command.
//
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dswarbrick/sgutils/cli"
	"github.com/dswarbrick/sgutils/scsi"
)

const (
	version = "1.09 20150511"

	defTimeout  = 60
	maxXferLen  = 64 * 1024
	protInfoLen = 8
)

type options struct {
	want10, want16, want32 bool

	anchor    bool
	group     uint64
	inFile    string
	lba       uint64
	lbaGiven  bool
	lbData    bool
	ndob      bool
	num       uint64
	numGiven  bool
	pbData    bool
	timeout   uint64
	unmap     bool
	wrprotect uint64
	xferLen   uint64
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: sg_write_same [--10] [--16] [--32] [--anchor] [--grpnum=GN] [--help]
                     [--in=IF] [--lba=LBA] [--lbdata] [--ndob] [--num=NUM]
                     [--pbdata] [--timeout=TO] [--unmap] [--verbose]
                     [--version] [--wrprotect=WRP] [xferlen=LEN]
                     DEVICE
  where:
    --10|-R              do WRITE SAME(10) (even if '--unmap' is given)
    --16|-S              do WRITE SAME(16) (def: 10 unless '--unmap' given,
                         LBA+NUM > 32 bits, or NUM > 65535; then def 16)
    --32|-T              do WRITE SAME(32) (def: 10 or 16)
    --anchor|-a          set anchor field in cdb
    --grpnum=GN|-g GN    GN is group number field (def: 0)
    --help|-h            print out usage message
    --in=IF|-i IF        IF is file to fetch one block of data from (use LEN
                         bytes or whole file). Block written to DEVICE
    --lba=LBA|-l LBA     LBA is the logical block address to start (def: 0)
    --lbdata|-L          set LBDATA bit (obsolete)
    --ndob|-N            set 'no data-out buffer' bit
    --num=NUM|-n NUM     NUM is number of logical blocks to write (def: 1)
                         [Beware NUM==0 may mean rest of device]
    --pbdata|-P          set PBDATA bit (obsolete)
    --timeout=TO|-t TO    command timeout (unit: seconds) (def: 60)
    --unmap|-U           set UNMAP bit
    --verbose|-v         increase verbosity
    --version|-V         print version string then exit
    --wrprotect=WPR|-w WPR    WPR is the WRPROTECT field value (def: 0)
    --xferlen=LEN|-x LEN    LEN is number of bytes from IF to send to
                            DEVICE (def: IF file length)

Performs a SCSI WRITE SAME (10, 16 or 32) command
`)
}

func newCommand() (*cli.Tool, *cobra.Command) {
	var (
		opts options
		cmd  *cobra.Command
	)

	t := cli.NewTool("sg_write_same", version, usage)
	cmd = t.Command(func(args []string) error {
		opts.lbaGiven = cmd.Flags().Changed("lba")
		opts.numGiven = cmd.Flags().Changed("num")
		return run(t, &opts, args)
	})

	f := cmd.Flags()
	f.BoolVarP(&opts.want10, "10", "R", false, "do WRITE SAME(10)")
	f.BoolVarP(&opts.want16, "16", "S", false, "do WRITE SAME(16)")
	f.BoolVarP(&opts.want32, "32", "T", false, "do WRITE SAME(32)")
	f.BoolVarP(&opts.anchor, "anchor", "a", false, "set anchor field in cdb")
	cli.NumVarP(f, &opts.group, "grpnum", "g", 0, 31, "group number field")
	f.StringVarP(&opts.inFile, "in", "i", "", "file to fetch one block of data from")
	cli.NumVarP(f, &opts.lba, "lba", "l", 0, 1<<63-1, "logical block address to start")
	f.BoolVarP(&opts.lbData, "lbdata", "L", false, "set LBDATA bit (obsolete)")
	f.BoolVarP(&opts.ndob, "ndob", "N", false, "set 'no data-out buffer' bit")
	cli.NumVarP(f, &opts.num, "num", "n", 1, 0xffffffff, "number of logical blocks to write")
	f.BoolVarP(&opts.pbData, "pbdata", "P", false, "set PBDATA bit (obsolete)")
	cli.NumVarP(f, &opts.timeout, "timeout", "t", defTimeout, 1<<31-1, "command timeout in seconds")
	f.BoolVarP(&opts.unmap, "unmap", "U", false, "set UNMAP bit")
	cli.NumVarP(f, &opts.wrprotect, "wrprotect", "w", 0, 7, "WRPROTECT field value")
	cli.NumVarP(f, &opts.xferLen, "xferlen", "x", 0, 1<<31-1, "number of bytes from IF to send")

	return t, cmd
}

func (o *options) cdbSize() (int, error) {
	n, size := 0, 10

	if o.want10 {
		n++
	}
	if o.want16 {
		n, size = n+1, 16
	}
	if o.want32 {
		n, size = n+1, 32
	}

	if n > 1 {
		return 0, cli.SyntaxOnlyf("only one '--10', '--16' or '--32' please")
	}

	return size, nil
}

func run(t *cli.Tool, opts *options, args []string) error {
	size, err := opts.cdbSize()
	if err != nil {
		return err
	}

	device, err := cli.DeviceArg(args)
	if err != nil {
		return err
	}

	if opts.inFile == "" && !opts.lbaGiven && !opts.numGiven {
		return cli.SyntaxOnlyf("As a precaution, one of '--in=', '--lba=' or '--num=' is required")
	}

	if opts.ndob {
		if opts.inFile != "" {
			return cli.SyntaxOnlyf("Can't have both --ndob and '--in='")
		}
		if opts.xferLen != 0 {
			return cli.SyntaxOnlyf("With --ndob only '--xferlen=0' (or not given) is acceptable")
		}
	} else if opts.inFile != "" && opts.inFile != "-" {
		fi, err := os.Stat(opts.inFile)
		if err != nil {
			return cli.FileError("unable to stat(%s): %v", opts.inFile, err)
		}
		if opts.xferLen == 0 {
			opts.xferLen = uint64(fi.Size())
		}
	}

	dev, err := cli.OpenDevice(device, false)
	if err != nil {
		return err
	}
	defer dev.Close()

	var buf []byte
	if !opts.ndob {
		if buf, err = dataOut(t, dev, opts); err != nil {
			return err
		}
	}

	p := scsi.WriteSameParams{
		LBA:       opts.lba,
		NumBlocks: uint32(opts.num),
		Group:     uint8(opts.group),
		WrProtect: uint8(opts.wrprotect),
		Anchor:    opts.anchor,
		Unmap:     opts.unmap,
		PBData:    opts.pbData,
		LBData:    opts.lbData,
		NDOB:      opts.ndob,
		CDBSize:   size,
		Want10:    opts.want10,
	}

	cdb, upgrade := scsi.WriteSame(p)
	if upgrade != scsi.NoUpgrade {
		log.Info(upgrade)
	}

	cmd := &scsi.Command{
		Name:      fmt.Sprintf("Write same(%d)", len(cdb)),
		CDB:       cdb,
		Direction: scsi.DirNone,
		Timeout:   time.Duration(opts.timeout) * time.Second,
	}
	if len(buf) > 0 {
		cmd.Direction, cmd.Data = scsi.DirToDevice, buf
	}

	o := scsi.Run(dev, cmd)
	if o.OK() {
		return nil
	}

	t.ReportSense(o)
	if o.Category == scsi.CategoryMediumHard {
		if lba, ok := o.Info(); ok {
			t.Errorf("Medium or hardware error starting at lba=%d [0x%x]\n", lba, lba)
		}
	}
	t.Errorf("Write same(%d): %s\n", len(cdb), cli.CategoryString(o))

	return cli.Exit(o.Category)
}

// dataOut assembles the single block written by the command. Without --xferlen or an input file
// the block length comes from READ CAPACITY.
func dataOut(t *cli.Tool, dev scsi.Transport, opts *options) ([]byte, error) {
	var protEn bool

	if opts.xferLen == 0 {
		c, ok := blockSize(t, dev)
		if ok {
			opts.xferLen = uint64(c.BlockLength)
			protEn = c.ProtEnable
			if protEn && opts.wrprotect > 0 {
				opts.xferLen += protInfoLen
			}
		}
	}

	if opts.xferLen < 1 {
		return nil, cli.SyntaxOnlyf("unable to deduce block size, please give '--xferlen=' argument")
	}

	if opts.xferLen > maxXferLen {
		return nil, cli.SyntaxOnlyf("'--xferlen=%d is out of range ( want <= %d)", opts.xferLen, maxXferLen)
	}

	buf := make([]byte, opts.xferLen)

	if opts.inFile != "" {
		n, err := cli.ReadInput(opts.inFile, t.Stdin, buf)
		if err != nil {
			return nil, err
		}
		if n < len(buf) {
			t.Errorf("tried to read %d bytes from %s, got %d bytes\n", len(buf), opts.inFile, n)
			t.Errorf("  so pad with 0x0 bytes and continue\n")
		}
		return buf, nil
	}

	log.Infof("Default data-out buffer set to %d zeros", len(buf))
	if protEn && opts.wrprotect > 0 {
		copy(buf[len(buf)-protInfoLen:], []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
		log.Info(" ... apart from last 8 bytes which are set to 0xff")
	}

	return buf, nil
}

// blockSize asks the device for its logical block length, preferring READ CAPACITY(16) and
// retrying it once after a unit attention.
func blockSize(t *cli.Tool, dev scsi.Transport) (scsi.Capacity, bool) {
	resp := make([]byte, scsi.READ_CAPACITY_16_LEN)
	rc16 := scsi.ReadCapacity16(scsi.READ_CAPACITY_16_LEN)
	cmd := &scsi.Command{Name: "Read capacity(16)", CDB: rc16[:], Direction: scsi.DirFromDevice, Data: resp}

	o := scsi.Run(dev, cmd)
	if o.Category == scsi.CategoryUnitAttention {
		t.Errorf("Read capacity(16) unit attention, try again\n")
		o = scsi.Run(dev, cmd)
	}

	switch {
	case o.OK():
		log.Tracef("read capacity(16) response:\n% x", resp)
		c, err := scsi.DecodeReadCapacity16(resp)
		if err != nil {
			log.WithError(err).Warn("bad read capacity(16) response")
			return c, false
		}
		return c, true
	case o.Category == scsi.CategoryInvalidOp || o.Category == scsi.CategoryIllegalReq:
		log.Info("Read capacity(16) not supported, try Read capacity(10)")
	default:
		if t.Verbose > 0 {
			t.Errorf("Read capacity(16): %s\n", cli.CategoryString(o))
			t.Errorf("Unable to calculate block size\n")
		}
		return scsi.Capacity{}, false
	}

	resp = make([]byte, scsi.READ_CAPACITY_10_LEN)
	rc10 := scsi.ReadCapacity10()

	o = scsi.Run(dev, &scsi.Command{Name: "Read capacity(10)", CDB: rc10[:], Direction: scsi.DirFromDevice, Data: resp})
	if !o.OK() {
		t.Errorf("Read capacity(10): %s\n", cli.CategoryString(o))
		t.Errorf("Unable to calculate block size\n")
		return scsi.Capacity{}, false
	}

	log.Tracef("read capacity(10) response:\n% x", resp)
	c, err := scsi.DecodeReadCapacity10(resp)
	if err != nil {
		log.WithError(err).Warn("bad read capacity(10) response")
		return c, false
	}

	return c, true
}

func main() {
	t, cmd := newCommand()
	t.Main(cmd)
}
