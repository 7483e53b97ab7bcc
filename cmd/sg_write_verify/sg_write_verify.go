// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Issue SCSI WRITE AND VERIFY (10 or 16) commands, optionally repeating them over the whole of an
// input file.
//
package main

import (
	"errors"
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
	version = "1.06 20141217"

	defTimeout   = 60
	defBlockSize = 512
	minBlockSize = 64
)

type options struct {
	want16    bool
	byteCheck uint64
	dpo       bool
	group     uint64
	ilen      uint64
	inFile    string
	lba       uint64
	lbaGiven  bool
	num       uint64
	repeat    bool
	timeout   uint64
	wrprotect uint64
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: sg_write_verify [--16] [--bytchk=BC] [--dpo] [--group=GN] [--help]
                       [--ilen=IL] [--in=IF] --lba=LBA [--num=NUM]
                       [--repeat] [--timeout=TO] [--verbose] [--version]
                       [--wrprotect=WPR] DEVICE
  where:
    --16|-S              do WRITE AND VERIFY(16) (default: 10)
    --bytchk=BC|-b BC    set BYTCHK field (default: 0)
    --dpo|-d             set DPO bit (default: 0)
    --group=GN|-g GN     GN is group number (default: 0)
    --help|-h            print out usage message
    --ilen=IL| -I IL     input (file) length in bytes, becomes data-out
                         buffer length (def: deduced from IF size)
    --in=IF|-i IF        IF is a file containing the data to be written
    --lba=LBA|-l LBA     LBA of the first block to write and verify;
                         no default, must be given
    --num=NUM|-n NUM     logical blocks to write and verify (def: 1)
    --repeat|-R          while IF still has data to read, send another
                         command, bumping LBA with up to NUM blocks again
    --timeout=TO|-t TO   command timeout in seconds (def: 60)
    --verbose|-v         increase verbosity
    --version|-V         print version string then exit
    --wrprotect|-w WPR   WPR is the WRPROTECT field value (def: 0)

Performs a SCSI WRITE AND VERIFY (10 or 16) command on DEVICE, startings
at LBA for NUM logical blocks. More commands performed only if '--repeat'
option given. Data to be written is fetched from the IF file.
`)
}

func newCommand() (*cli.Tool, *cobra.Command) {
	var (
		opts options
		cmd  *cobra.Command
	)

	t := cli.NewTool("sg_write_verify", version, usage)
	cmd = t.Command(func(args []string) error {
		opts.lbaGiven = cmd.Flags().Changed("lba")
		return run(t, &opts, args)
	})

	f := cmd.Flags()
	f.BoolVarP(&opts.want16, "16", "S", false, "do WRITE AND VERIFY(16)")
	cli.NumVarP(f, &opts.byteCheck, "bytchk", "b", 0, 3, "set BYTCHK field")
	f.BoolVarP(&opts.dpo, "dpo", "d", false, "set DPO bit")
	cli.NumVarP(f, &opts.group, "group", "g", 0, 31, "group number")
	cli.NumVarP(f, &opts.ilen, "ilen", "I", 0, 1<<31-1, "input (file) length in bytes")
	f.StringVarP(&opts.inFile, "in", "i", "", "file containing the data to be written")
	cli.NumVarP(f, &opts.lba, "lba", "l", 0, 1<<63-1, "LBA of the first block to write and verify")
	cli.NumVarP(f, &opts.num, "num", "n", 1, 0xffffffff, "logical blocks to write and verify")
	f.BoolVarP(&opts.repeat, "repeat", "R", false, "repeat while IF still has data to read")
	cli.NumVarP(f, &opts.timeout, "timeout", "t", defTimeout, 1<<31-1, "command timeout in seconds")
	cli.NumVarP(f, &opts.wrprotect, "wrprotect", "w", 0, 7, "WRPROTECT field value")

	return t, cmd
}

// blocksPerChunk checks the --repeat requirements and returns the bytes per logical block implied
// by --ilen and --num.
func blocksPerChunk(opts *options) (uint64, error) {
	if opts.inFile == "" {
		return 0, cli.Syntaxf("with '--repeat' need '--in=IF' option")
	}

	if opts.ilen < 1 {
		return 0, cli.Syntaxf("with '--repeat' need '--ilen=ILEN' option")
	}

	var bpl uint64
	if opts.num > 0 {
		bpl = opts.ilen / opts.num
	}

	if bpl < minBlockSize {
		return 0, cli.Syntaxf("calculated %d bytes per logical block, too small", bpl)
	}

	return bpl, nil
}

func run(t *cli.Tool, opts *options, args []string) error {
	device, err := cli.DeviceArg(args)
	if err != nil {
		return err
	}

	if !opts.lbaGiven {
		return cli.Syntaxf("need a --lba=LBA option")
	}

	if opts.timeout < 1 {
		return cli.SyntaxOnlyf("bad argument to '--timeout'")
	}

	var bpl uint64
	if opts.repeat {
		if bpl, err = blocksPerChunk(opts); err != nil {
			return err
		}
	}

	dev, err := cli.OpenDevice(device, false)
	if err != nil {
		return err
	}
	defer dev.Close()

	size := scsi.WriteAndVerifySize(opts.lba, uint32(opts.num), opts.want16)
	name := fmt.Sprintf("Write and verify(%d)", size)
	if size == 16 && !opts.want16 {
		log.Infof("Switching to %s because LBA or NUM too large", name)
	}

	log.WithFields(log.Fields{
		"device":    device,
		"ilen":      opts.ilen,
		"lba":       fmt.Sprintf("%#x", opts.lba),
		"wrprotect": opts.wrprotect,
		"dpo":       opts.dpo,
		"bytchk":    opts.byteCheck,
		"group":     opts.group,
		"repeat":    opts.repeat,
	}).Infof("Issue %s", name)

	w := &writer{t: t, dev: dev, opts: opts, name: name, size: size, bpl: bpl}
	err = w.writeAll()

	if opts.repeat {
		t.Errorf("%d [0x%x] logical blocks written, in total\n", w.total, w.total)
	}

	return err
}

// writer issues the WRITE AND VERIFY commands of one invocation.
type writer struct {
	t    *cli.Tool
	dev  scsi.Transport
	opts *options
	name string
	size int
	bpl  uint64

	in     io.Reader
	inName string
	total  uint64
}

// openInput opens the input file and settles the data-out length.
func (w *writer) openInput() (io.Closer, error) {
	if w.opts.inFile == "-" {
		w.in, w.inName = w.t.Stdin, "<stdin>"
		log.Debug("Reading input data from stdin")

		if w.opts.ilen < 1 {
			return nil, cli.Exitf(1, "Cannot determine IF size, please give '--ilen='")
		}
		return nil, nil
	}

	f, err := os.Open(w.opts.inFile)
	if err != nil {
		return nil, cli.FileError("sg_write_verify: open error: %s: %v", w.opts.inFile, unwrapPath(err))
	}
	w.in, w.inName = f, w.opts.inFile

	if w.opts.ilen < 1 {
		fi, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, cli.Exitf(1, "Could not fstat(%s)", w.inName)
		}
		if !fi.Mode().IsRegular() {
			f.Close()
			return nil, cli.Exitf(1, "Cannot determine IF size, please give '--ilen='")
		}
		if fi.Size() < 1 {
			f.Close()
			return nil, cli.Exitf(1, "%s file size too small", w.inName)
		}

		w.opts.ilen = uint64(fi.Size())
		log.Infof("Using file size of %d bytes", w.opts.ilen)
	}

	return f, nil
}

func unwrapPath(err error) error {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}

	return err
}

// read fills buf from the input, returning the number of bytes read. Running out of input is not
// an error.
func (w *writer) read(buf []byte) (int, error) {
	n, err := io.ReadFull(w.in, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return n, cli.Exitf(1, "Could not read from %s: %v", w.inName, err)
	}

	return n, nil
}

func (w *writer) writeAll() error {
	opts := w.opts

	var buf []byte
	if opts.inFile != "" {
		c, err := w.openInput()
		if err != nil {
			return err
		}
		if c != nil {
			defer c.Close()
		}

		buf = make([]byte, opts.ilen)
		n, err := w.read(buf)
		if err != nil {
			return err
		}
		if n < len(buf) {
			w.t.Errorf("Read only %d bytes (expected %d) from %s\n", n, len(buf), w.inName)
			if opts.repeat {
				w.t.Errorf("Will scale subsequent pieces when repeat=1, but this is first\n")
			}
			return cli.Exitf(1, "")
		}
	} else {
		if opts.ilen < 1 {
			opts.ilen = defBlockSize * opts.num
			log.Infof("Default write length to %d*%d=%d bytes", opts.num, defBlockSize, opts.ilen)
		}

		buf = make([]byte, opts.ilen)
		for i := range buf {
			buf[i] = 0xff
		}
	}

	lba, num := opts.lba, opts.num
	data := buf

	for first := true; ; first = false {
		if !first {
			lba += num

			n, err := w.read(buf)
			if err != nil {
				return err
			}
			log.Debugf("Subsequent read from %s got %d bytes", w.inName, n)

			if n == 0 {
				return nil
			}

			if n < len(buf) {
				num = uint64(n) / w.bpl
				if rem := uint64(n) % w.bpl; rem != 0 {
					w.t.Errorf(">>> warning: ignoring last %d bytes of %s\n", rem, w.inName)
				}
				if num < 1 {
					return nil
				}
				data = buf[:num*w.bpl]
			}
		}

		if err := w.write(lba, num, data); err != nil {
			return err
		}

		if opts.repeat {
			w.total += num
		}

		if !opts.repeat || num != opts.num {
			return nil
		}
	}
}

func (w *writer) write(lba, num uint64, data []byte) error {
	p := scsi.WriteAndVerifyParams{
		LBA:       lba,
		NumBlocks: uint32(num),
		Group:     uint8(w.opts.group),
		WrProtect: uint8(w.opts.wrprotect),
		ByteCheck: uint8(w.opts.byteCheck),
		DPO:       w.opts.dpo,
	}

	var cdb []byte
	if w.size == 16 {
		c := scsi.WriteAndVerify16(p)
		cdb = c[:]
	} else {
		c := scsi.WriteAndVerify10(p)
		cdb = c[:]
	}

	o := scsi.Run(w.dev, &scsi.Command{
		Name:      w.name,
		CDB:       cdb,
		Direction: scsi.DirToDevice,
		Data:      data,
		Timeout:   time.Duration(w.opts.timeout) * time.Second,
	})
	if o.OK() {
		return nil
	}

	w.t.ReportSense(o)
	if o.Category == scsi.CategoryMediumHard {
		if lba, ok := o.Info(); ok {
			w.t.Errorf("Medium or hardware error starting at lba=%d [0x%x]\n", lba, lba)
		}
	}
	w.t.Errorf("%s: %s\n", w.name, cli.CategoryString(o))

	return cli.Exit(o.Category)
}

func main() {
	t, cmd := newCommand()
	t.Main(cmd)
}
