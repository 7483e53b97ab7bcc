// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Issue a SCSI REPORT LUNS command, or decode a given LUN.
//
package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dswarbrick/sgutils/cli"
	"github.com/dswarbrick/sgutils/scsi"
	"github.com/dswarbrick/sgutils/utils"
)

const (
	version = "1.28 20141225"

	maxRlunsBuffLen = 1024 * 1024
	defRlunsBuffLen = 1024 * 8
)

type options struct {
	decode   bool
	hex      int
	linux    int
	luCong   int
	maxLen   uint64
	quiet    bool
	raw      bool
	readOnly bool
	selRep   uint64
	test     string
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `Usage: sg_luns    [--decode] [--help] [--hex] [--linux] [--lu_cong]
                  [--maxlen=LEN] [--quiet] [--raw] [--readonly]
                  [--select=SR] [--verbose] [--version] DEVICE
     or
       sg_luns    --test=ALUN [--hex] [--lu_cong] [--verbose]
  where:
    --decode|-d        decode all luns into component parts
    --help|-h          print out usage message
    --hex|-H           output response in hexadecimal; used twice
                       shows decoded values in hex
    --linux|-l         show Linux integer lun after T10 representation
    --lu_cong          decode as if LU_CONG is set; used twice:
                       decode as if LU_CONG is clear
    --maxlen=LEN|-m LEN    max response length (allocation length in cdb)
                           (def: 0 -> %d bytes)
    --quiet|-q         output only ASCII hex lun values
    --raw|-r           output response in binary
    --readonly|-R      open DEVICE read-only (def: read-write)
    --select=SR|-s SR    select report SR (def: 0)
                          0 -> luns apart from 'well known' lus
                          1 -> only 'well known' logical unit numbers
                          2 -> all luns
                          0x10 -> administrative luns
                          0x11 -> admin luns + non-conglomerate luns
                          0x12 -> admin lun + its subsidiary luns
    --test=ALUN|-t ALUN    decode ALUN and ignore most other options
                           and DEVICE (apart from '-H')
    --verbose|-v       increase verbosity
    --version|-V       print version string and exit

Performs a SCSI REPORT LUNS command or decodes the given ALUN. When SR is
0x10 or 0x11 DEVICE must be LUN 0 or REPORT LUNS well known logical unit;
when SR is 0x12 DEVICE must be an administrative logical unit. When the
--test=ALUN option is given, decodes ALUN rather than sending a REPORT
LUNS command.
`, defRlunsBuffLen)
}

func newCommand() (*cli.Tool, *cobra.Command) {
	var opts options

	t := cli.NewTool("sg_luns", version, usage)
	cmd := t.Command(func(args []string) error {
		return run(t, &opts, args)
	})

	f := cmd.Flags()
	f.BoolVarP(&opts.decode, "decode", "d", false, "decode all luns into component parts")
	f.CountVarP(&opts.hex, "hex", "H", "output response in hexadecimal")
	f.CountVarP(&opts.linux, "linux", "l", "show Linux integer lun")
	f.CountVarP(&opts.luCong, "lu_cong", "L", "decode as if LU_CONG is set")
	cli.NumVarP(f, &opts.maxLen, "maxlen", "m", 0, maxRlunsBuffLen, "max response length")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "output only ASCII hex lun values")
	f.BoolVarP(&opts.raw, "raw", "r", false, "output response in binary")
	f.BoolVarP(&opts.readOnly, "readonly", "R", false, "open DEVICE read-only")
	cli.NumVarP(f, &opts.selRep, "select", "s", 0, 255, "select report")
	f.StringVarP(&opts.test, "test", "t", "", "decode ALUN")

	return t, cmd
}

// hexPrefix parses up to two leading hex digits of s.
func hexPrefix(s string) (byte, int) {
	n := 0
	for n < 2 && n < len(s) && strings.ContainsRune("0123456789abcdefABCDEF", rune(s[n])) {
		n++
	}

	if n == 0 {
		return 0, 0
	}

	v, _ := strconv.ParseUint(s[:n], 16, 8)
	return byte(v), n
}

// parseTestLUN parses the --test argument. A leading 'L' introduces a Linux integer LUN; otherwise
// the argument is up to 8 hex bytes, optionally prefixed by "0x" and optionally separated by
// whitespace, with a trailing 'L' or 'W' requesting a Linux rendering.
func parseTestLUN(arg string) (lun [8]byte, linuxIn, linuxOut, legacyOut bool, err error) {
	if arg == "" {
		return lun, false, false, false, cli.SyntaxOnlyf("expected a hex number, optionally prefixed by '0x'")
	}

	if arg[0] == 'L' || arg[0] == 'l' {
		v, perr := strconv.ParseUint(strings.TrimSpace(arg[1:]), 10, 64)
		if perr != nil {
			return lun, false, false, false,
				cli.SyntaxOnlyf("Unable to read Linux style LUN integer given to --test=")
		}
		return scsi.LinuxToT10(v), true, false, false, nil
	}

	switch arg[len(arg)-1] {
	case 'L', 'l':
		linuxOut = true
	case 'W', 'w':
		legacyOut = true
	}

	cp := arg
	if len(cp) > 1 && cp[0] == '0' && (cp[1] == 'x' || cp[1] == 'X') {
		cp = cp[2:]
	}

	spaced := strings.ContainsAny(cp, " \t")

	k := 0
	for ; k < 8; k++ {
		if spaced {
			cp = strings.TrimLeft(cp, " \t")
		}

		v, n := hexPrefix(cp)
		if n == 0 {
			break
		}
		lun[k] = v

		if spaced {
			cp = cp[n:]
		} else if len(cp) > 2 {
			cp = cp[2:]
		} else {
			cp = ""
		}
	}

	if k == 0 {
		return lun, false, false, false, cli.SyntaxOnlyf("expected a hex number, optionally prefixed by '0x'")
	}

	return lun, false, linuxOut, legacyOut, nil
}

func linuxValue(hex int, v uint64) string {
	switch {
	case hex > 1:
		return fmt.Sprintf("0x%016x", v)
	case hex > 0:
		return fmt.Sprintf("0x%x", v)
	}

	return strconv.FormatUint(v, 10)
}

func runTest(t *cli.Tool, opts *options) error {
	lun, linuxIn, linuxOut, legacyOut, err := parseTestLUN(opts.test)
	if err != nil {
		return err
	}

	if t.Verbose > 0 || linuxIn || legacyOut {
		t.Printf("64 bit LUN in T10 preferred (hex) format: ")
		for _, b := range lun {
			t.Printf(" %02x", b)
		}
		t.Printf("\n")
	}

	if linuxOut {
		t.Printf("Linux 'word flipped' integer LUN representation: %s\n",
			linuxValue(opts.hex, scsi.T10ToLinux(lun)))
	} else if legacyOut {
		t.Printf("Linux internal 64 bit LUN representation: %s\n",
			linuxValue(opts.hex, scsi.LegacyT10ToLinux(lun)))
	}

	t.Printf("Decoded LUN:\n")
	scsi.DecodeLUN(lun, opts.luCong%2 == 1).Format(t.Stdout, "  ", opts.hex > 0, t.Verbose > 0)

	return nil
}

func run(t *cli.Tool, opts *options, args []string) error {
	if len(args) > 1 {
		_, err := cli.DeviceArg(args)
		return err
	}

	if opts.test != "" {
		return runTest(t, opts)
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

	luCong := opts.luCong%2 == 1
	if opts.decode && opts.luCong == 0 {
		buf := make([]byte, scsi.INQ_REPLY_LEN)
		cdb := scsi.Inquiry(uint16(len(buf)))

		o := scsi.Run(dev, &scsi.Command{Name: "INQUIRY", CDB: cdb[:], Direction: scsi.DirFromDevice, Data: buf})
		if !o.OK() {
			t.ReportSense(o)
			t.Errorf("fetching standard INQUIRY response failed\n")
			return cli.Exit(o.Category)
		}

		inq, err := scsi.DecodeInquiry(buf[:o.Result.Transferred(len(buf))])
		if err != nil {
			t.Errorf("fetching standard INQUIRY response failed\n")
			return cli.Exit(scsi.CategoryMalformed)
		}

		luCong = inq.LUCong
		if luCong {
			log.Info("LU_CONG bit set in standard INQUIRY response")
		}
	}

	maxLen := int(opts.maxLen)
	if maxLen == 0 {
		maxLen = defRlunsBuffLen
	}

	buf := make([]byte, maxLen)
	cdb := scsi.ReportLuns(uint8(opts.selRep), uint32(maxLen))

	o := scsi.Run(dev, &scsi.Command{Name: "Report Luns", CDB: cdb[:], Direction: scsi.DirFromDevice, Data: buf})
	if !o.OK() {
		t.ReportSense(o)
		switch o.Category {
		case scsi.CategoryInvalidOp:
			t.Errorf("Report Luns command not supported (support mandatory in SPC-3)\n")
		case scsi.CategoryAbortedCommand:
			t.Errorf("Report Luns, aborted command\n")
		case scsi.CategoryIllegalReq:
			t.Errorf("Report Luns command has bad field in cdb\n")
		default:
			t.Errorf("Report Luns command: %s\n", cli.CategoryString(o))
		}
		return cli.Exit(o.Category)
	}

	list, err := scsi.DecodeReportLuns(buf)
	if err != nil {
		return cli.Exit(scsi.CategoryMalformed)
	}

	lenCap := int(list.ListLength) + 8
	if uint64(list.ListLength)+8 > uint64(maxLen) {
		lenCap = maxLen
	}

	if opts.raw {
		t.Stdout.Write(buf[:lenCap])
		return nil
	}

	if opts.hex == 1 {
		utils.HexDump(t.Stdout, buf[:lenCap], 1)
		return nil
	}

	luns := list.Entries()
	if !opts.quiet {
		suffix := "ies"
		if luns == 1 {
			suffix = "y"
		}
		t.Printf("Lun list length = %d which imples %d lun entr%s\n", list.ListLength, luns, suffix)
	}

	if list.Truncated {
		suffix := "s"
		if len(list.LUNs) == 1 {
			suffix = ""
		}
		t.Errorf("  <<too many luns for internal buffer, will show %d lun%s>>\n", len(list.LUNs), suffix)
	}

	if t.Verbose > 1 {
		t.Errorf("\nOutput response in hex\n")
		utils.HexDump(t.Stderr, buf[:lenCap], 1)
	}

	for k, lun := range list.LUNs {
		if !opts.quiet {
			if k == 0 {
				t.Printf("Report luns [select_report=0x%x]:\n", opts.selRep)
			}
			t.Printf("    ")
		}

		t.Printf("%x", lun[:])

		if opts.linux > 0 {
			v := scsi.T10ToLinux(lun)
			if opts.hex > 1 {
				t.Printf("    [0x%x]", v)
			} else {
				t.Printf("    [%d]", v)
			}
		}
		t.Printf("\n")

		if opts.decode {
			scsi.DecodeLUN(lun, luCong).Format(t.Stdout, "      ", opts.hex > 0, t.Verbose > 0)
		}
	}

	return nil
}

func main() {
	t, cmd := newCommand()
	t.Main(cmd)
}
