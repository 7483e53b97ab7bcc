// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/dswarbrick/sgutils/scsi"
	"github.com/dswarbrick/sgutils/sensedb"
	"github.com/dswarbrick/sgutils/utils"
)

// OpenTransport opens a pass-through transport on the named device. Tests replace it with a fake.
var OpenTransport = func(name string, readOnly bool) (scsi.Transport, error) {
	d, err := scsi.OpenSCSIDevice(name, readOnly)
	if err != nil {
		return nil, err
	}

	return d, nil
}

// OpenDevice opens the device, mapping failure to the file error exit status.
func OpenDevice(name string, readOnly bool) (scsi.Transport, error) {
	t, err := OpenTransport(name, readOnly)
	if err != nil {
		var pe *os.PathError
		if errors.As(err, &pe) {
			err = pe.Err
		}
		return nil, FileError("open error: %s: %v", name, err)
	}

	return t, nil
}

// ReadInput reads up to n bytes from the named file, "-" meaning stdin. It returns the number of
// bytes actually read; a short read is not an error.
func ReadInput(name string, stdin io.Reader, buf []byte) (int, error) {
	var r io.Reader

	if name == "-" {
		r = stdin
	} else {
		f, err := os.Open(name)
		if err != nil {
			return 0, FileError("unable to open %s: %v", name, err)
		}
		defer f.Close()
		r = f
	}

	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return n, FileError("read from %s: %v", name, err)
	}

	return n, nil
}

// SenseDB returns the sense description database named by SG3_UTILS_SENSE_DB, falling back to the
// built-in one.
func SenseDB() *sensedb.SenseDb {
	path := Env().GetString("sense_db")

	db, err := sensedb.Load(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("cannot load sense database, using built-in")
		return sensedb.Default()
	}

	return db
}

// SenseLines describes sense data in the style of the verbose sense report.
func SenseLines(db *sensedb.SenseDb, s scsi.Sense) []string {
	format := "Fixed"
	if s.IsDescriptorFormat() {
		format = "Descriptor"
	}

	kind := "current"
	if s.ResponseCode&0x01 != 0 {
		kind = "deferred"
	}

	lines := []string{
		fmt.Sprintf("%s format, %s; Sense key: %s", format, kind, db.SenseKeyName(s.Key)),
		fmt.Sprintf(" Additional sense: %s", db.Lookup(s.ASC, s.ASCQ)),
	}

	if info, ok := s.Info(); ok {
		lines = append(lines, fmt.Sprintf("  Info fld=0x%x [%d]", info, info))
	}

	return lines
}

// ReportSense prints decoded sense data for o to stderr when the verbosity asks for it, or when the
// category alone says nothing useful.
func (t *Tool) ReportSense(o scsi.Outcome) {
	if !o.HasSense {
		return
	}

	if t.Verbose == 0 && o.Category != scsi.CategorySense {
		return
	}

	for _, l := range SenseLines(SenseDB(), o.Sense) {
		t.Errorf("%s\n", l)
	}

	if t.Verbose > 1 {
		t.Errorf(" Raw sense data (in hex):\n")
		utils.HexDump(t.Stderr, o.Sense.Raw, 1)
	}
}

// CategoryString returns the category text of o, with the transport error appended when there
// was one.
func CategoryString(o scsi.Outcome) string {
	if o.TransportErr != nil {
		return fmt.Sprintf("%s: %v", o.Category, o.TransportErr)
	}

	return o.Category.String()
}
