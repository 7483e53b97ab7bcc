// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI generic IO functions.

package scsi

import (
	"fmt"
	"runtime"
	"time"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/dswarbrick/sgutils/ioctl"
)

const (
	SG_DXFER_NONE        = -1
	SG_DXFER_TO_DEV      = -2
	SG_DXFER_FROM_DEV    = -3
	SG_DXFER_TO_FROM_DEV = -4

	SG_INFO_OK_MASK = 0x1
	SG_INFO_OK      = 0x0

	SG_IO = 0x2285

	SENSE_BUF_LEN = 64

	DEFAULT_TIMEOUT = 60 * time.Second
)

// Direction is the data transfer direction of a command.
type Direction int

const (
	DirNone Direction = iota
	DirToDevice
	DirFromDevice
)

func (d Direction) sgDxfer() int32 {
	switch d {
	case DirToDevice:
		return SG_DXFER_TO_DEV
	case DirFromDevice:
		return SG_DXFER_FROM_DEV
	}

	return SG_DXFER_NONE
}

// Command is a CDB plus its data buffer. For DirFromDevice the response is written into Data.
type Command struct {
	Name      string
	CDB       []byte
	Direction Direction
	Data      []byte
	Timeout   time.Duration
}

// Result is the raw completion of a command.
type Result struct {
	Status       uint8
	HostStatus   uint16
	DriverStatus uint16
	Info         uint32
	Sense        []byte
	Resid        int
	Duration     time.Duration
}

// Transferred returns the number of data bytes actually transferred for a command of dataLen bytes.
func (r Result) Transferred(dataLen int) int {
	n := dataLen - r.Resid
	if n < 0 {
		return 0
	}
	if n > dataLen {
		return dataLen
	}

	return n
}

// Transport submits commands to a device.
type Transport interface {
	// Execute returns an error only when the command could not be submitted; SCSI level failures
	// are reported in the Result.
	Execute(cmd *Command) (Result, error)
	Close() error
}

// Run executes cmd on t and classifies the result.
func Run(t Transport, cmd *Command) Outcome {
	log.WithFields(log.Fields{"cmd": cmd.Name, "cdb": fmt.Sprintf("% x", cmd.CDB)}).Debug("sending command")
	if cmd.Direction == DirToDevice {
		log.WithField("len", len(cmd.Data)).Tracef("data-out buffer:\n% x", cmd.Data)
	}

	res, err := t.Execute(cmd)
	if err != nil {
		log.WithError(err).WithField("cmd", cmd.Name).Debug("pass-through failed")
		return Outcome{Name: cmd.Name, Category: CategoryOther, Result: res, TransportErr: err}
	}

	o := Classify(res)
	o.Name = cmd.Name

	log.WithFields(log.Fields{
		"cmd":           cmd.Name,
		"status":        fmt.Sprintf("%#02x", res.Status),
		"host_status":   fmt.Sprintf("%#02x", res.HostStatus),
		"driver_status": fmt.Sprintf("%#02x", res.DriverStatus),
		"resid":         res.Resid,
		"duration":      res.Duration,
		"category":      o.Category,
	}).Debug("command completed")
	if o.HasSense {
		log.WithField("cmd", cmd.Name).Debug(o.Sense)
	}

	return o
}

// SCSI generic ioctl header, defined as sg_io_hdr_t in <scsi/sg.h>
type sgIoHdr struct {
	interface_id    int32   // 'S' for SCSI generic (required)
	dxfer_direction int32   // data transfer direction
	cmd_len         uint8   // SCSI command length (<= 16 bytes)
	mx_sb_len       uint8   // max length to write to sbp
	iovec_count     uint16  // 0 implies no scatter gather
	dxfer_len       uint32  // byte count of data transfer
	dxferp          uintptr // points to data transfer memory or scatter gather list
	cmdp            uintptr // points to command to perform
	sbp             uintptr // points to sense_buffer memory
	timeout         uint32  // MAX_UINT -> no timeout (unit: millisec)
	flags           uint32  // 0 -> default, see SG_FLAG...
	pack_id         int32   // unused internally (normally)
	usr_ptr         uintptr // unused internally
	status          uint8   // SCSI status
	masked_status   uint8   // shifted, masked scsi status
	msg_status      uint8   // messaging level data (optional)
	sb_len_wr       uint8   // byte count actually written to sbp
	host_status     uint16  // errors from host adapter
	driver_status   uint16  // errors from software driver
	resid           int32   // dxfer_len - actual_transferred
	duration        uint32  // time taken by cmd (unit: millisec)
	info            uint32  // auxiliary information
}

// SCSIDevice is a Linux SCSI generic (or block) device node accessed with the SG_IO ioctl.
type SCSIDevice struct {
	Name string
	fd   int
}

// OpenSCSIDevice opens a device node for pass-through. A read-only open is sufficient for most
// commands on Linux; writes need read-write access.
func OpenSCSIDevice(name string, readOnly bool) (*SCSIDevice, error) {
	flags := unix.O_RDWR | unix.O_NONBLOCK
	if readOnly {
		flags = unix.O_RDONLY | unix.O_NONBLOCK
	}

	fd, err := unix.Open(name, flags, 0600)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"device": name, "fd": fd, "readonly": readOnly}).Debug("opened device")

	return &SCSIDevice{Name: name, fd: fd}, nil
}

func (d *SCSIDevice) Close() error {
	return unix.Close(d.fd)
}

func (d *SCSIDevice) Execute(cmd *Command) (Result, error) {
	var res Result

	if len(cmd.CDB) == 0 || len(cmd.CDB) > 255 {
		return res, fmt.Errorf("invalid cdb length %d", len(cmd.CDB))
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = DEFAULT_TIMEOUT
	}

	senseBuf := make([]byte, SENSE_BUF_LEN)

	hdr := sgIoHdr{
		interface_id:    'S',
		dxfer_direction: cmd.Direction.sgDxfer(),
		timeout:         uint32(timeout / time.Millisecond),
		cmd_len:         uint8(len(cmd.CDB)),
		mx_sb_len:       uint8(len(senseBuf)),
		cmdp:            uintptr(unsafe.Pointer(&cmd.CDB[0])),
		sbp:             uintptr(unsafe.Pointer(&senseBuf[0])),
	}

	if len(cmd.Data) > 0 && cmd.Direction != DirNone {
		hdr.dxfer_len = uint32(len(cmd.Data))
		hdr.dxferp = uintptr(unsafe.Pointer(&cmd.Data[0]))
	} else {
		hdr.dxfer_direction = SG_DXFER_NONE
	}

	err := ioctl.Ioctl(uintptr(d.fd), SG_IO, uintptr(unsafe.Pointer(&hdr)))
	runtime.KeepAlive(cmd.CDB)
	runtime.KeepAlive(cmd.Data)
	runtime.KeepAlive(senseBuf)

	if err != nil {
		return res, fmt.Errorf("SG_IO ioctl on %s: %w", d.Name, err)
	}

	res = Result{
		Status:       hdr.status,
		HostStatus:   hdr.host_status,
		DriverStatus: hdr.driver_status,
		Info:         hdr.info,
		Sense:        senseBuf[:hdr.sb_len_wr],
		Resid:        int(hdr.resid),
		Duration:     time.Duration(hdr.duration) * time.Millisecond,
	}

	return res, nil
}
