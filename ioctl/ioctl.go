// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package ioctl wraps the ioctl(2) system call.
package ioctl

import (
	"golang.org/x/sys/unix"
)

// Ioctl executes an ioctl command on the specified file descriptor. The call may block for as long
// as the driver takes to complete the request (e.g. a SCSI command timeout), so the regular
// Syscall variant is used rather than RawSyscall.
func Ioctl(fd, cmd, ptr uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, cmd, ptr)
	if errno != 0 {
		return errno
	}

	return nil
}
