// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Command outcome classification.

package scsi

import (
	"fmt"
)

// SCSI status codes
const (
	SAM_STAT_GOOD                 = 0x00
	SAM_STAT_CHECK_CONDITION      = 0x02
	SAM_STAT_CONDITION_MET        = 0x04
	SAM_STAT_BUSY                 = 0x08
	SAM_STAT_RESERVATION_CONFLICT = 0x18
	SAM_STAT_COMMAND_TERMINATED   = 0x22
	SAM_STAT_TASK_SET_FULL        = 0x28
	SAM_STAT_ACA_ACTIVE           = 0x30
	SAM_STAT_TASK_ABORTED         = 0x40

	// Linux host and driver status values of interest
	DID_TIME_OUT   = 0x03
	DRIVER_TIMEOUT = 0x06
	DRIVER_SENSE   = 0x08
)

// Category is the outcome of a command. Its numeric value is the process exit status used by the
// tools.
type Category int

const (
	CategoryClean              Category = 0
	CategorySyntax             Category = 1
	CategoryNotReady           Category = 2
	CategoryMediumHard         Category = 3
	CategoryIllegalReq         Category = 5
	CategoryUnitAttention      Category = 6
	CategoryDataProtect        Category = 7
	CategoryInvalidOp          Category = 9
	CategoryCopyAborted        Category = 10
	CategoryAbortedCommand     Category = 11
	CategoryMiscompare         Category = 14
	CategoryFileError          Category = 15
	CategoryNoSense            Category = 20
	CategoryRecovered          Category = 21
	CategoryResConflict        Category = 24
	CategoryConditionMet       Category = 25
	CategoryBusy               Category = 26
	CategoryTaskSetFull        Category = 27
	CategoryACAActive          Category = 28
	CategoryTaskAborted        Category = 29
	CategoryTimeout            Category = 33
	CategoryProtection         Category = 40
	CategoryATAPassThroughInfo Category = 41
	CategoryMalformed          Category = 97
	CategorySense              Category = 98
	CategoryOther              Category = 99
)

var categoryNames = map[Category]string{
	CategoryClean:              "No errors",
	CategorySyntax:             "Syntax error",
	CategoryNotReady:           "Not ready",
	CategoryMediumHard:         "Medium or hardware error",
	CategoryIllegalReq:         "Illegal request",
	CategoryUnitAttention:      "Unit attention",
	CategoryDataProtect:        "Data protect",
	CategoryInvalidOp:          "Illegal request, invalid opcode",
	CategoryCopyAborted:        "Copy aborted",
	CategoryAbortedCommand:     "Aborted command",
	CategoryMiscompare:         "Miscompare",
	CategoryFileError:          "File error",
	CategoryNoSense:            "No sense",
	CategoryRecovered:          "Recovered error",
	CategoryResConflict:        "Reservation conflict",
	CategoryConditionMet:       "Condition met",
	CategoryBusy:               "Busy",
	CategoryTaskSetFull:        "Task set full",
	CategoryACAActive:          "ACA active",
	CategoryTaskAborted:        "Task aborted",
	CategoryTimeout:            "Timeout",
	CategoryProtection:         "Aborted command, protection information",
	CategoryATAPassThroughInfo: "ATA pass-through information available",
	CategoryMalformed:          "Response malformed",
	CategorySense:              "Some sense data, use '-v' for more information",
	CategoryOther:              "Some error",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}

	return fmt.Sprintf("Unknown category (%d)", int(c))
}

// ExitCode returns the process exit status for the category. ATA pass-through information is a
// successful outcome and maps to zero.
func (c Category) ExitCode() int {
	if c == CategoryATAPassThroughInfo {
		return 0
	}

	return int(c)
}

// Outcome is a classified command result.
type Outcome struct {
	// Name is the command name used in messages, e.g. "Report Luns".
	Name     string
	Category Category
	Result   Result
	Sense    Sense
	HasSense bool
	// TransportErr is set when the command never reached the device.
	TransportErr error
}

// OK reports whether the command completed without an error worth reporting.
func (o Outcome) OK() bool {
	switch o.Category {
	case CategoryClean, CategoryRecovered, CategoryNoSense, CategoryATAPassThroughInfo, CategoryConditionMet:
		return true
	}

	return false
}

// Err returns nil for successful outcomes, otherwise a *CommandError.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}

	return &CommandError{Name: o.Name, Category: o.Category, Sense: o.Sense, HasSense: o.HasSense, cause: o.TransportErr}
}

// Info returns the information field of the sense data, if any.
func (o Outcome) Info() (uint64, bool) {
	if !o.HasSense {
		return 0, false
	}

	return o.Sense.Info()
}

// CommandError describes a failed command.
type CommandError struct {
	Name     string
	Category Category
	Sense    Sense
	HasSense bool
	cause    error
}

func (e *CommandError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Name, e.Category, e.cause)
	}

	return fmt.Sprintf("%s: %s", e.Name, e.Category)
}

func (e *CommandError) Unwrap() error {
	return e.cause
}

// ExitCode returns the process exit status for the error.
func (e *CommandError) ExitCode() int {
	return e.Category.ExitCode()
}

// Classify maps a command result to an outcome category. Transport problems are considered before
// the SCSI status; sense data is only consulted for CHECK CONDITION and COMMAND TERMINATED.
func Classify(res Result) Outcome {
	o := Outcome{Result: res}

	if res.HostStatus == DID_TIME_OUT || res.DriverStatus&0x0f == DRIVER_TIMEOUT {
		o.Category = CategoryTimeout
		return o
	}

	if res.HostStatus != 0 || (res.DriverStatus != 0 && res.DriverStatus&0x0f != DRIVER_SENSE) {
		o.Category = CategoryOther
		return o
	}

	switch res.Status & 0x7e {
	case SAM_STAT_GOOD:
		o.Category = CategoryClean
		// A driver level sense indication with GOOD status still carries sense data
		if res.DriverStatus&0x0f == DRIVER_SENSE && len(res.Sense) > 0 {
			o.Sense, o.HasSense = ParseSense(res.Sense)
			o.Category = senseCategory(o.Sense, o.HasSense)
		}
	case SAM_STAT_CONDITION_MET:
		o.Category = CategoryClean
	case SAM_STAT_CHECK_CONDITION, SAM_STAT_COMMAND_TERMINATED:
		o.Sense, o.HasSense = ParseSense(res.Sense)
		o.Category = senseCategory(o.Sense, o.HasSense)
	case SAM_STAT_RESERVATION_CONFLICT:
		o.Category = CategoryResConflict
	case SAM_STAT_BUSY:
		o.Category = CategoryBusy
	case SAM_STAT_TASK_SET_FULL:
		o.Category = CategoryTaskSetFull
	case SAM_STAT_ACA_ACTIVE:
		o.Category = CategoryACAActive
	case SAM_STAT_TASK_ABORTED:
		o.Category = CategoryTaskAborted
	default:
		o.Category = CategoryOther
	}

	return o
}

func senseCategory(s Sense, ok bool) Category {
	if !ok {
		return CategorySense
	}

	switch s.Key {
	case SENSE_NO_SENSE, SENSE_RECOVERED_ERROR:
		if s.ASC == 0x00 && s.ASCQ == 0x1d {
			return CategoryATAPassThroughInfo
		}
		if s.Key == SENSE_RECOVERED_ERROR {
			return CategoryRecovered
		}
		return CategoryNoSense
	case SENSE_NOT_READY:
		return CategoryNotReady
	case SENSE_MEDIUM_ERROR, SENSE_HARDWARE_ERROR, SENSE_BLANK_CHECK:
		return CategoryMediumHard
	case SENSE_ILLEGAL_REQUEST:
		if s.ASC == 0x20 && s.ASCQ == 0x00 {
			return CategoryInvalidOp
		}
		return CategoryIllegalReq
	case SENSE_UNIT_ATTENTION:
		return CategoryUnitAttention
	case SENSE_DATA_PROTECT:
		return CategoryDataProtect
	case SENSE_COPY_ABORTED:
		return CategoryCopyAborted
	case SENSE_ABORTED_COMMAND:
		if s.ASC == 0x10 {
			return CategoryProtection
		}
		return CategoryAbortedCommand
	case SENSE_MISCOMPARE:
		return CategoryMiscompare
	}

	return CategorySense
}
