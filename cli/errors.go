// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"

	"github.com/dswarbrick/sgutils/scsi"
)

// ExitError terminates a tool with the given exit status. Msg, when set, is printed to stderr.
type ExitError struct {
	Code int
	Msg  string
}

func (e *ExitError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}

	return e.Msg
}

// Exit returns an ExitError for a category whose diagnostics have already been printed.
func Exit(cat scsi.Category) error {
	if cat.ExitCode() == 0 {
		return nil
	}

	return &ExitError{Code: cat.ExitCode()}
}

// Exitf returns an ExitError with a formatted message.
func Exitf(code int, format string, a ...interface{}) error {
	return &ExitError{Code: code, Msg: fmt.Sprintf(format, a...)}
}

// FileError is an ExitError with the file error status.
func FileError(format string, a ...interface{}) error {
	return Exitf(scsi.CategoryFileError.ExitCode(), format, a...)
}

// SyntaxError is a command line problem. The usage message is printed after Msg.
type SyntaxError struct {
	Msg string
	// NoUsage suppresses the usage message.
	NoUsage bool
}

func (e *SyntaxError) Error() string {
	return e.Msg
}

// Syntaxf returns a SyntaxError that shows usage.
func Syntaxf(format string, a ...interface{}) error {
	return &SyntaxError{Msg: fmt.Sprintf(format, a...)}
}

// SyntaxOnlyf returns a SyntaxError that does not show usage.
func SyntaxOnlyf(format string, a ...interface{}) error {
	return &SyntaxError{Msg: fmt.Sprintf(format, a...), NoUsage: true}
}

// exitCode maps an error returned by a tool to its exit status.
func exitCode(err error) int {
	var (
		exitErr   *ExitError
		syntaxErr *SyntaxError
		cmdErr    *scsi.CommandError
	)

	switch {
	case err == nil:
		return 0
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.As(err, &syntaxErr):
		return scsi.CategorySyntax.ExitCode()
	case errors.As(err, &cmdErr):
		return cmdErr.ExitCode()
	}

	return scsi.CategoryOther.ExitCode()
}
