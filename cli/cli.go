// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package cli holds the command line plumbing shared by the sg_* tools.
package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Tool describes one command line utility and carries the options common to all of them.
type Tool struct {
	Name    string
	Version string
	// Usage writes the usage message. It may consult Help to print more detail for -hh.
	Usage func(w io.Writer)

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Help        int
	Verbose     int
	ShowVersion bool
}

// NewTool returns a Tool attached to the process's standard streams.
func NewTool(name, version string, usage func(w io.Writer)) *Tool {
	return &Tool{Name: name, Version: version, Usage: usage, Stdin: os.Stdin, Stdout: os.Stdout,
		Stderr: os.Stderr}
}

// Errorf prints a diagnostic to stderr.
func (t *Tool) Errorf(format string, a ...interface{}) {
	fmt.Fprintf(t.Stderr, format, a...)
}

// Printf prints a report line to stdout.
func (t *Tool) Printf(format string, a ...interface{}) {
	fmt.Fprintf(t.Stdout, format, a...)
}

func (t *Tool) printUsage() {
	if t.Usage != nil {
		t.Usage(t.Stderr)
	}
}

// helpValue is a boolean flag that counts its occurrences, so that -hh can ask for more detail.
type helpValue struct {
	n *int
}

func (h helpValue) String() string {
	return strconv.FormatBool(h.n != nil && *h.n > 0)
}

func (h helpValue) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}

	if v {
		*h.n++
	}

	return nil
}

func (h helpValue) Type() string {
	return "bool"
}

// Command builds the cobra command for the tool. Tool specific flags are added by the caller to the
// returned command's flag set; run is invoked with the positional arguments after logging has been
// configured.
func (t *Tool) Command(run func(args []string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   t.Name + " [OPTIONS] DEVICE",
		Args:                  cobra.ArbitraryArgs,
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if t.ShowVersion {
				t.Errorf("version: %s\n", t.Version)
				return nil
			}

			SetupLogging(t.Verbose)
			return run(args)
		},
	}

	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetOut(t.Stdout)
	cmd.SetErr(t.Stderr)

	f := cmd.Flags()
	f.SortFlags = false
	f.VarPF(helpValue{&t.Help}, "help", "h", "print out usage message").NoOptDefVal = "true"
	f.CountVarP(&t.Verbose, "verbose", "v", "increase verbosity")
	f.BoolVarP(&t.ShowVersion, "version", "V", false, "print version string and exit")

	cmd.SetHelpFunc(func(*cobra.Command, []string) {
		t.printUsage()
	})
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &SyntaxError{Msg: err.Error()}
	})

	return cmd
}

// Run executes cmd with args and returns the process exit status, printing any pending diagnostic.
func (t *Tool) Run(cmd *cobra.Command, args []string) int {
	if args == nil {
		args = []string{}
	}

	cmd.SetArgs(args)
	err := cmd.Execute()

	if err != nil {
		switch e := err.(type) {
		case *SyntaxError:
			if e.Msg != "" {
				t.Errorf("%s\n", e.Msg)
			}
			if !e.NoUsage {
				t.printUsage()
			}
		case *ExitError:
			if e.Msg != "" {
				t.Errorf("%s\n", e.Msg)
			}
		default:
			t.Errorf("%s: %v\n", t.Name, err)
		}
	}

	code := exitCode(err)
	log.WithField("exit", code).Debug(t.Name)

	return code
}

// Main runs the tool with the process arguments and exits.
func (t *Tool) Main(cmd *cobra.Command) {
	os.Exit(t.Run(cmd, os.Args[1:]))
}

// DeviceArg returns the single DEVICE operand.
func DeviceArg(args []string) (string, error) {
	if len(args) == 0 {
		return "", Syntaxf("missing device name!")
	}

	if len(args) > 1 {
		msg := ""
		for _, a := range args[1:] {
			msg += fmt.Sprintf("Unexpected extra argument: %s\n", a)
		}
		return "", Syntaxf("%s", msg[:len(msg)-1])
	}

	return args[0], nil
}

// SetupLogging directs logrus to stderr, at a level chosen by the number of -v options.
func SetupLogging(verbose int) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{
		DisableTimestamp: true,
		DisableColors:    true,
	})
	log.SetLevel(LogLevel(verbose))
}

// LogLevel maps a verbosity count to a log level.
func LogLevel(verbose int) log.Level {
	switch {
	case verbose <= 0:
		return log.WarnLevel
	case verbose == 1:
		return log.InfoLevel
	case verbose == 2:
		return log.DebugLevel
	}

	return log.TraceLevel
}

// Env returns a viper instance bound to the SG3_UTILS_* environment variables. Variables that are
// set but empty still count as set.
func Env() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SG3_UTILS")
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	return v
}
