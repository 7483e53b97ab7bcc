// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// T10 asc-num.txt to YAML sense database converter.
//
package main

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v2"

	"github.com/dswarbrick/sgutils/sensedb"
)

const (
	defaultAscNumURL = "https://www.t10.org/lists/asc-num.txt"

	// Column at which the description starts, after the ASC/ASCQ and device type columns
	descColumn = 26
)

var (
	reCode  = regexp.MustCompile(`^([0-9A-Fa-f]{2})h/([0-9A-Fa-f]{2}|NN)h\s`)
	reRange = regexp.MustCompile(`\s*\(([0-9A-Fa-f]{2})h-([0-9A-Fa-f]{2})h\)\s*$`)
)

func parseHexByte(s string) uint8 {
	v, _ := strconv.ParseUint(s, 16, 8)
	return uint8(v)
}

// parseAscNum extracts the ASC/ASCQ table from asc-num.txt. Qualifier ranges ("NNh") become entries
// with ASCQMax set and "NN" replaced by a format verb.
func parseAscNum(src io.Reader) (string, []sensedb.AdditionalSense, error) {
	header := "# This file was generated from:\n"
	entries := make([]sensedb.AdditionalSense, 0)

	s := bufio.NewScanner(src)
	for s.Scan() {
		line := strings.TrimRight(s.Text(), " \t\r")

		m := reCode.FindStringSubmatch(line)
		if m == nil {
			// Copyright / revision lines preceding the table
			if len(entries) == 0 && strings.Contains(strings.ToLower(line), "copyright") {
				header += "# " + strings.TrimSpace(line) + "\n"
			}
			continue
		}

		if len(line) <= descColumn {
			continue
		}

		e := sensedb.AdditionalSense{
			ASC:  parseHexByte(m[1]),
			Text: strings.TrimSpace(line[descColumn:]),
		}

		if m[2] == "NN" {
			e.ASCQ, e.ASCQMax = 0x00, 0xff
			if r := reRange.FindStringSubmatch(e.Text); r != nil {
				e.ASCQ, e.ASCQMax = parseHexByte(r[1]), parseHexByte(r[2])
				e.Text = reRange.ReplaceAllString(e.Text, "")
			}
			e.Text = strings.Replace(e.Text, "NN", "%02Xh", 1)
		} else {
			e.ASCQ = parseHexByte(m[2])
		}

		entries = append(entries, e)
	}

	return header, entries, s.Err()
}

func main() {
	var (
		ascNumURL               string
		inFilename, outFilename string
		reader                  io.Reader
	)

	flag.StringVar(&ascNumURL, "url", defaultAscNumURL, "Optional asc-num.txt URL")
	flag.StringVar(&inFilename, "in", "", "Optional path to local asc-num.txt")
	flag.StringVar(&outFilename, "out", "sensedb.yaml", "Output .yaml filename")
	flag.Parse()

	if inFilename != "" {
		f, err := os.Open(inFilename)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot read asc-num.txt: %v\n", err)
			os.Exit(1)
		}

		defer f.Close()
		fmt.Printf("Reading from local file %s\n", f.Name())
		reader = f
	} else {
		resp, err := http.Get(ascNumURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot fetch asc-num.txt: %v\n", err)
			os.Exit(1)
		}

		defer resp.Body.Close()
		fmt.Printf("Reading from fetched %s\n", ascNumURL)
		reader = resp.Body
	}

	header, entries, err := parseAscNum(reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot parse asc-num.txt: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Parsed asc-num.txt - %d entries\n", len(entries))

	destFile, err := os.Create(outFilename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot create output: %v\n", err)
		os.Exit(1)
	}

	defer destFile.Close()
	destFile.WriteString(header)

	enc := yaml.NewEncoder(destFile)

	db := sensedb.SenseDb{SenseKeys: sensedb.Default().SenseKeys, AdditionalSense: entries}
	if err := enc.Encode(&db); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding yaml: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully wrote output to %s\n", outFilename)
}
