// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package sensedb describes SCSI sense keys and additional sense codes using a YAML database.
package sensedb

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v2"
)

//go:embed sensedb.yaml
var defaultYAML []byte

type SenseKey struct {
	Key  uint8  `yaml:"key"`
	Name string `yaml:"name"`
}

// AdditionalSense describes one ASC/ASCQ pair. When ASCQMax is set the entry covers every ASCQ from
// ASCQ to ASCQMax and Text holds a single format verb for the qualifier.
type AdditionalSense struct {
	ASC     uint8  `yaml:"asc"`
	ASCQ    uint8  `yaml:"ascq"`
	ASCQMax uint8  `yaml:"ascq_max,omitempty"`
	Text    string `yaml:"text"`
}

type SenseDb struct {
	SenseKeys       []SenseKey        `yaml:"sense_keys"`
	AdditionalSense []AdditionalSense `yaml:"additional_sense"`

	keys   map[uint8]string
	exact  map[uint16]string
	ranges []AdditionalSense
}

var (
	defaultOnce sync.Once
	defaultDb   *SenseDb
)

// Default returns the embedded database. It panics if the embedded YAML is invalid.
func Default() *SenseDb {
	defaultOnce.Do(func() {
		db, err := Parse(bytes.NewReader(defaultYAML))
		if err != nil {
			panic(fmt.Sprintf("embedded sense database: %v", err))
		}
		defaultDb = db
	})

	return defaultDb
}

// Load opens the database at path, or returns the embedded database when path is empty.
func Load(path string) (*SenseDb, error) {
	if path == "" {
		return Default(), nil
	}

	return Open(path)
}

// Open opens a YAML-formatted sense database, unmarshalls it, and returns a SenseDb.
func Open(path string) (*SenseDb, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	return Parse(f)
}

// Parse decodes a YAML sense database.
func Parse(r io.Reader) (*SenseDb, error) {
	var db SenseDb

	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&db); err != nil {
		return nil, err
	}

	db.keys = make(map[uint8]string, len(db.SenseKeys))
	for _, k := range db.SenseKeys {
		db.keys[k.Key] = k.Name
	}

	db.exact = make(map[uint16]string, len(db.AdditionalSense))
	for _, a := range db.AdditionalSense {
		if a.ASCQMax > a.ASCQ {
			db.ranges = append(db.ranges, a)
			continue
		}
		db.exact[uint16(a.ASC)<<8|uint16(a.ASCQ)] = a.Text
	}

	return &db, nil
}

// SenseKeyName returns the name of a sense key.
func (db *SenseDb) SenseKeyName(key uint8) string {
	if s, ok := db.keys[key&0x0f]; ok {
		return s
	}

	return fmt.Sprintf("Sense key=0x%x", key&0x0f)
}

// Lookup describes an additional sense code and qualifier. Unknown codes are rendered numerically,
// noting vendor specific ranges.
func (db *SenseDb) Lookup(asc, ascq uint8) string {
	if s, ok := db.exact[uint16(asc)<<8|uint16(ascq)]; ok {
		return s
	}

	for _, r := range db.ranges {
		if r.ASC == asc && ascq >= r.ASCQ && ascq <= r.ASCQMax {
			return fmt.Sprintf(r.Text, ascq)
		}
	}

	switch {
	case asc >= 0x80:
		return fmt.Sprintf("vendor specific ASC=%02x, ASCQ=%02x (hex)", asc, ascq)
	case ascq >= 0x80:
		return fmt.Sprintf("ASC=%02x, vendor specific qualification ASCQ=%02x (hex)", asc, ascq)
	}

	return fmt.Sprintf("ASC=%02x, ASCQ=%02x (hex)", asc, ascq)
}

// Len returns the number of additional sense entries.
func (db *SenseDb) Len() int {
	return len(db.AdditionalSense)
}
