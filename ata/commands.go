// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// ATA command definitions.

package ata

import "fmt"

const (
	// ATA commands
	ATA_SET_FEATURES    = 0xef
	ATA_IDENTIFY_DEVICE = 0xec

	// SET FEATURES subcommands (feature register values)
	SETFEATURES_EN_8BIT       = 0x01
	SETFEATURES_WC_ON         = 0x02
	SETFEATURES_XFER          = 0x03
	SETFEATURES_EN_APM        = 0x05
	SETFEATURES_EN_PUIS       = 0x06
	SETFEATURES_SPINUP        = 0x07
	SETFEATURES_EN_SATA       = 0x10
	SETFEATURES_DIS_RLA       = 0x55
	SETFEATURES_DIS_8BIT      = 0x81
	SETFEATURES_WC_OFF        = 0x82
	SETFEATURES_DIS_APM       = 0x85
	SETFEATURES_DIS_PUIS      = 0x86
	SETFEATURES_DIS_SATA      = 0x90
	SETFEATURES_EN_RLA        = 0xaa
	SETFEATURES_EN_AAM        = 0x42
	SETFEATURES_DIS_AAM       = 0xc2
	SETFEATURES_EN_SENSE_DATA = 0xc3
)

var setFeaturesNames = map[uint8]string{
	SETFEATURES_EN_8BIT:       "enable 8-bit PIO data transfer",
	SETFEATURES_WC_ON:         "enable volatile write cache",
	SETFEATURES_XFER:          "set transfer mode",
	SETFEATURES_EN_APM:        "enable advanced power management",
	SETFEATURES_EN_PUIS:       "enable power-up in standby",
	SETFEATURES_SPINUP:        "power-up in standby device spin-up",
	SETFEATURES_EN_SATA:       "enable SATA feature",
	SETFEATURES_EN_AAM:        "enable automatic acoustic management",
	SETFEATURES_DIS_RLA:       "disable read look-ahead",
	SETFEATURES_DIS_8BIT:      "disable 8-bit PIO data transfer",
	SETFEATURES_WC_OFF:        "disable volatile write cache",
	SETFEATURES_DIS_APM:       "disable advanced power management",
	SETFEATURES_DIS_PUIS:      "disable power-up in standby",
	SETFEATURES_DIS_SATA:      "disable SATA feature",
	SETFEATURES_EN_RLA:        "enable read look-ahead",
	SETFEATURES_DIS_AAM:       "disable automatic acoustic management",
	SETFEATURES_EN_SENSE_DATA: "enable/disable sense data reporting",
}

// SetFeaturesName describes a SET FEATURES subcommand.
func SetFeaturesName(feature uint8) string {
	if s, ok := setFeaturesNames[feature]; ok {
		return s
	}

	return fmt.Sprintf("feature 0x%02x", feature)
}
