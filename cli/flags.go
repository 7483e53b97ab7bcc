// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package cli

import (
	"strconv"

	"github.com/spf13/pflag"

	"github.com/dswarbrick/sgutils/utils"
)

// NumValue is a pflag.Value accepting the number syntax of utils.ParseNum, bounded by a maximum.
type NumValue struct {
	p   *uint64
	max uint64
}

func (n *NumValue) String() string {
	if n.p == nil {
		return "0"
	}

	return strconv.FormatUint(*n.p, 10)
}

func (n *NumValue) Set(s string) error {
	v, err := utils.ParseNumMax(s, n.max)
	if err != nil {
		return err
	}

	*n.p = v
	return nil
}

func (n *NumValue) Type() string {
	return "num"
}

// NumVarP defines a numeric flag with a default value and an upper bound.
func NumVarP(f *pflag.FlagSet, p *uint64, name, shorthand string, value, max uint64, usage string) {
	*p = value
	f.VarP(&NumValue{p: p, max: max}, name, shorthand, usage)
}
