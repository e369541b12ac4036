// elMix: allele-specific copy-number preprocessing for tumour samples.
// Copyright (c) 2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elmix/blob/master/LICENSE.txt>.

package internal

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

// ParseInt is strconv.ParseInt with panics in place of errors
func ParseInt(s string, base, bitSize int) int64 {
	result, err := strconv.ParseInt(s, base, bitSize)
	if err != nil {
		log.Panic(err)
	}
	return result
}

// ParseFloat is strconv.ParseFloat with panics in place of errors
func ParseFloat(s string, bitSize int) float64 {
	result, err := strconv.ParseFloat(s, bitSize)
	if err != nil {
		log.Panic(err)
	}
	return result
}

// ParseBit parses a 0/1 indicator, panicking on anything else.
func ParseBit(s string) uint8 {
	switch s {
	case "0":
		return 0
	case "1":
		return 1
	default:
		log.Panicf("invalid indicator value %q, expected 0 or 1", s)
		return 0
	}
}

// Columns maps column names of a header line to their positions.
type Columns map[string]int

// ParseHeader splits a header line on sep and checks that all
// required columns are present.
func ParseHeader(line string, sep string, required ...string) (Columns, error) {
	columns := make(Columns)
	for i, name := range strings.Split(strings.TrimRight(line, "\r\n"), sep) {
		columns[name] = i
	}
	var missing []string
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing column(s) %v in header %q", strings.Join(missing, ", "), line)
	}
	return columns, nil
}

// Has reports whether the header contains the named column.
func (c Columns) Has(name string) bool {
	_, ok := c[name]
	return ok
}
