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
	"io"

	"github.com/exascience/pargo/pipeline"
)

// DefaultChunkSize is the number of lines per chunk when streaming
// tables.
const DefaultChunkSize = 10000

// ScanChunks streams the lines of r in chunks of at most chunkSize
// lines. Chunks are parsed in parallel, and the parsed chunks are
// passed to consume one at a time in input order, so consume can fold
// them into ordinary local state. Parsed chunks for which parse
// returns nil are skipped.
func ScanChunks(
	r io.Reader,
	chunkSize int,
	parse func(lines []string) (interface{}, error),
	consume func(chunk interface{}) error,
) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	var p pipeline.Pipeline
	p.Source(pipeline.NewScanner(r))
	p.SetVariableBatchSize(chunkSize, chunkSize)
	p.Add(
		pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
			result, err := parse(data.([]string))
			if err != nil {
				p.SetErr(err)
				return nil
			}
			return result
		})),
		pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
			if data == nil {
				return nil
			}
			if err := consume(data); err != nil {
				p.SetErr(err)
			}
			return nil
		})),
	)
	p.Run()
	return p.Err()
}
