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

package utils

import (
	"bufio"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// IsGzip determines if the the given byte scanner produces
// a gzip file. It uses ReadByte and UnreadByte to check
// only the initial byte from the input.
func IsGzip(scanner io.ByteScanner) (bool, error) {
	b, err := scanner.ReadByte()
	if err == io.EOF {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if err := scanner.UnreadByte(); err != nil {
		return false, err
	}
	return b == 0x1f, nil
}

// HandleGzip checks if the given reader produces a gzip file by
// looking at the initial byte. It then either returns a
// decompressing reader, or returns the given reader unchanged.
// BGZF files are gzip files with multiple members, and are
// handled the same way.
func HandleGzip(buf *bufio.Reader) (io.Reader, error) {
	ok, err := IsGzip(buf)
	if err != nil || !ok {
		return buf, err
	}
	gz, err := gzip.NewReader(buf)
	if err != nil {
		return nil, err
	}
	gz.Multistream(true)
	return gz, nil
}

// InputFile is a possibly compressed text file opened for reading.
type InputFile struct {
	file *os.File
	*bufio.Reader
}

// OpenText opens a text file, transparently decompressing gzip and
// BGZF input.
func OpenText(name string) (*InputFile, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	r, err := HandleGzip(bufio.NewReader(file))
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if br, ok := r.(*bufio.Reader); ok {
		return &InputFile{file, br}, nil
	}
	return &InputFile{file, bufio.NewReader(r)}, nil
}

// Close closes the underlying file.
func (input *InputFile) Close() error {
	return input.file.Close()
}
