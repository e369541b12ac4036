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

package fasta

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"sync"

	"github.com/exascience/elmix/internal"
	"github.com/exascience/elmix/utils"

	"golang.org/x/sys/unix"
)

// FaiReference represents an entry in an FAI file.
type FaiReference struct {
	Length    int64
	Offset    int64
	LineBases int64
	LineWidth int64
}

// ParseFai parses an FAI file.
func ParseFai(filename string) (fai map[string]FaiReference) {
	f := internal.FileOpen(filename)
	defer internal.Close(f)

	fai = make(map[string]FaiReference)

	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		b := bytes.Split(scanner.Bytes(), []byte("\t"))
		if len(b) != 5 {
			log.Panicf("badly formatted fai file %v - invalid number of entries", filename)
		}

		fai[string(b[0])] = FaiReference{
			Length:    internal.ParseInt(string(b[1]), 10, 64),
			Offset:    internal.ParseInt(string(b[2]), 10, 64),
			LineBases: internal.ParseInt(string(b[3]), 10, 64),
			LineWidth: internal.ParseInt(string(b[4]), 10, 64),
		}
	}

	if err := scanner.Err(); err != nil {
		log.Panic(err)
	}

	return fai
}

// ChromosomeLengths returns the length of each of the given
// chromosomes, in the given order. Chromosomes missing from the index
// are reported as an error.
func ChromosomeLengths(fai map[string]FaiReference, chromosomes []string) ([]int64, error) {
	lengths := make([]int64, len(chromosomes))
	for i, chrom := range chromosomes {
		ref, ok := fai[chrom]
		if !ok {
			return nil, fmt.Errorf("chromosome %v not found in fasta index", chrom)
		}
		lengths[i] = ref.Length
	}
	return lengths, nil
}

// SequenceSource gives access to the sequence of one contig at a time.
type SequenceSource interface {
	Seq(contig string) ([]byte, error)
}

// IndexedFasta reads single contigs from a FASTA file using its FAI
// index, so that only one chromosome needs to be held in memory.
type IndexedFasta struct {
	Filename string
	Fai      map[string]FaiReference
}

// OpenIndexedFasta parses the FAI index of a FASTA file.
// If faiFilename is empty, filename + ".fai" is used.
func OpenIndexedFasta(filename, faiFilename string) *IndexedFasta {
	if faiFilename == "" {
		faiFilename = filename + ".fai"
	}
	return &IndexedFasta{Filename: filename, Fai: ParseFai(faiFilename)}
}

// Seq reads the given contig, converted to upper case.
func (fasta *IndexedFasta) Seq(contig string) ([]byte, error) {
	return ReadSequence(fasta.Filename, fasta.Fai, contig)
}

// ReadSequence reads a single contig from an uncompressed FASTA file,
// seeking to the offset given in its FAI entry. The result is
// converted to upper case.
func ReadSequence(filename string, fai map[string]FaiReference, contig string) (seq []byte, err error) {
	ref, ok := fai[contig]
	if !ok {
		return nil, fmt.Errorf("contig %v not found in fasta index for %v", contig, filename)
	}
	if ref.LineBases <= 0 {
		return nil, fmt.Errorf("invalid line length for contig %v in fasta index for %v", contig, filename)
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := f.Close(); err == nil {
			err = nerr
		}
	}()
	if _, err = f.Seek(ref.Offset, io.SeekStart); err != nil {
		return nil, err
	}
	size := (ref.Length/ref.LineBases)*ref.LineWidth + ref.Length%ref.LineBases
	raw := make([]byte, size)
	n, err := io.ReadFull(f, raw)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	raw = raw[:n]
	seq = raw[:0]
	for _, c := range raw {
		switch {
		case c == '\n' || c == '\r':
		case c >= 'a' && c <= 'z':
			seq = append(seq, c-'a'+'A')
		default:
			seq = append(seq, c)
		}
	}
	if int64(len(seq)) != ref.Length {
		return nil, fmt.Errorf("contig %v in %v has %v bases, fasta index expects %v", contig, filename, len(seq), ref.Length)
	}
	return seq, nil
}

func contigFromHeader(b []byte) string {
	i := 1
	for ; i < len(b); i++ {
		if c := b[i]; c >= '!' && c <= '~' {
			break
		}
	}
	j := i + 1
	for ; j < len(b); j++ {
		if c := b[j]; c < '!' || c > '~' {
			break
		}
	}
	return string(b[i:j])
}

func toUpper(b []byte) {
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
}

// ParseFasta sequentially parses a (possibly compressed) FASTA file,
// calling f once per contig with its upper-case sequence. Only one
// contig is held in memory at a time.
func ParseFasta(filename string, f func(contig string, seq []byte) error) error {
	input, err := utils.OpenText(filename)
	if err != nil {
		return err
	}
	defer func() {
		_ = input.Close()
	}()

	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<26)

	var contig string
	var seq []byte
	started := false
	for scanner.Scan() {
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		if b[0] == '>' {
			if started {
				if err := f(contig, seq); err != nil {
					return err
				}
			}
			contig = contigFromHeader(b)
			seq = nil
			started = true
			continue
		}
		if !started {
			return fmt.Errorf("invalid fasta file %v - missing first header", filename)
		}
		toUpper(b)
		seq = append(seq, b...)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if !started {
		return fmt.Errorf("empty fasta file %v", filename)
	}
	return f(contig, seq)
}

// ElfastaMagic is the magic byte sequence that every .elfasta file starts with.
var ElfastaMagic = []byte{0x31, 0xFA, 0x57, 0xA1} // 31FA57A1 => ELFASTA1

type offsetTableEntry struct {
	contig string
	offset int
}

// ToElfasta stores the contents of a FASTA file into an mmappable
// .elfasta file. Contigs are stored in sorted order.
func ToElfasta(fasta map[string][]byte, filename string) {
	file := internal.FileCreate(filename)
	defer internal.Close(file)
	contigs := make([]string, 0, len(fasta))
	for contig := range fasta {
		contigs = append(contigs, contig)
	}
	sort.Strings(contigs)
	var header []byte
	header = append(header, ElfastaMagic...)
	var offsetTable []offsetTableEntry
	for _, contig := range contigs {
		header = append(header, contig...)
		header = append(header, '\t')
		offsetTable = append(offsetTable, offsetTableEntry{contig: contig, offset: len(header)})
		header = append(header, make([]byte, 2*binary.MaxVarintLen64)...)
	}
	header = append(header, '\n')
	offset := len(header)
	for _, entry := range offsetTable {
		seq := fasta[entry.contig]
		binary.PutVarint(header[entry.offset:entry.offset+binary.MaxVarintLen64], int64(offset))
		binary.PutVarint(header[entry.offset+binary.MaxVarintLen64:entry.offset+2*binary.MaxVarintLen64], int64(len(seq)))
		offset += len(seq)
	}
	if _, err := file.Write(header); err != nil {
		log.Panic(err)
	}
	for _, contig := range contigs {
		if _, err := file.Write(fasta[contig]); err != nil {
			log.Panic(err)
		}
	}
}

// MappedFasta represents the contents of an .elfasta file.
type MappedFasta struct {
	wait  sync.WaitGroup
	fasta map[string][]byte
	data  []byte
	file  *os.File
}

// OpenElfasta opens a .elfasta file.
func OpenElfasta(filename string) (result *MappedFasta) {
	result = new(MappedFasta)
	result.wait.Add(1)
	go func() {
		defer result.wait.Done()
		file := internal.FileOpen(filename)
		stat, err := file.Stat()
		if err != nil {
			_ = file.Close()
			log.Panic(err)
		}
		data, err := unix.Mmap(int(file.Fd()), 0, int(stat.Size()), unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			_ = file.Close()
			log.Panic(err)
		}
		for i, b := range ElfastaMagic {
			if data[i] != b {
				_ = unix.Munmap(data)
				_ = file.Close()
				log.Panicf("%v is not a .elfasta file - invalid magic byte sequence", filename)
			}
		}
		fasta := make(map[string][]byte)
		index := len(ElfastaMagic)
		for data[index] != '\n' {
			start := index
			for ; data[index] != '\t'; index++ {
			}
			contig := string(data[start:index])
			index++
			offset, n := binary.Varint(data[index : index+binary.MaxVarintLen64])
			if n <= 0 {
				_ = unix.Munmap(data)
				_ = file.Close()
				log.Panicf("bad number of bytes while parsing offset in elfasta file %v", filename)
			}
			size, n := binary.Varint(data[index+binary.MaxVarintLen64 : index+2*binary.MaxVarintLen64])
			if n <= 0 {
				_ = unix.Munmap(data)
				_ = file.Close()
				log.Panicf("bad number of bytes while parsing size in elfasta file %v", filename)
			}
			fasta[contig] = data[int(offset):int(offset+size)]
			index += 2 * binary.MaxVarintLen64
		}
		result.fasta = fasta
		result.data = data
		result.file = file
	}()
	return result
}

// Close closes the .elfasta file.
func (fasta *MappedFasta) Close() {
	fasta.wait.Wait()
	err := unix.Munmap(fasta.data)
	fasta.data = nil
	if nerr := fasta.file.Close(); err == nil {
		err = nerr
	}
	fasta.file = nil
	fasta.fasta = nil
	if err != nil {
		log.Panic(err)
	}
}

// Seq fetches a sequence for the given contig
// from the .elfasta file.
func (fasta *MappedFasta) Seq(contig string) ([]byte, error) {
	fasta.wait.Wait()
	seq, ok := fasta.fasta[contig]
	if !ok {
		return nil, fmt.Errorf("contig %v not found in elfasta file", contig)
	}
	return seq, nil
}
