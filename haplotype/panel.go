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

package haplotype

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/exascience/elmix/genotype"
	"github.com/exascience/elmix/internal"
	"github.com/exascience/elmix/utils"
)

// PanelSNP is a biallelic SNP of the reference panel legend.
type PanelSNP struct {
	Position int64
	A0, A1   string
}

func isBase(allele string) bool {
	switch allele {
	case "A", "C", "G", "T":
		return true
	default:
		return false
	}
}

// ReadLegend reads a space-separated reference panel legend file
// with header, typically gzip-compressed. Indels, that is entries
// whose alleles are not single bases, are skipped.
func ReadLegend(filename string) (snps []PanelSNP, err error) {
	input, err := utils.OpenText(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := input.Close(); err == nil {
			err = nerr
		}
	}()
	scanner := bufio.NewScanner(input)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("empty legend file %v", filename)
	}
	columns, err := internal.ParseHeader(scanner.Text(), " ", "position", "a0", "a1")
	if err != nil {
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	pos, a0, a1 := columns["position"], columns["a0"], columns["a1"]
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < len(columns) {
			return nil, fmt.Errorf("invalid legend line %q in %v", line, filename)
		}
		if !isBase(fields[a0]) || !isBase(fields[a1]) {
			continue
		}
		snps = append(snps, PanelSNP{
			Position: internal.ParseInt(fields[pos], 10, 64),
			A0:       fields[a0],
			A1:       fields[a1],
		})
	}
	return snps, scanner.Err()
}

// GenotypedSNP is a reference panel SNP with the genotype called for
// the sample.
type GenotypedSNP struct {
	PanelSNP
	Call genotype.Genotype
}

// MergePanel joins the called SNPs with the reference panel on
// position. Panel order is preserved, and positions missing from
// either side are dropped.
func MergePanel(panel []PanelSNP, snps []genotype.SNP) []GenotypedSNP {
	calls := make(map[int64]genotype.Genotype, len(snps))
	for _, snp := range snps {
		if snp.Call != genotype.Uncalled {
			calls[snp.Position] = snp.Call
		}
	}
	var result []GenotypedSNP
	for _, p := range panel {
		if call, ok := calls[p.Position]; ok {
			result = append(result, GenotypedSNP{PanelSNP: p, Call: call})
		}
	}
	return result
}

// Heterozygous counts the heterozygous calls.
func Heterozygous(snps []GenotypedSNP) (n int) {
	for _, snp := range snps {
		if snp.Call == genotype.AB {
			n++
		}
	}
	return n
}

// WriteGen writes genotypes in the space-separated .gen format of
// the phasing tool: chromosome, chromosome:position, position, a0, a1,
// followed by the AA, AB and BB indicators.
func WriteGen(w io.Writer, chromosome string, snps []GenotypedSNP) error {
	bw := bufio.NewWriter(w)
	var buf []byte
	for _, snp := range snps {
		buf = buf[:0]
		buf = append(buf, chromosome...)
		buf = append(buf, ' ')
		buf = append(buf, chromosome...)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, snp.Position, 10)
		buf = append(buf, ' ')
		buf = strconv.AppendInt(buf, snp.Position, 10)
		buf = append(buf, ' ')
		buf = append(buf, snp.A0...)
		buf = append(buf, ' ')
		buf = append(buf, snp.A1...)
		for g := genotype.AA; g <= genotype.BB; g++ {
			if snp.Call == g {
				buf = append(buf, " 1"...)
			} else {
				buf = append(buf, " 0"...)
			}
		}
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SingleSample is the .sample file that describes one unrelated
// sample to the phasing tool.
const SingleSample = "ID_1 ID_2 missing sex\n0 0 0 0\nUNR1 UNR1 0 2\n"

func writeGenFile(filename, chromosome string, snps []GenotypedSNP) (err error) {
	output, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := output.Close(); err == nil {
			err = nerr
		}
	}()
	return WriteGen(output, chromosome, snps)
}

// PhasedSNP is one heterozygous position of a phased haplotype
// sample. Allele is the allele of the first haplotype.
type PhasedSNP struct {
	Position int64
	Allele   uint8
}

// ReadHaps reads a space-separated .haps file with columns id, id2,
// position, ref, alt, allele1, allele2 and no header. Homozygous
// positions, where both haplotypes carry the same allele, are
// skipped.
func ReadHaps(filename string) (snps []PhasedSNP, err error) {
	input, err := utils.OpenText(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := input.Close(); err == nil {
			err = nerr
		}
	}()
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 7 {
			return nil, fmt.Errorf("invalid haps line %q in %v", line, filename)
		}
		allele1, allele2 := internal.ParseBit(fields[5]), internal.ParseBit(fields[6])
		if allele1 == allele2 {
			continue
		}
		snps = append(snps, PhasedSNP{
			Position: internal.ParseInt(fields[2], 10, 64),
			Allele:   allele1,
		})
	}
	return snps, scanner.Err()
}
