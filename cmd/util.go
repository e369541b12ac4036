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

package cmd

import (
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/exascience/elmix/config"
	"github.com/exascience/elmix/fasta"
	"github.com/exascience/elmix/internal"
	"github.com/exascience/elmix/utils"
)

// ProgramMessage is the first line printed when the elmix binary is
// called.
var ProgramMessage string

func init() {
	ProgramMessage = fmt.Sprint(
		"\n", utils.ProgramName, " version ", utils.ProgramVersion,
		" compiled with ", runtime.Version(),
		" - see ", utils.ProgramURL, " for more information.\n",
	)
}

// HelpMessage is printed to show the --help flag
const HelpMessage = "Print command details:\n" +
	"[--help]\n"

func getFilename(s, help string) string {
	switch s {
	case "-h", "--h", "-help", "--help":
		fmt.Fprint(os.Stderr, help)
		os.Exit(0)
	default:
		if strings.HasPrefix(s, "-") {
			log.Println("Filename(s) in command line missing.")
			fmt.Fprint(os.Stderr, help)
			os.Exit(1)
		}
	}
	return s
}

// getFilenames returns the leading command line arguments from
// position first that are not flags.
func getFilenames(first int, help string) []string {
	var filenames []string
	for _, arg := range os.Args[first:] {
		if strings.HasPrefix(arg, "-") {
			break
		}
		filenames = append(filenames, getFilename(arg, help))
	}
	return filenames
}

func parseFlags(flags flag.FlagSet, requiredArgs int, help string) {
	if len(os.Args) < requiredArgs {
		fmt.Fprintln(os.Stderr, "Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	flags.SetOutput(ioutil.Discard)
	if err := flags.Parse(os.Args[requiredArgs:]); err != nil {
		x := 0
		if err != flag.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			x = 1
		}
		fmt.Fprint(os.Stderr, help)
		os.Exit(x)
	}
	if flags.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Cannot parse remaining parameters:", flags.Args())
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
}

func logCheckFile(parameter, format string, v ...interface{}) {
	if parameter != "" {
		log.Printf(format+" for command line parameter %v.\n", append(v, parameter)...)
	} else {
		log.Printf(format+".\n", v...)
	}
}

func checkExist(parameter, filename string) bool {
	if len(filename) == 0 {
		logCheckFile(parameter, "Error: Missing filename")
		return false
	}
	if filename[0] == '-' {
		logCheckFile(parameter, "Error: Missing filename before %v", filename)
		return false
	}
	if _, err := os.Stat(filename); err == nil {
		return true
	} else if os.IsNotExist(err) {
		logCheckFile(parameter, "Error: File %v does not exist", filename)
		return false
	} else if os.IsPermission(err) {
		logCheckFile(parameter, "Error: No permission to read file %v", filename)
		return false
	} else {
		logCheckFile(parameter, "Error %v when trying to access file %v", err, filename)
		return false
	}
}

func checkCreate(parameter, filename string) bool {
	if len(filename) == 0 {
		logCheckFile(parameter, "Error: Missing filename")
		return false
	}
	if filename[0] == '-' {
		logCheckFile(parameter, "Error: Missing filename before %v", filename)
		return false
	}
	if _, err := os.Stat(filename); err == nil {
		// Assume that the file has been written by previous elmix runs, and can be overwritten.
		return true
	}
	err := os.MkdirAll(filepath.Dir(filename), 0700)
	if err == nil {
		err = ioutil.WriteFile(filename, nil, 0666)
	}
	if err != nil {
		if os.IsPermission(err) {
			logCheckFile(parameter, "Error: No permission to create file %v", filename)
		} else {
			logCheckFile(parameter, "Error %v when trying to create file %v", err, filename)
		}
		return false
	}
	_ = os.Remove(filename)
	return true
}

func createLogFilename() string {
	t := time.Now()
	zone, _ := t.Zone()
	return fmt.Sprintf("logs/elmix/elmix-%d-%02d-%02d-%02d-%02d-%02d-%09d-%v.log", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), zone)
}

func setLogOutput(path string) {
	logPath := createLogFilename()
	var fullPath string
	if path == "" {
		fullPath = filepath.Join(os.Getenv("HOME"), logPath)
	} else {
		fullPath = filepath.Join(path, logPath)
	}
	internal.MkdirAll(filepath.Dir(fullPath), 0700)
	f := internal.FileCreate(fullPath)
	fmt.Fprintln(f, ProgramMessage)

	orgStderr, err := unix.Dup(2)
	if err != nil {
		log.Panic(err)
	}
	ferr := os.NewFile(uintptr(orgStderr), "/dev/stderr")
	if err := unix.Dup2(int(f.Fd()), 2); err != nil {
		log.Panic(err)
	}

	multi := io.MultiWriter(f, ferr)

	log.SetOutput(multi)
	log.Println("Created log file at", fullPath)
	log.Println("Command line:", os.Args)
}

func timedRun(timed bool, msg string, phase int64, f func() error) error {
	if timed {
		log.Printf("Phase %v: %v\n", phase, msg)
		start := time.Now()
		defer func() {
			end := time.Now()
			log.Println("Elapsed time: ", end.Sub(start))
		}()
	}
	return f()
}

// configFlag registers the --config flag shared by all commands that
// need configuration options.
func configFlag(flags *flag.FlagSet, configFile *string) {
	flags.StringVar(configFile, "config", "", "read configuration options from a YAML file")
}

func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" && !checkExist("--config", configFile) {
		return nil, fmt.Errorf("configuration file %v not found", configFile)
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// openGenome opens the configured reference, either an .elfasta file
// or a FASTA file with its FAI index, and returns the lengths of the
// configured chromosomes.
func openGenome(cfg *config.Config) (source fasta.SequenceSource, lengths map[string]int64, closeGenome func(), err error) {
	if cfg.GenomeFasta == "" || !checkExist("genome_fasta", cfg.GenomeFasta) {
		return nil, nil, nil, fmt.Errorf("no reference genome configured")
	}
	lengths = make(map[string]int64, len(cfg.Chromosomes))
	if filepath.Ext(cfg.GenomeFasta) == ".elfasta" {
		mapped := fasta.OpenElfasta(cfg.GenomeFasta)
		for _, chrom := range cfg.Chromosomes {
			seq, err := mapped.Seq(chrom)
			if err != nil {
				mapped.Close()
				return nil, nil, nil, err
			}
			lengths[chrom] = int64(len(seq))
		}
		return mapped, lengths, mapped.Close, nil
	}
	fai := cfg.GenomeFai
	if fai == "" {
		fai = cfg.GenomeFasta + ".fai"
	}
	if !checkExist("genome_fai", fai) {
		return nil, nil, nil, fmt.Errorf("no index for reference genome %v", cfg.GenomeFasta)
	}
	indexed := fasta.OpenIndexedFasta(cfg.GenomeFasta, fai)
	chromLengths, err := fasta.ChromosomeLengths(indexed.Fai, cfg.Chromosomes)
	if err != nil {
		return nil, nil, nil, err
	}
	for i, chrom := range cfg.Chromosomes {
		lengths[chrom] = chromLengths[i]
	}
	return indexed, lengths, func() {}, nil
}

func parseChromosomes(s string) []string {
	var chromosomes []string
	for _, chrom := range strings.Split(s, ",") {
		if chrom = strings.TrimSpace(chrom); chrom != "" {
			chromosomes = append(chromosomes, chrom)
		}
	}
	return chromosomes
}
