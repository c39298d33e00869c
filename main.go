// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Command resourceform lists, extracts and rebuilds classic Mac OS resource forks.
//
//	resourceform list [flags] FILE
//	resourceform extract [flags] [-o OUT.json] FILE
//	resourceform pack [flags] [-o OUT] JSON
//
// Extraction writes an editable JSON document, with pictures, sounds and
// other bulky resources in a sibling "_resources" directory. Packing reverses
// it. Resources that cannot be converted are kept as hex, and any such error
// makes the exit status non-zero.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/elliotnunn/resourceform/internal/convert"
	"github.com/elliotnunn/resourceform/internal/jsonio"
	"github.com/elliotnunn/resourceform/internal/textenc"
)

var commands = map[string]func(args []string, t *tally) error{
	"list":    cmdList,
	"extract": cmdExtract,
	"pack":    cmdPack,
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: resourceform list|extract|pack [flags] FILE")
	fmt.Fprintln(os.Stderr, "run a command with -h for its flags")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := commands[os.Args[1]]
	if cmd == nil {
		usage()
		os.Exit(2)
	}

	var t tally
	err := cmd(os.Args[2:], &t)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	} else if err != nil {
		t.add(err)
	}
	os.Exit(t.finish())
}

// tally remembers every error so they can be repeated after a long run of
// output, and decides the exit status.
type tally struct {
	errs []error
}

func (t *tally) add(err error) {
	slog.Error("failed", "err", err)
	t.errs = append(t.errs, err)
}

func (t *tally) finish() int {
	if len(t.errs) == 0 {
		return 0
	}
	fmt.Fprintf(os.Stderr, "%d error(s):\n", len(t.errs))
	for _, err := range t.errs {
		fmt.Fprintf(os.Stderr, "  %v\n", err)
	}
	return 1
}

// listFlag collects a flag given more than once.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(s string) error {
	*l = append(*l, s)
	return nil
}

// common holds the flags shared by every command.
type common struct {
	verbose, quiet bool
	encoding       string
	include        listFlag
	exclude        listFlag
	templates      listFlag
	cacheDir       string
}

func (c *common) register(fl *flag.FlagSet) {
	fl.BoolVar(&c.verbose, "v", false, "log debugging detail")
	fl.BoolVar(&c.quiet, "q", false, "log only errors")
	fl.StringVar(&c.encoding, "encoding", "macroman", "text encoding of names and strings")
	fl.Var(&c.include, "i", "only types matching this glob (repeatable)")
	fl.Var(&c.exclude, "x", "skip types matching this glob (repeatable)")
	fl.Var(&c.templates, "t", "struct template for a type, as TYPE:format (repeatable)")
	fl.StringVar(&c.cacheDir, "cache", "", "keep converted pictures and sounds in this directory")
}

// setup installs the logger and builds the conversion options. The returned
// function releases the cache.
func (c *common) setup() (*jsonio.Options, func(), error) {
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	} else if c.quiet {
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	enc, err := textenc.Lookup(c.encoding)
	if err != nil {
		return nil, nil, err
	}
	filter := jsonio.Filter{Include: c.include, Exclude: c.exclude}
	if err := filter.Validate(); err != nil {
		return nil, nil, err
	}

	reg := convert.Standard(enc, slog.Default())
	for _, s := range c.templates {
		t, conv, err := convert.ParseStructFlag(s)
		if err != nil {
			return nil, nil, err
		}
		reg.Set(t, conv)
		slog.Debug("structTemplate", "type", textenc.SanitizeType(t), "format", conv.T.String(),
			"fields", len(conv.T.Fields()), "recordLen", conv.T.RecordLen(), "list", conv.T.IsList())
	}

	cache, err := convert.OpenCache(c.cacheDir, cacheEntries)
	if err != nil {
		return nil, nil, err
	}
	reg.UseCache(cache)
	done := func() {
		if err := cache.Close(); err != nil {
			slog.Warn("cacheCloseError", "err", err)
		}
	}

	return &jsonio.Options{Converters: reg, Enc: enc, Filter: filter}, done, nil
}

func oneArg(fl *flag.FlagSet) (string, error) {
	if fl.NArg() != 1 {
		fl.Usage()
		return "", fmt.Errorf("%s: want exactly one file, got %d", fl.Name(), fl.NArg())
	}
	return fl.Arg(0), nil
}
