// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/elliotnunn/resourceform/internal/appledouble"
	"github.com/elliotnunn/resourceform/internal/jsonio"
	"github.com/elliotnunn/resourceform/internal/resourcefork"
	"github.com/elliotnunn/resourceform/internal/textenc"
)

func cmdList(args []string, t *tally) error {
	var c common
	fl := flag.NewFlagSet("list", flag.ContinueOnError)
	c.register(fl)
	fromXattr := fl.Bool("xattr", false, "read the fork from the file's extended attribute")
	if err := fl.Parse(args); err != nil {
		return err
	}
	name, err := oneArg(fl)
	if err != nil {
		return err
	}
	opts, done, err := c.setup()
	if err != nil {
		return err
	}
	defer done()

	in, err := load(name, *fromXattr)
	if err != nil {
		return err
	}
	if in.meta != nil {
		fmt.Printf("# %s: %s\n", in.from, in.meta)
	}
	if c.verbose {
		if dump, err := appledouble.Dump(in.raw); err == nil {
			fmt.Println(dump)
		}
	}
	return listFork(os.Stdout, in.fork, opts)
}

// listFork prints one line per resource by walking the fork as a file tree.
func listFork(w io.Writer, fork *resourcefork.Fork, opts *jsonio.Options) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "TYPE\tID\tSIZE\tFLAGS\tNAME\n")
	err := fs.WalkDir(fork.FS(), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p == "." {
				return nil
			}
			t, _ := textenc.ParseType(p)
			if !opts.Filter.Allows(t) {
				return fs.SkipDir
			}
			return nil
		}
		i, err := d.Info()
		if err != nil {
			return err
		}
		r, ok := i.Sys().(*resourcefork.Resource)
		if !ok {
			return fmt.Errorf("%s: not a resource", p)
		}
		fmt.Fprintf(tw, "'%s'\t%d\t%d\t%s\t%s\n",
			textenc.MacRoman.Decode(r.Type[:]), r.ID, i.Size(), flagString(r.Flags), opts.Enc.Decode(r.Name))
		return nil
	})
	if err != nil {
		return err
	}
	return tw.Flush()
}

func flagString(f uint8) string {
	const letters = "zcpPLusr" // from bit 0: compressed changed preload protected locked purgeable sysheap
	var b strings.Builder
	for i := range 8 {
		if f&(1<<i) != 0 {
			b.WriteByte(letters[i])
		}
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}

func cmdExtract(args []string, t *tally) error {
	var c common
	fl := flag.NewFlagSet("extract", flag.ContinueOnError)
	c.register(fl)
	fromXattr := fl.Bool("xattr", false, "read the fork from the file's extended attribute")
	out := fl.String("o", "", "output JSON file (default FILE.json)")
	if err := fl.Parse(args); err != nil {
		return err
	}
	name, err := oneArg(fl)
	if err != nil {
		return err
	}
	opts, done, err := c.setup()
	if err != nil {
		return err
	}
	defer done()

	if *out == "" {
		*out = name + ".json"
	}
	in, err := load(name, *fromXattr)
	if err != nil {
		return err
	}
	slog.Info("extracting", "from", in.from, "resources", in.fork.Len(), "to", *out)

	dir := resourcesDir(*out)
	opts.WriteFile = func(name string, data []byte) error {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o777); err != nil {
			return err
		}
		slog.Debug("writeFile", "path", p, "size", len(data))
		return os.WriteFile(p, data, 0o666)
	}

	doc, errs := jsonio.Encode(in.fork, opts)
	for _, err := range errs {
		t.add(err)
	}
	text, err := jsonio.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(*out, text, 0o666)
}

// resourcesDir is where the separate files of a JSON document live.
func resourcesDir(jsonPath string) string {
	return strings.TrimSuffix(jsonPath, ".json") + "_resources"
}

func cmdPack(args []string, t *tally) error {
	var c common
	fl := flag.NewFlagSet("pack", flag.ContinueOnError)
	c.register(fl)
	out := fl.String("o", "", "output file (default JSON without its .json suffix, plus .rsrc)")
	asAppleDouble := fl.Bool("appledouble", false, "wrap the fork in an AppleDouble file")
	fileType := fl.String("type", "", "Finder file type for -appledouble")
	creator := fl.String("creator", "", "Finder creator code for -appledouble")
	toXattr := fl.Bool("xattr", false, "store the fork in the extended attribute of an existing file")
	if err := fl.Parse(args); err != nil {
		return err
	}
	name, err := oneArg(fl)
	if err != nil {
		return err
	}
	opts, done, err := c.setup()
	if err != nil {
		return err
	}
	defer done()

	if *out == "" {
		*out = strings.TrimSuffix(name, ".json") + ".rsrc"
	}
	if *toXattr && *asAppleDouble {
		return fmt.Errorf("-xattr and -appledouble are exclusive")
	}

	text, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	opts.Files = os.DirFS(resourcesDir(name))
	fork, err := jsonio.Decode(bytes.NewReader(text), opts)
	if err != nil {
		return err
	}
	data, err := fork.Bytes()
	if err != nil {
		return err
	}

	if *asAppleDouble {
		var meta appledouble.AppleDouble
		if meta.Type, err = finderCode(*fileType); err != nil {
			return err
		}
		if meta.Creator, err = finderCode(*creator); err != nil {
			return err
		}
		data = meta.WithResourceFork(data)
	}
	slog.Info("packing", "from", name, "resources", fork.Len(), "to", *out)

	if *toXattr {
		return writeXattr(*out, data)
	}
	return os.WriteFile(*out, data, 0o666)
}

// finderCode parses a type or creator, where empty means four zero bytes.
func finderCode(s string) ([4]byte, error) {
	if s == "" {
		return [4]byte{}, nil
	}
	return textenc.ParseType(s)
}
