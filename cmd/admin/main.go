package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"monkeysim.dev/internal/persistence/archive"
	"monkeysim.dev/internal/sim/notes"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "archives":
			archivesCmd(os.Args[2:])
			return
		case "convert":
			convertCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "runs"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if e.IsDir() {
			fmt.Println(e.Name())
		}
	}
}

func archivesCmd(args []string) {
	fs := flag.NewFlagSet("archives", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	runID := fs.String("run", "", "run id")
	_ = fs.Parse(args)

	if strings.TrimSpace(*runID) == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}
	if err := listArchives(os.Stdout, filepath.Join(*dataDir, "runs", *runID)); err != nil {
		fmt.Fprintln(os.Stderr, "archives:", err)
		os.Exit(1)
	}
}

// listArchives prints the meta.json of every archived run result, oldest
// round first.
func listArchives(w io.Writer, runDir string) error {
	matches, err := filepath.Glob(filepath.Join(runDir, "archives", "round_*", "*.snap.zst"))
	if err != nil {
		return err
	}
	sort.Strings(matches)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, path := range matches {
		meta, err := archive.ReadMeta(path)
		if err != nil {
			return err
		}
		if err := enc.Encode(meta); err != nil {
			return err
		}
	}
	return nil
}

func convertCmd(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	in := fs.String("in", "", "input notes (.txt, .json, .yaml)")
	format := fs.String("format", "yaml", "output format: yaml or json")
	_ = fs.Parse(args)

	if strings.TrimSpace(*in) == "" {
		fmt.Fprintln(os.Stderr, "missing -in")
		os.Exit(2)
	}
	if err := convert(os.Stdout, *in, *format); err != nil {
		fmt.Fprintln(os.Stderr, "convert:", err)
		os.Exit(1)
	}
}

// convert re-encodes any supported notes file as a structured document.
func convert(w io.Writer, path, format string) error {
	defs, err := notes.Load(path)
	if err != nil {
		return err
	}
	doc := notes.FromDefs(defs)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
