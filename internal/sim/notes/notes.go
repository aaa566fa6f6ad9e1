// Package notes decodes monkey definitions from the puzzle's text notes and
// from the equivalent JSON and YAML documents.
package notes

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"monkeysim.dev/internal/sim/troop"
)

var ErrSyntax = errors.New("notes syntax error")

type line struct {
	no   int
	text string
}

// Parse reads notes of the form
//
//	Monkey 0:
//	  Starting items: 79, 98
//	  Operation: new = old * 19
//	  Test: divisible by 23
//	    If true: throw to monkey 2
//	    If false: throw to monkey 3
//
// with one blank line between monkeys.
func Parse(r io.Reader) ([]troop.MonkeyDef, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		defs  []troop.MonkeyDef
		block []line
		no    int
	)
	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		def, err := parseMonkey(len(defs), block)
		if err != nil {
			return err
		}
		defs = append(defs, def)
		block = block[:0]
		return nil
	}
	for sc.Scan() {
		no++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		block = append(block, line{no: no, text: text})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: no monkeys", ErrSyntax)
	}
	return defs, nil
}

func parseMonkey(idx int, block []line) (troop.MonkeyDef, error) {
	var def troop.MonkeyDef
	if len(block) != 6 {
		return def, fmt.Errorf("%w: line %d: monkey record has %d lines, want 6", ErrSyntax, block[0].no, len(block))
	}

	header, err := field(block[0], "Monkey ")
	if err != nil {
		return def, err
	}
	n, err := strconv.Atoi(strings.TrimSuffix(header, ":"))
	if err != nil || !strings.HasSuffix(header, ":") {
		return def, fmt.Errorf("%w: line %d: bad header %q", ErrSyntax, block[0].no, block[0].text)
	}
	if n != idx {
		return def, fmt.Errorf("%w: line %d: monkey %d listed at position %d", ErrSyntax, block[0].no, n, idx)
	}

	items, err := field(block[1], "Starting items:")
	if err != nil {
		return def, err
	}
	if items = strings.TrimSpace(items); items != "" {
		for _, s := range strings.Split(items, ",") {
			v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return def, fmt.Errorf("%w: line %d: bad item %q", ErrSyntax, block[1].no, s)
			}
			def.Items = append(def.Items, v)
		}
	}

	op, err := field(block[2], "Operation: new =")
	if err != nil {
		return def, err
	}
	if def.Operation, err = troop.ParseOperation(op); err != nil {
		return def, fmt.Errorf("line %d: %w", block[2].no, err)
	}

	if def.Test.Divisor, err = intField(block[3], "Test: divisible by"); err != nil {
		return def, err
	}
	ifTrue, err := intField(block[4], "If true: throw to monkey")
	if err != nil {
		return def, err
	}
	ifFalse, err := intField(block[5], "If false: throw to monkey")
	if err != nil {
		return def, err
	}
	def.Test.IfTrue, def.Test.IfFalse = int(ifTrue), int(ifFalse)
	return def, nil
}

func field(l line, prefix string) (string, error) {
	if !strings.HasPrefix(l.text, prefix) {
		return "", fmt.Errorf("%w: line %d: expected %q, got %q", ErrSyntax, l.no, prefix, l.text)
	}
	return strings.TrimPrefix(l.text, prefix), nil
}

func intField(l line, prefix string) (int64, error) {
	s, err := field(l, prefix)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: line %d: bad number in %q", ErrSyntax, l.no, l.text)
	}
	return v, nil
}

// Load decodes a file by extension: .json, .yaml/.yml, otherwise text notes.
func Load(path string) ([]troop.MonkeyDef, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return DecodeJSON(b)
	case ".yaml", ".yml":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return DecodeYAML(b)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}
