// Package config loads the sprinklers file that maps configured sprinkler
// ids to the driver that backs each one.
package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/itskum47/sprinklerd/internal/sprinkler"
)

// SprinklerDef is one parsed entry: an id plus the driver type and
// type-specific arguments, e.g. "court1 = gpio 17 false".
type SprinklerDef struct {
	ID       sprinkler.ID
	Type     string // "dummy" or "gpio"
	Address  int    // gpio only
	Inverted bool   // gpio only
}

// ParseSprinklers reads the `[sprinklers]` section of a config file: one
// `name = (dummy | gpio ADDRESS INVERTED)` entry per line. Blank lines and
// lines starting with '#' or ';' are ignored; a `[section]` header other
// than `[sprinklers]` ends parsing of that section's entries.
func ParseSprinklers(r io.Reader) ([]SprinklerDef, error) {
	scanner := bufio.NewScanner(r)
	var defs []SprinklerDef
	inSection := false
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inSection = strings.EqualFold(strings.TrimSpace(line[1:len(line)-1]), "sprinklers")
			continue
		}
		if !inSection {
			continue
		}

		name, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("config line %d: expected \"name = type args\", got %q", lineNo, line)
		}
		def, err := parseEntry(strings.TrimSpace(name), strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNo, err)
		}
		defs = append(defs, def)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return defs, nil
}

func parseEntry(name, value string) (SprinklerDef, error) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return SprinklerDef{}, fmt.Errorf("sprinkler %q: missing driver type", name)
	}

	switch fields[0] {
	case "dummy":
		return SprinklerDef{ID: name, Type: "dummy"}, nil
	case "gpio":
		if len(fields) != 3 {
			return SprinklerDef{}, fmt.Errorf("sprinkler %q: expected \"gpio ADDRESS INVERTED\", got %q", name, value)
		}
		address, err := strconv.Atoi(fields[1])
		if err != nil {
			return SprinklerDef{}, fmt.Errorf("sprinkler %q: invalid gpio address %q: %w", name, fields[1], err)
		}
		inverted, err := strconv.ParseBool(fields[2])
		if err != nil {
			return SprinklerDef{}, fmt.Errorf("sprinkler %q: invalid inverted flag %q: %w", name, fields[2], err)
		}
		return SprinklerDef{ID: name, Type: "gpio", Address: address, Inverted: inverted}, nil
	default:
		return SprinklerDef{}, fmt.Errorf("sprinkler %q: unknown driver type %q", name, fields[0])
	}
}
