// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Argument parsing for learnmate CLI commands.
//
// One parser handles every command so flag handling stays consistent:
//   --flag value, --flag=value, -f value, and bare boolean flags.

package cli

import (
	"strconv"
	"strings"
)

// ArgParser separates flags from positional arguments.
type ArgParser struct {
	flags      map[string]string
	boolFlags  map[string]bool
	positional []string
}

// NewArgParser parses raw arguments.
func NewArgParser(raw []string) *ArgParser {
	p := &ArgParser{
		flags:     make(map[string]string),
		boolFlags: make(map[string]bool),
	}

	i := 0
	for i < len(raw) {
		arg := raw[i]
		if !strings.HasPrefix(arg, "-") {
			p.positional = append(p.positional, arg)
			i++
			continue
		}

		if strings.Contains(arg, "=") {
			parts := strings.SplitN(arg, "=", 2)
			name := strings.TrimLeft(parts[0], "-")
			switch parts[1] {
			case "true", "false":
				p.boolFlags[name] = parts[1] == "true"
			default:
				p.flags[name] = parts[1]
			}
			i++
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if isValueFlag(name) && i+1 < len(raw) {
			p.flags[name] = raw[i+1]
			i += 2
		} else {
			p.boolFlags[name] = true
			i++
		}
	}
	return p
}

// isValueFlag lists the flags that always take a value. Needed so a task
// description after a boolean flag is not swallowed as its value.
func isValueFlag(name string) bool {
	switch name {
	case "file", "f", "output", "o", "port", "p":
		return true
	}
	return false
}

// Flag returns a string flag's value, or "".
func (p *ArgParser) Flag(names ...string) string {
	for _, n := range names {
		if v, ok := p.flags[n]; ok {
			return v
		}
	}
	return ""
}

// BoolFlag reports whether a boolean flag was set.
func (p *ArgParser) BoolFlag(names ...string) bool {
	for _, n := range names {
		if p.boolFlags[n] {
			return true
		}
	}
	return false
}

// FlagInt returns a flag value as an int, or def when absent or invalid.
func (p *ArgParser) FlagInt(name string, def int) int {
	v := p.Flag(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Positional returns the positional arguments.
func (p *ArgParser) Positional() []string {
	return p.positional
}
