// Package command turns resolved build and publish descriptions into
// external command invocations.
//
// Builders here are pure: the same inputs always produce the same
// executable, argument order and environment. Argument order is part of the
// contract with the wrapped tools and with anyone diffing logged command
// lines, so it must never be reordered.
package command

import (
	"sort"
	"strings"
)

// External is one fully described invocation of an external tool. It is a
// value type constructed fresh per run and never mutated afterwards.
type External struct {
	Path string   // executable path
	Args []string // ordered arguments, order is semantically significant
	Dir  string   // working directory, empty means inherit
	Env  map[string]string // environment overrides merged over the parent env

	// Secrets lists values that must never appear in logged output.
	// Redacted masks every occurrence. Secrets go through Env whenever the
	// tool supports it; steamcmd does not, so its password rides in Args
	// and relies on this masking.
	Secrets []string
}

// Redacted renders the command for logging with all secret values masked.
// Arguments containing spaces are quoted for readability.
func (c External) Redacted() string {
	var b strings.Builder
	b.WriteString(c.Path)
	for _, arg := range c.Args {
		b.WriteByte(' ')
		b.WriteString(quoteIfNeeded(c.mask(arg)))
	}
	if len(c.Env) > 0 {
		keys := make([]string, 0, len(c.Env))
		for k := range c.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (env:")
		for _, k := range keys {
			b.WriteByte(' ')
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(c.mask(c.Env[k]))
		}
		b.WriteByte(')')
	}
	return b.String()
}

func (c External) mask(s string) string {
	for _, secret := range c.Secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, "***")
	}
	return s
}

func quoteIfNeeded(arg string) string {
	if strings.ContainsAny(arg, " \t") {
		return `"` + arg + `"`
	}
	return arg
}
