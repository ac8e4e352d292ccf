package kernel

import (
	"strings"
)

// aliasSymbols is the alphabet the compact-save alias generator counts
// through, shortest string first: "0".."9", "a".."z", "A".."Z", then
// two-character strings starting over at "00".
const aliasSymbols = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// aliasGenerator produces ever-longer unique strings over aliasSymbols, one
// per call to next, in shortest-first counting order; the save path assigns
// these to class-name and enum-label references.
type aliasGenerator struct {
	count int64
}

func newAliasGenerator() *aliasGenerator {
	return &aliasGenerator{count: -1}
}

func (g *aliasGenerator) reset() { g.count = -1 }

// next returns the next alias in sequence: "0", "1", ..., "z"... (base-N
// counting in aliasSymbols, like a multi-digit odometer with N symbols).
func (g *aliasGenerator) next() string {
	g.count++
	n := g.count
	base := int64(len(aliasSymbols))

	digits := []byte{aliasSymbols[n%base]}
	n /= base
	for n > 0 {
		n--
		digits = append([]byte{aliasSymbols[n%base]}, digits...)
		n /= base
	}
	return string(digits)
}

// aliasTable tracks the first-occurrence alias assigned to each class name
// (or enum label) during one save pass: the full name is written once, the
// short form reused for every later occurrence.
type aliasTable struct {
	gen     *aliasGenerator
	aliases map[string]string
	reverse map[string]string
}

func newAliasTable() *aliasTable {
	return &aliasTable{gen: newAliasGenerator(), aliases: make(map[string]string), reverse: make(map[string]string)}
}

// reset clears a table for reuse across one file's save or load pass; alias
// assignment is scoped per file.
func (t *aliasTable) reset() {
	t.gen.reset()
	t.aliases = make(map[string]string)
	t.reverse = make(map[string]string)
}

// aliasFor returns (alias, firstOccurrence) for name: firstOccurrence is
// true the first time name is seen, signaling the writer to emit the
// "@name" sentinel form instead of the bare alias.
func (t *aliasTable) aliasFor(name string) (alias string, firstOccurrence bool) {
	if a, ok := t.aliases[name]; ok {
		return a, false
	}
	a := t.gen.next()
	t.aliases[name] = a
	t.reverse[a] = name
	return a, true
}

// encode renders name the way the save path writes a class-name reference:
// "@name" on first occurrence, the short alias thereafter.
func (t *aliasTable) encode(name string) string {
	alias, first := t.aliasFor(name)
	if first {
		return "@" + name
	}
	return alias
}

// decode reverses encode: given what Reader saw in a class-name-bearing
// attribute, returns the real class name, registering a first-occurrence
// "@name" token the same way aliasFor would on the write side so later
// occurrences in the same file resolve correctly. A token that is neither a
// "@name" sentinel nor a previously-assigned alias is assumed to be a plain,
// unaliased class name — the alias scheme is optional per occurrence
// , so a file (or a single
// reference within one) that never aliases a class name round-trips as-is.
func (t *aliasTable) decode(token string) (string, error) {
	if name, ok := strings.CutPrefix(token, "@"); ok {
		t.aliasFor(name)
		return name, nil
	}
	if name, ok := t.reverse[token]; ok {
		return name, nil
	}
	return token, nil
}
