package grammar

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const (
	Epsilon   = "&epsilon"
	EndMarker = "$"
	Start     = "START"
)

// IsAction reports whether symbol is a semantic action marker rather than a grammar symbol.
func IsAction(symbol string) bool {
	return strings.HasPrefix(symbol, "@")
}

// Production is LHS -> RHS. An empty production has the single RHS symbol Epsilon.
type Production struct {
	LHS string
	RHS []string
}

func (p Production) String() string {
	return p.LHS + " -> " + strings.Join(p.RHS, " ")
}

type symbolSet map[string]bool

func (s symbolSet) add(symbols ...string) bool {
	changed := false
	for _, symbol := range symbols {
		if !s[symbol] {
			s[symbol] = true
			changed = true
		}
	}
	return changed
}

func (s symbolSet) sorted() []string {
	ret := make([]string, 0, len(s))
	for symbol := range s {
		ret = append(ret, symbol)
	}
	sort.Strings(ret)
	return ret
}

// Table is a loaded or computed LL(1) parse table plus the FIRST and FOLLOW sets used for
// error recovery. It is read only once built.
type Table struct {
	start        string
	terminals    []string
	nonTerminals []string
	terminalSet  symbolSet
	nonTermSet   symbolSet
	transitions  map[string]map[string][]string
	first        map[string]symbolSet
	follow       map[string]symbolSet
}

func newTable(start string) *Table {
	return &Table{
		start:       start,
		terminalSet: symbolSet{},
		nonTermSet:  symbolSet{},
		transitions: map[string]map[string][]string{},
		first:       map[string]symbolSet{},
		follow:      map[string]symbolSet{},
	}
}

func (t *Table) addTerminal(symbol string) {
	if t.terminalSet.add(symbol) {
		t.terminals = append(t.terminals, symbol)
	}
}

func (t *Table) addNonTerminal(symbol string) {
	if t.nonTermSet.add(symbol) {
		t.nonTerminals = append(t.nonTerminals, symbol)
	}
}

func (t *Table) StartSymbol() string {
	return t.start
}

func (t *Table) Terminals() []string {
	return append([]string(nil), t.terminals...)
}

func (t *Table) NonTerminals() []string {
	return append([]string(nil), t.nonTerminals...)
}

func (t *Table) IsTerminal(symbol string) bool {
	return t.terminalSet[symbol]
}

func (t *Table) IsNonTerminal(symbol string) bool {
	return t.nonTermSet[symbol]
}

// Transition returns the right hand side to expand nonTerminal with when the lookahead is
// terminal. The RHS may hold Epsilon, which callers filter.
func (t *Table) Transition(nonTerminal, terminal string) ([]string, bool) {
	rhs, ok := t.transitions[nonTerminal][terminal]
	return rhs, ok
}

// First returns FIRST(symbol) sorted, Epsilon included when symbol derives the empty string.
func (t *Table) First(symbol string) []string {
	if t.IsTerminal(symbol) && t.first[symbol] == nil {
		return []string{symbol}
	}
	return t.first[symbol].sorted()
}

func (t *Table) Follow(symbol string) []string {
	return t.follow[symbol].sorted()
}

func (t *Table) InFirst(symbol, terminal string) bool {
	if set, ok := t.first[symbol]; ok {
		return set[terminal]
	}
	return t.IsTerminal(symbol) && symbol == terminal
}

func (t *Table) InFollow(symbol, terminal string) bool {
	return t.follow[symbol][terminal]
}

// Build computes FIRST, FOLLOW and the LL(1) table of productions, whose first LHS is start's
// expansion. Symbols that are neither a LHS nor an action nor Epsilon are terminals. A cell claimed
// by two different productions is an error: the grammar is not LL(1).
func Build(start string, productions []Production) (*Table, error) {
	if len(productions) == 0 {
		return nil, errors.New("grammar: no productions")
	}
	t := newTable(start)
	for _, p := range productions {
		t.addNonTerminal(p.LHS)
	}
	if !t.IsNonTerminal(start) {
		return nil, errors.Errorf("grammar: start symbol %s has no production", start)
	}
	for _, p := range productions {
		for _, symbol := range p.RHS {
			if symbol == Epsilon || IsAction(symbol) || t.IsNonTerminal(symbol) {
				continue
			}
			t.addTerminal(symbol)
		}
	}
	t.addTerminal(EndMarker)
	t.computeFirst(productions)
	t.computeFollow(productions)
	return t, t.fillTransitions(productions)
}

func (t *Table) computeFirst(productions []Production) {
	for _, terminal := range t.terminals {
		t.first[terminal] = symbolSet{terminal: true}
	}
	for _, nonTerminal := range t.nonTerminals {
		t.first[nonTerminal] = symbolSet{}
	}
	for changed := true; changed; {
		changed = false
		for _, p := range productions {
			set, nullable := t.firstOfSequence(p.RHS)
			if t.first[p.LHS].add(set.sorted()...) {
				changed = true
			}
			if nullable && t.first[p.LHS].add(Epsilon) {
				changed = true
			}
		}
	}
}

// firstOfSequence returns FIRST of a symbol sequence without Epsilon, and whether the whole
// sequence can derive the empty string. Actions are transparent.
func (t *Table) firstOfSequence(symbols []string) (symbolSet, bool) {
	ret := symbolSet{}
	for _, symbol := range symbols {
		if symbol == Epsilon || IsAction(symbol) {
			continue
		}
		set := t.first[symbol]
		for s := range set {
			if s != Epsilon {
				ret.add(s)
			}
		}
		if !set[Epsilon] {
			return ret, false
		}
	}
	return ret, true
}

// computeFollow computes FOLLOW for every grammar symbol, terminals included, so that recovery
// at a mismatched terminal knows which lookaheads may legally come after it.
func (t *Table) computeFollow(productions []Production) {
	for _, symbol := range append(t.NonTerminals(), t.terminals...) {
		t.follow[symbol] = symbolSet{}
	}
	t.follow[t.start].add(EndMarker)
	for changed := true; changed; {
		changed = false
		for _, p := range productions {
			for i, symbol := range p.RHS {
				if symbol == Epsilon || IsAction(symbol) {
					continue
				}
				set, nullable := t.firstOfSequence(p.RHS[i+1:])
				if t.follow[symbol].add(set.sorted()...) {
					changed = true
				}
				if nullable && t.follow[symbol].add(t.follow[p.LHS].sorted()...) {
					changed = true
				}
			}
		}
	}
}

func (t *Table) fillTransitions(productions []Production) error {
	for _, nonTerminal := range t.nonTerminals {
		t.transitions[nonTerminal] = map[string][]string{}
	}
	var conflicts []string
	set := func(p Production, terminal string) {
		row := t.transitions[p.LHS]
		if existing, ok := row[terminal]; ok && strings.Join(existing, " ") != strings.Join(p.RHS, " ") {
			conflicts = append(conflicts, fmt.Sprintf("[%s, %s]: %s | %s", p.LHS, terminal,
				strings.Join(existing, " "), strings.Join(p.RHS, " ")))
			return
		}
		row[terminal] = p.RHS
	}
	for _, p := range productions {
		first, nullable := t.firstOfSequence(p.RHS)
		for _, terminal := range first.sorted() {
			set(p, terminal)
		}
		if nullable {
			for _, terminal := range t.follow[p.LHS].sorted() {
				set(p, terminal)
			}
		}
	}
	if len(conflicts) > 0 {
		return errors.Errorf("grammar: not LL(1), conflicts at %s", strings.Join(conflicts, "; "))
	}
	return nil
}

// ParseRules reads productions written one rule per line as "LHS -> a b | c". A line starting
// with "|" continues the previous rule. Blank lines and lines starting with "#" are skipped.
func ParseRules(text string) ([]Production, error) {
	var ret []Production
	lhs := ""
	for number, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		body := line
		if strings.HasPrefix(line, "|") {
			if lhs == "" {
				return nil, errors.Errorf("grammar: line %d: alternative without a rule", number+1)
			}
			body = line[1:]
		} else {
			parts := strings.SplitN(line, "->", 2)
			if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
				return nil, errors.Errorf("grammar: line %d: missing '->' in %q", number+1, line)
			}
			lhs, body = strings.TrimSpace(parts[0]), parts[1]
		}
		for _, alternative := range strings.Split(body, "|") {
			rhs := strings.Fields(alternative)
			if len(rhs) == 0 {
				return nil, errors.Errorf("grammar: line %d: empty alternative for %s, use %s", number+1, lhs, Epsilon)
			}
			ret = append(ret, Production{LHS: lhs, RHS: rhs})
		}
	}
	return ret, nil
}
