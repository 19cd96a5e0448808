package grammar

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// The parse table file has a header row of terminals after one blank cell, then one row per
// non-terminal whose cells hold a space separated RHS or nothing. The first non-terminal row is the
// start symbol. The FIRST/FOLLOW file has a "symbol,first,follow" header and one row per symbol.

// WriteCSV stores t in the two tabular formats LoadCSV reads.
func (t *Table) WriteCSV(table io.Writer, firstFollow io.Writer) error {
	tw := csv.NewWriter(table)
	if err := tw.Write(append([]string{""}, t.terminals...)); err != nil {
		return errors.Wrap(err, "grammar: write table header")
	}
	for _, nonTerminal := range t.nonTerminals {
		row := []string{nonTerminal}
		for _, terminal := range t.terminals {
			rhs, _ := t.Transition(nonTerminal, terminal)
			row = append(row, strings.Join(rhs, " "))
		}
		if err := tw.Write(row); err != nil {
			return errors.Wrapf(err, "grammar: write table row %s", nonTerminal)
		}
	}
	tw.Flush()
	if err := tw.Error(); err != nil {
		return errors.Wrap(err, "grammar: flush table")
	}
	fw := csv.NewWriter(firstFollow)
	if err := fw.Write([]string{"symbol", "first", "follow"}); err != nil {
		return errors.Wrap(err, "grammar: write first/follow header")
	}
	for _, symbol := range append(t.NonTerminals(), t.terminals...) {
		row := []string{symbol, strings.Join(t.First(symbol), " "), strings.Join(t.Follow(symbol), " ")}
		if err := fw.Write(row); err != nil {
			return errors.Wrapf(err, "grammar: write first/follow row %s", symbol)
		}
	}
	fw.Flush()
	return errors.Wrap(fw.Error(), "grammar: flush first/follow")
}

// LoadCSV reads a parse table and its FIRST/FOLLOW sets. Any malformed row is an error since a
// broken table means a broken build, not bad source input.
func LoadCSV(table io.Reader, firstFollow io.Reader) (*Table, error) {
	rows, err := readAll(table)
	if err != nil {
		return nil, errors.Wrap(err, "grammar: read table")
	}
	if len(rows) < 2 {
		return nil, errors.New("grammar: table needs a header and at least one non-terminal row")
	}
	header := rows[0]
	t := newTable(strings.TrimSpace(rows[1][0]))
	for _, terminal := range header[1:] {
		terminal = strings.TrimSpace(terminal)
		if terminal == "" {
			return nil, errors.New("grammar: blank terminal in table header")
		}
		t.addTerminal(terminal)
	}
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, errors.Errorf("grammar: table row %d has %d cells, header has %d", i+2, len(row), len(header))
		}
		t.addNonTerminal(strings.TrimSpace(row[0]))
	}
	for _, row := range rows[1:] {
		nonTerminal := strings.TrimSpace(row[0])
		t.transitions[nonTerminal] = map[string][]string{}
		for j, cell := range row[1:] {
			rhs := strings.Fields(cell)
			if len(rhs) == 0 {
				continue
			}
			t.transitions[nonTerminal][t.terminals[j]] = rhs
		}
	}
	rows, err = readAll(firstFollow)
	if err != nil {
		return nil, errors.Wrap(err, "grammar: read first/follow")
	}
	for i, row := range rows {
		if i == 0 && strings.TrimSpace(row[0]) == "symbol" {
			continue
		}
		if len(row) != 3 {
			return nil, errors.Errorf("grammar: first/follow row %d has %d cells, want 3", i+1, len(row))
		}
		symbol := strings.TrimSpace(row[0])
		t.first[symbol] = symbolSet{}
		t.first[symbol].add(strings.Fields(row[1])...)
		t.follow[symbol] = symbolSet{}
		t.follow[symbol].add(strings.Fields(row[2])...)
	}
	for _, nonTerminal := range t.nonTerminals {
		if _, ok := t.first[nonTerminal]; !ok {
			return nil, errors.Errorf("grammar: no first/follow sets for %s", nonTerminal)
		}
	}
	return t, nil
}

func readAll(rd io.Reader) ([][]string, error) {
	r := csv.NewReader(rd)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}
