package moon

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xiaobogaga/moonc/util"
)

// Program is an assembled Moon program.
type Program struct {
	Code []Instruction
	Data []byte
	// Entry is the index of the first instruction to run.
	Entry int
	// Symbols maps code labels to instruction indexes and data labels to byte addresses.
	Symbols map[string]int
}

func (p *Program) String() string {
	bf := &bytes.Buffer{}
	for i, ins := range p.Code {
		bf.WriteString(fmt.Sprintf("%4d  %s\n", i, ins))
	}
	return bf.String()
}

// pending is an instruction whose operands are resolved once every label is known.
type pending struct {
	op       string
	operands []string
	line     int
}

type assembler struct {
	line    int
	code    []pending
	data    []byte
	entry   int
	symbols map[string]int
}

// Assemble reads Moon assembly in two passes: the first collects labels, lays out the data
// section and keeps instructions aside, the second resolves operands.
func Assemble(rd io.Reader) (*Program, error) {
	asm := &assembler{entry: -1, symbols: map[string]int{}}
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		asm.line++
		if err := asm.transformLine(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "moon: read source")
	}
	if asm.entry < 0 {
		asm.entry = 0
	}
	program := &Program{Data: asm.data, Entry: asm.entry, Symbols: asm.symbols}
	for _, p := range asm.code {
		ins, err := asm.resolve(p)
		if err != nil {
			return nil, err
		}
		program.Code = append(program.Code, ins)
	}
	return program, nil
}

// trimLine drops the comment and surrounding blanks.
func trimLine(line string) string {
	if index := strings.IndexByte(line, '%'); index >= 0 {
		line = line[:index]
	}
	return strings.TrimSpace(line)
}

func (asm *assembler) errorf(format string, args ...interface{}) error {
	return errors.Errorf("moon: line %d: %s", asm.line, fmt.Sprintf(format, args...))
}

func (asm *assembler) transformLine(line string) error {
	line = trimLine(line)
	if line == "" {
		return nil
	}
	fields := strings.Fields(line)
	label := ""
	if _, isOp := opcodes[fields[0]]; !isOp && !directives[fields[0]] {
		label = fields[0]
		fields = fields[1:]
		line = strings.TrimSpace(strings.TrimPrefix(line, label))
	}
	if len(fields) == 0 {
		return asm.defineLabel(label, len(asm.code))
	}
	op := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(line, op))
	var operands []string
	if rest != "" {
		for _, operand := range strings.Split(rest, ",") {
			operands = append(operands, strings.TrimSpace(operand))
		}
	}
	if _, isOp := opcodes[op]; isOp {
		if err := asm.defineLabel(label, len(asm.code)); err != nil {
			return err
		}
		asm.code = append(asm.code, pending{op: op, operands: operands, line: asm.line})
		return nil
	}
	return asm.transformDirective(label, op, operands)
}

func (asm *assembler) defineLabel(label string, addr int) error {
	if label == "" {
		return nil
	}
	if Reserved(label) {
		return asm.errorf("reserved word %s used as a label", label)
	}
	if !util.IsIdentifier(label) {
		return asm.errorf("bad label %s", label)
	}
	if _, ok := asm.symbols[label]; ok {
		return asm.errorf("label %s defined twice", label)
	}
	asm.symbols[label] = addr
	return nil
}

func (asm *assembler) transformDirective(label, op string, operands []string) error {
	if !directives[op] {
		return asm.errorf("unknown instruction %s", op)
	}
	switch op {
	case "entry":
		asm.entry = len(asm.code)
		return asm.defineLabel(label, len(asm.code))
	case "align":
		for len(asm.data)%4 != 0 {
			asm.data = append(asm.data, 0)
		}
		return asm.defineLabel(label, len(asm.data))
	}
	if err := asm.defineLabel(label, len(asm.data)); err != nil {
		return err
	}
	switch op {
	case "res":
		if len(operands) != 1 {
			return asm.errorf("res takes one size")
		}
		n, err := strconv.Atoi(operands[0])
		if err != nil || n < 0 {
			return asm.errorf("bad size %s", operands[0])
		}
		asm.data = append(asm.data, make([]byte, n)...)
	case "dw":
		for _, operand := range operands {
			n, err := strconv.ParseInt(operand, 10, 32)
			if err != nil {
				return asm.errorf("bad word %s", operand)
			}
			word := make([]byte, 4)
			binary.LittleEndian.PutUint32(word, uint32(int32(n)))
			asm.data = append(asm.data, word...)
		}
	case "db":
		for _, operand := range operands {
			if len(operand) >= 2 && operand[0] == '"' && operand[len(operand)-1] == '"' {
				asm.data = append(asm.data, operand[1:len(operand)-1]...)
				continue
			}
			n, err := strconv.Atoi(operand)
			if err != nil || n < -128 || n > 255 {
				return asm.errorf("bad byte %s", operand)
			}
			asm.data = append(asm.data, byte(n))
		}
	}
	return nil
}

func (asm *assembler) resolve(p pending) (Instruction, error) {
	asm.line = p.line
	format := opcodes[p.op]
	ins := Instruction{Op: p.op, Format: format, Line: p.line}
	want := map[Format]int{RegRegReg: 3, RegReg: 2, RegRegImm: 3, RegImm: 2, Load: 2, Store: 2, Imm: 1, Reg: 1}[format]
	if len(p.operands) != want {
		return ins, asm.errorf("%s takes %d operands, got %d", p.op, want, len(p.operands))
	}
	var err error
	switch format {
	case RegRegReg, RegReg, Reg:
		for i, operand := range p.operands {
			if ins.Regs[i], err = asm.register(operand); err != nil {
				return ins, err
			}
		}
	case RegRegImm:
		if ins.Regs[0], err = asm.register(p.operands[0]); err != nil {
			return ins, err
		}
		if ins.Regs[1], err = asm.register(p.operands[1]); err != nil {
			return ins, err
		}
		ins.K, err = asm.immediate(p.operands[2])
	case RegImm:
		if ins.Regs[0], err = asm.register(p.operands[0]); err != nil {
			return ins, err
		}
		ins.K, err = asm.immediate(p.operands[1])
	case Load:
		if ins.Regs[0], err = asm.register(p.operands[0]); err != nil {
			return ins, err
		}
		ins.K, ins.Regs[1], err = asm.indexed(p.operands[1])
	case Store:
		if ins.K, ins.Regs[1], err = asm.indexed(p.operands[0]); err != nil {
			return ins, err
		}
		ins.Regs[0], err = asm.register(p.operands[1])
	case Imm:
		ins.K, err = asm.immediate(p.operands[0])
	}
	return ins, err
}

func (asm *assembler) register(s string) (int, error) {
	r, ok := register(s)
	if !ok {
		return 0, asm.errorf("bad register %s", s)
	}
	return r, nil
}

// immediate is an integer or a label, and must fit in 16 bits.
func (asm *assembler) immediate(s string) (int32, error) {
	var v int
	if n, err := strconv.Atoi(s); err == nil {
		v = n
	} else if addr, ok := asm.symbols[s]; ok {
		v = addr
	} else if addr, ok := builtins[s]; ok {
		v = addr
	} else {
		return 0, asm.errorf("undefined symbol %s", s)
	}
	if v < MinImmediate || v > MaxImmediate {
		return 0, asm.errorf("immediate %s out of range", s)
	}
	return int32(v), nil
}

// indexed parses K(rj).
func (asm *assembler) indexed(s string) (int32, int, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return 0, 0, asm.errorf("bad memory operand %s", s)
	}
	k, err := asm.immediate(strings.TrimSpace(s[:open]))
	if err != nil {
		return 0, 0, err
	}
	r, err := asm.register(strings.TrimSpace(s[open+1 : len(s)-1]))
	return k, r, err
}
