package moon

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

const (
	DefaultMemorySize = 1 << 16
	DefaultMaxSteps   = 10000000
)

// Machine runs a Program.
type Machine struct {
	program  *Program
	Regs     [RegisterCount]int32
	Mem      []byte
	pc       int
	steps    int
	MaxSteps int
	in       *bufio.Reader
	out      io.Writer
}

// NewMachine loads the data section at address 0 of a memory of memorySize bytes.
func NewMachine(program *Program, memorySize int, in io.Reader, out io.Writer) (*Machine, error) {
	if memorySize < len(program.Data) {
		return nil, errors.Errorf("moon: data section needs %d bytes, memory has %d", len(program.Data), memorySize)
	}
	m := &Machine{
		program:  program,
		Mem:      make([]byte, memorySize),
		pc:       program.Entry,
		MaxSteps: DefaultMaxSteps,
		in:       bufio.NewReader(in),
		out:      out,
	}
	copy(m.Mem, program.Data)
	return m, nil
}

// Steps is the number of instructions executed so far.
func (m *Machine) Steps() int {
	return m.steps
}

// Run executes instructions until hlt.
func (m *Machine) Run() error {
	for {
		if m.pc < 0 || m.pc >= len(m.program.Code) {
			return errors.Errorf("moon: pc %d outside the program", m.pc)
		}
		if m.steps >= m.MaxSteps {
			return errors.Errorf("moon: step limit %d reached", m.MaxSteps)
		}
		m.steps++
		ins := m.program.Code[m.pc]
		halted, err := m.step(ins)
		if err != nil {
			return errors.Wrapf(err, "moon: line %d: %s", ins.Line, ins)
		}
		m.Regs[0] = 0
		if halted {
			return nil
		}
	}
}

func boolean(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (m *Machine) step(ins Instruction) (bool, error) {
	ri, rj, rk := ins.Regs[0], ins.Regs[1], ins.Regs[2]
	a, b, k := m.Regs[rj], m.Regs[rk], ins.K
	next := m.pc + 1
	switch ins.Op {
	case "add":
		m.Regs[ri] = a + b
	case "sub":
		m.Regs[ri] = a - b
	case "mul":
		m.Regs[ri] = a * b
	case "div", "mod":
		if b == 0 {
			return false, errors.New("division by zero")
		}
		if ins.Op == "div" {
			m.Regs[ri] = a / b
		} else {
			m.Regs[ri] = a % b
		}
	case "and":
		m.Regs[ri] = a & b
	case "or":
		m.Regs[ri] = a | b
	case "ceq":
		m.Regs[ri] = boolean(a == b)
	case "cne":
		m.Regs[ri] = boolean(a != b)
	case "clt":
		m.Regs[ri] = boolean(a < b)
	case "cle":
		m.Regs[ri] = boolean(a <= b)
	case "cgt":
		m.Regs[ri] = boolean(a > b)
	case "cge":
		m.Regs[ri] = boolean(a >= b)
	case "not":
		m.Regs[ri] = ^a
	case "addi":
		m.Regs[ri] = a + k
	case "subi":
		m.Regs[ri] = a - k
	case "muli":
		m.Regs[ri] = a * k
	case "divi", "modi":
		if k == 0 {
			return false, errors.New("division by zero")
		}
		if ins.Op == "divi" {
			m.Regs[ri] = a / k
		} else {
			m.Regs[ri] = a % k
		}
	case "andi":
		m.Regs[ri] = a & (k & 0xffff)
	case "ori":
		m.Regs[ri] = a | (k & 0xffff)
	case "ceqi":
		m.Regs[ri] = boolean(a == k)
	case "cnei":
		m.Regs[ri] = boolean(a != k)
	case "clti":
		m.Regs[ri] = boolean(a < k)
	case "clei":
		m.Regs[ri] = boolean(a <= k)
	case "cgti":
		m.Regs[ri] = boolean(a > k)
	case "cgei":
		m.Regs[ri] = boolean(a >= k)
	case "sl":
		m.Regs[ri] <<= uint(k)
	case "sr":
		m.Regs[ri] >>= uint(k)
	case "lw", "lb":
		addr := int(a + k)
		if ins.Op == "lb" {
			if err := m.check(addr, 1); err != nil {
				return false, err
			}
			m.Regs[ri] = int32(m.Mem[addr])
			break
		}
		if err := m.check(addr, 4); err != nil {
			return false, err
		}
		m.Regs[ri] = int32(binary.LittleEndian.Uint32(m.Mem[addr:]))
	case "sw", "sb":
		addr := int(a + k)
		if ins.Op == "sb" {
			if err := m.check(addr, 1); err != nil {
				return false, err
			}
			m.Mem[addr] = byte(m.Regs[ri])
			break
		}
		if err := m.check(addr, 4); err != nil {
			return false, err
		}
		binary.LittleEndian.PutUint32(m.Mem[addr:], uint32(m.Regs[ri]))
	case "bz":
		if m.Regs[ri] == 0 {
			next = int(k)
		}
	case "bnz":
		if m.Regs[ri] != 0 {
			next = int(k)
		}
	case "j":
		next = int(k)
	case "jr":
		next = int(m.Regs[ri])
	case "jl":
		m.Regs[ri] = int32(next)
		if k < 0 {
			if err := m.builtin(int(k)); err != nil {
				return false, err
			}
		} else {
			next = int(k)
		}
	case "jlr":
		m.Regs[ri] = int32(next)
		next = int(a)
	case "nop":
	case "hlt":
		return true, nil
	default:
		return false, errors.Errorf("unknown instruction %s", ins.Op)
	}
	m.pc = next
	return false, nil
}

func (m *Machine) check(addr, size int) error {
	if addr < 0 || addr+size > len(m.Mem) {
		return errors.Errorf("address %d out of memory", addr)
	}
	if size == 4 && addr%4 != 0 {
		return errors.Errorf("unaligned word address %d", addr)
	}
	return nil
}

func (m *Machine) builtin(addr int) error {
	switch addr {
	case builtins[PutInt]:
		_, err := fmt.Fprintf(m.out, "%d", m.Regs[1])
		return err
	case builtins[GetInt]:
		var n int32
		if _, err := fmt.Fscan(m.in, &n); err != nil {
			return errors.Wrap(err, "getint")
		}
		m.Regs[1] = n
		return nil
	case builtins[PutStr]:
		start := int(m.Regs[1])
		end := start
		for end >= 0 && end < len(m.Mem) && m.Mem[end] != 0 {
			end++
		}
		if start < 0 || end >= len(m.Mem) {
			return errors.Errorf("putstr: unterminated string at %d", start)
		}
		_, err := m.out.Write(m.Mem[start:end])
		return err
	}
	return errors.Errorf("no builtin at %d", addr)
}
