package moon

import (
	"fmt"
	"strings"
)

// A tiny Moon machine: 16 32-bit registers, r0 always reads zero, a byte addressed data memory
// and a separate instruction memory addressed by instruction index. Those instruction formats are
// supported:
// * op   ri, rj, rk   three registers         (add, ceq, ...)
// * op   ri, rj       two registers           (not, jlr)
// * op   ri, rj, K    register and immediate  (addi, ceqi, ...)
// * op   ri, K        one register, immediate (sl, sr, bz, bnz, jl)
// * lw   ri, K(rj)    load                    (lw, lb)
// * sw   K(rj), ri    store                   (sw, sb)
// * op   K            jump                    (j)
// * op   ri           register jump           (jr)
// * op                no operand              (nop, hlt)

type Format int

const (
	RegRegReg Format = iota
	RegReg
	RegRegImm
	RegImm
	Load
	Store
	Imm
	Reg
	NoOperand
)

var opcodes = map[string]Format{
	"add": RegRegReg, "sub": RegRegReg, "mul": RegRegReg, "div": RegRegReg, "mod": RegRegReg,
	"and": RegRegReg, "or": RegRegReg,
	"ceq": RegRegReg, "cne": RegRegReg, "clt": RegRegReg, "cle": RegRegReg, "cgt": RegRegReg, "cge": RegRegReg,
	"not": RegReg, "jlr": RegReg,
	"addi": RegRegImm, "subi": RegRegImm, "muli": RegRegImm, "divi": RegRegImm, "modi": RegRegImm,
	"andi": RegRegImm, "ori": RegRegImm,
	"ceqi": RegRegImm, "cnei": RegRegImm, "clti": RegRegImm, "clei": RegRegImm, "cgti": RegRegImm, "cgei": RegRegImm,
	"sl": RegImm, "sr": RegImm, "bz": RegImm, "bnz": RegImm, "jl": RegImm,
	"lw": Load, "lb": Load,
	"sw": Store, "sb": Store,
	"j":   Imm,
	"jr":  Reg,
	"nop": NoOperand, "hlt": NoOperand,
}

var directives = map[string]bool{
	"entry": true,
	"align": true,
	"res":   true,
	"dw":    true,
	"db":    true,
}

// Builtin routines are reached with jl like any label. They take and return their value in r1.
const (
	PutInt = "putint"
	GetInt = "getint"
	PutStr = "putstr"
)

var builtins = map[string]int{
	PutInt: -1,
	GetInt: -2,
	PutStr: -3,
}

const (
	RegisterCount = 16
	// Immediates are 16 bits wide and may be read signed or unsigned.
	MinImmediate = -1 << 15
	MaxImmediate = 1<<16 - 1
)

// Reserved reports whether name cannot be used as a label: a mnemonic, a directive, a builtin or a
// register.
func Reserved(name string) bool {
	if _, ok := opcodes[name]; ok {
		return true
	}
	if _, ok := builtins[name]; ok {
		return true
	}
	if directives[name] {
		return true
	}
	_, ok := register(name)
	return ok
}

func register(s string) (int, bool) {
	if len(s) < 2 || len(s) > 3 || s[0] != 'r' {
		return 0, false
	}
	n := 0
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	if n >= RegisterCount || (len(s) == 3 && s[1] == '0') {
		return 0, false
	}
	return n, true
}

type Instruction struct {
	Op     string
	Format Format
	Regs   [3]int
	K      int32
	Line   int
}

func (ins Instruction) String() string {
	r := func(i int) string { return fmt.Sprintf("r%d", ins.Regs[i]) }
	var operands []string
	switch ins.Format {
	case RegRegReg:
		operands = []string{r(0), r(1), r(2)}
	case RegReg:
		operands = []string{r(0), r(1)}
	case RegRegImm:
		operands = []string{r(0), r(1), fmt.Sprint(ins.K)}
	case RegImm:
		operands = []string{r(0), fmt.Sprint(ins.K)}
	case Load:
		operands = []string{r(0), fmt.Sprintf("%d(%s)", ins.K, r(1))}
	case Store:
		operands = []string{fmt.Sprintf("%d(%s)", ins.K, r(1)), r(0)}
	case Imm:
		operands = []string{fmt.Sprint(ins.K)}
	case Reg:
		operands = []string{r(0)}
	}
	if len(operands) == 0 {
		return ins.Op
	}
	return ins.Op + " " + strings.Join(operands, ", ")
}
