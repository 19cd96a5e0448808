package lexer

import (
	"fmt"
	"strings"
)

// Moon source language has those elements:
// * KeyWord: if, then, else, while, read, write, return, var, let, integer, float, void, public, private,
//            func, struct, inherits, impl, self.
// * Symbol: ; , . ( ) { } [ ] | & ! * + - / < > = : == <> <= >= :: -> :=
// * Constant: integer (0, 12), float (1.5, 0.25e-3)
// * Identifier: a letter followed by letters, digits or underscores.
// * Comment: /* */ (nested), //.

type Kind int

const (
	Semi        Kind = iota // ;
	Comma                   // ,
	Dot                     // .
	OpenPar                 // (
	ClosePar                // )
	OpenCubr                // {
	CloseCubr               // }
	OpenSqbr                // [
	CloseSqbr               // ]
	Or                      // |
	And                     // &
	Not                     // !
	Mult                    // *
	Plus                    // +
	Minus                   // -
	Div                     // /
	Lt                      // <
	Gt                      // >
	Assign                  // = or :=
	Colon                   // :
	Eq                      // ==
	NotEq                   // <>
	Leq                     // <=
	Geq                     // >=
	ColonColon              // ::
	Arrow                   // ->
	Var                     // var
	Integer                 // integer
	Float                   // float
	If                      // if
	Then                    // then
	Else                    // else
	Void                    // void
	Public                  // public
	Private                 // private
	Func                    // func
	Struct                  // struct
	While                   // while
	Read                    // read
	Write                   // write
	Return                  // return
	Self                    // self
	Inherits                // inherits
	Let                     // let
	Impl                    // impl
	Id                      // abc
	IntLit                  // 12
	FloatLit                // 1.5e3
	InlineCmt               // // xxx
	BlockCmt                // /* xxx */
	InvalidChar             // @
	InvalidNum              // 007
	InvalidId               // _abc
	EOF                     // $
)

// kindNames are the terminal names the grammar tables use for each kind.
var kindNames = [...]string{
	Semi:        "semi",
	Comma:       "comma",
	Dot:         "dot",
	OpenPar:     "openpar",
	ClosePar:    "closepar",
	OpenCubr:    "opencubr",
	CloseCubr:   "closecubr",
	OpenSqbr:    "opensqbr",
	CloseSqbr:   "closesqbr",
	Or:          "or",
	And:         "and",
	Not:         "not",
	Mult:        "mult",
	Plus:        "plus",
	Minus:       "minus",
	Div:         "div",
	Lt:          "lt",
	Gt:          "gt",
	Assign:      "assign",
	Colon:       "colon",
	Eq:          "eq",
	NotEq:       "noteq",
	Leq:         "leq",
	Geq:         "geq",
	ColonColon:  "coloncolon",
	Arrow:       "arrow",
	Var:         "var",
	Integer:     "integer",
	Float:       "float",
	If:          "if",
	Then:        "then",
	Else:        "else",
	Void:        "void",
	Public:      "public",
	Private:     "private",
	Func:        "func",
	Struct:      "struct",
	While:       "while",
	Read:        "read",
	Write:       "write",
	Return:      "return",
	Self:        "self",
	Inherits:    "inherits",
	Let:         "let",
	Impl:        "impl",
	Id:          "id",
	IntLit:      "intlit",
	FloatLit:    "floatlit",
	InlineCmt:   "inlinecmt",
	BlockCmt:    "blockcmt",
	InvalidChar: "invalidchar",
	InvalidNum:  "invalidnum",
	InvalidId:   "invalidid",
	EOF:         "$",
}

// keyWordKindMap is the mapping from reserved words to the corresponding Kind.
var keyWordKindMap = map[string]Kind{
	"var":      Var,
	"integer":  Integer,
	"float":    Float,
	"if":       If,
	"then":     Then,
	"else":     Else,
	"void":     Void,
	"public":   Public,
	"private":  Private,
	"func":     Func,
	"struct":   Struct,
	"while":    While,
	"read":     Read,
	"write":    Write,
	"return":   Return,
	"self":     Self,
	"inherits": Inherits,
	"let":      Let,
	"impl":     Impl,
}

// simpleSymbolKindMap holds the one character symbols which never start a longer symbol.
var simpleSymbolKindMap = map[byte]Kind{
	';': Semi,
	',': Comma,
	'.': Dot,
	'(': OpenPar,
	')': ClosePar,
	'{': OpenCubr,
	'}': CloseCubr,
	'[': OpenSqbr,
	']': CloseSqbr,
	'|': Or,
	'&': And,
	'!': Not,
	'*': Mult,
	'+': Plus,
}

// String returns the terminal name of k.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Label is the AST node label of a leaf made from a token of kind k.
func (k Kind) Label() string {
	return strings.ToUpper(k.String())
}

func (k Kind) IsComment() bool {
	return k == InlineCmt || k == BlockCmt
}

func (k Kind) IsError() bool {
	return k == InvalidChar || k == InvalidNum || k == InvalidId
}

// KindOf returns the kind whose terminal name is name.
func KindOf(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}

// Terminals lists the terminal names of every kind the grammar can see, comments excluded.
func Terminals() []string {
	var ret []string
	for k, n := range kindNames {
		if Kind(k).IsComment() {
			continue
		}
		ret = append(ret, n)
	}
	return ret
}

type Token struct {
	Kind   Kind
	Lexeme string
	Line   int
}

func (t *Token) String() string {
	return fmt.Sprintf("[%s, %s, %d]", t.Kind, t.Lexeme, t.Line)
}

// ErrorMessage describes a lexical error token, or returns "" for any other token.
func (t *Token) ErrorMessage() string {
	switch t.Kind {
	case InvalidChar:
		return fmt.Sprintf("Lexical error: Invalid character: \"%s\": line %d.", t.Lexeme, t.Line)
	case InvalidNum:
		return fmt.Sprintf("Lexical error: Invalid number: \"%s\": line %d.", t.Lexeme, t.Line)
	case InvalidId:
		return fmt.Sprintf("Lexical error: Invalid identifier: \"%s\": line %d.", t.Lexeme, t.Line)
	}
	return ""
}
