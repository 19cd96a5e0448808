package lexer

import (
	"io"
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/xiaobogaga/moonc/util"
)

// Tokenizer turns Moon source text into tokens. Malformed input never stops it: bad characters,
// numbers and identifiers become error tokens which the parser later reports as unexpected terminals.
type Tokenizer struct {
	src         []byte
	currentPos  int
	currentLine int
	tokens      []*Token
}

// Tokenize reads all of rd and returns its tokens, comments included, terminated by an EOF token.
// The returned error is only set when rd fails.
func (tokenizer *Tokenizer) Tokenize(rd io.Reader) ([]*Token, error) {
	src, err := ioutil.ReadAll(rd)
	if err != nil {
		return nil, errors.Wrap(err, "tokenizer: read source")
	}
	tokenizer.Reset()
	tokenizer.src = src
	for {
		token := tokenizer.getNextToken()
		tokenizer.tokens = append(tokenizer.tokens, token)
		if token.Kind == EOF {
			return tokenizer.tokens, nil
		}
	}
}

func (tokenizer *Tokenizer) Reset() {
	tokenizer.src, tokenizer.currentPos, tokenizer.currentLine = nil, 0, 1
	tokenizer.tokens = nil
}

// getNextToken skips white space and scans one token starting at currentPos.
func (tokenizer *Tokenizer) getNextToken() *Token {
	tokenizer.trimSpace()
	if !tokenizer.hasRemainCharacters() {
		return tokenizer.makeToken(EOF, "$")
	}
	c := tokenizer.src[tokenizer.currentPos]
	if kind, ok := simpleSymbolKindMap[c]; ok {
		tokenizer.currentPos++
		return tokenizer.makeToken(kind, string(c))
	}
	switch {
	case c == '/':
		return tokenizer.tokenCommentOrDivide()
	case c == '-' || c == '=' || c == '<' || c == '>' || c == ':':
		return tokenizer.tokenCompositeSymbol()
	case util.IsDigit(c):
		return tokenizer.tokenNumber()
	case util.IsLetter(c) || util.IsUnderScore(c):
		return tokenizer.toKeywordOrIdentifier()
	default:
		tokenizer.currentPos++
		return tokenizer.makeToken(InvalidChar, string(c))
	}
}

func (tokenizer *Tokenizer) trimSpace() {
	for tokenizer.hasRemainCharacters() {
		c := tokenizer.src[tokenizer.currentPos]
		if !util.IsSpace(c) {
			return
		}
		if c == '\n' {
			tokenizer.currentLine++
		}
		tokenizer.currentPos++
	}
}

func (tokenizer *Tokenizer) hasRemainCharacters() bool {
	return tokenizer.currentPos < len(tokenizer.src)
}

func (tokenizer *Tokenizer) peek(offset int) byte {
	pos := tokenizer.currentPos + offset
	if pos >= len(tokenizer.src) {
		return 0
	}
	return tokenizer.src[pos]
}

func (tokenizer *Tokenizer) makeToken(kind Kind, lexeme string) *Token {
	return &Token{Kind: kind, Lexeme: lexeme, Line: tokenizer.currentLine}
}

// compositeSymbols are the symbols made of two characters, keyed by their first character.
var compositeSymbols = map[byte][]struct {
	second byte
	kind   Kind
}{
	'-': {{'>', Arrow}},
	'=': {{'=', Eq}},
	'<': {{'>', NotEq}, {'=', Leq}},
	'>': {{'=', Geq}},
	':': {{':', ColonColon}, {'=', Assign}},
}

var singleSymbols = map[byte]Kind{
	'-': Minus,
	'=': Assign,
	'<': Lt,
	'>': Gt,
	':': Colon,
}

func (tokenizer *Tokenizer) tokenCompositeSymbol() *Token {
	c := tokenizer.peek(0)
	for _, candidate := range compositeSymbols[c] {
		if tokenizer.peek(1) == candidate.second {
			tokenizer.currentPos += 2
			return tokenizer.makeToken(candidate.kind, string([]byte{c, candidate.second}))
		}
	}
	tokenizer.currentPos++
	return tokenizer.makeToken(singleSymbols[c], string(c))
}

func (tokenizer *Tokenizer) tokenCommentOrDivide() *Token {
	switch tokenizer.peek(1) {
	case '/':
		return tokenizer.tokenSingleLineComment()
	case '*':
		return tokenizer.tokenMultipleLineComment()
	}
	tokenizer.currentPos++
	return tokenizer.makeToken(Div, "/")
}

func (tokenizer *Tokenizer) tokenSingleLineComment() *Token {
	startPos := tokenizer.currentPos
	for tokenizer.hasRemainCharacters() && tokenizer.src[tokenizer.currentPos] != '\n' {
		tokenizer.currentPos++
	}
	return tokenizer.makeToken(InlineCmt, string(tokenizer.src[startPos:tokenizer.currentPos]))
}

// tokenMultipleLineComment scans a possibly nested block comment. An unterminated comment runs
// to the end of the source. The token carries the line the comment starts on.
func (tokenizer *Tokenizer) tokenMultipleLineComment() *Token {
	startPos, startLine := tokenizer.currentPos, tokenizer.currentLine
	tokenizer.currentPos += 2
	depth := 1
	for depth > 0 && tokenizer.hasRemainCharacters() {
		c := tokenizer.src[tokenizer.currentPos]
		switch {
		case c == '/' && tokenizer.peek(1) == '*':
			depth++
			tokenizer.currentPos += 2
		case c == '*' && tokenizer.peek(1) == '/':
			depth--
			tokenizer.currentPos += 2
		default:
			if c == '\n' {
				tokenizer.currentLine++
			}
			tokenizer.currentPos++
		}
	}
	return &Token{Kind: BlockCmt, Lexeme: string(tokenizer.src[startPos:tokenizer.currentPos]), Line: startLine}
}

// tokenNumber scans integer := nonzero digit* | 0, and
// float := integer fraction [e [+|-] integer] where fraction := . digit* nonzero | .0
// Letters glued to a number make the whole run an invalid number.
func (tokenizer *Tokenizer) tokenNumber() *Token {
	startPos := tokenizer.currentPos
	valid := tokenizer.scanInteger()
	isFloat := false
	if tokenizer.peek(0) == '.' && util.IsDigit(tokenizer.peek(1)) {
		isFloat = true
		tokenizer.currentPos++
		valid = tokenizer.scanFraction() && valid
		if tokenizer.peek(0) == 'e' {
			tokenizer.currentPos++
			if tokenizer.peek(0) == '+' || tokenizer.peek(0) == '-' {
				tokenizer.currentPos++
			}
			if !util.IsDigit(tokenizer.peek(0)) {
				valid = false
			} else {
				valid = tokenizer.scanInteger() && valid
			}
		}
	}
	for tokenizer.hasRemainCharacters() && util.IsAlphanum(tokenizer.src[tokenizer.currentPos]) {
		valid = false
		tokenizer.currentPos++
	}
	lexeme := string(tokenizer.src[startPos:tokenizer.currentPos])
	switch {
	case !valid:
		return tokenizer.makeToken(InvalidNum, lexeme)
	case isFloat:
		return tokenizer.makeToken(FloatLit, lexeme)
	default:
		return tokenizer.makeToken(IntLit, lexeme)
	}
}

func (tokenizer *Tokenizer) scanInteger() bool {
	startPos := tokenizer.currentPos
	for tokenizer.hasRemainCharacters() && util.IsDigit(tokenizer.src[tokenizer.currentPos]) {
		tokenizer.currentPos++
	}
	digits := tokenizer.src[startPos:tokenizer.currentPos]
	return len(digits) == 1 || (len(digits) > 1 && util.IsNonZeroDigit(digits[0]))
}

func (tokenizer *Tokenizer) scanFraction() bool {
	startPos := tokenizer.currentPos
	for tokenizer.hasRemainCharacters() && util.IsDigit(tokenizer.src[tokenizer.currentPos]) {
		tokenizer.currentPos++
	}
	digits := tokenizer.src[startPos:tokenizer.currentPos]
	if len(digits) == 1 {
		return true
	}
	return util.IsNonZeroDigit(digits[len(digits)-1])
}

func (tokenizer *Tokenizer) toKeywordOrIdentifier() *Token {
	startPos := tokenizer.currentPos
	for tokenizer.hasRemainCharacters() && util.IsAlphanum(tokenizer.src[tokenizer.currentPos]) {
		tokenizer.currentPos++
	}
	word := string(tokenizer.src[startPos:tokenizer.currentPos])
	if kind, isKeyWord := keyWordKindMap[word]; isKeyWord {
		return tokenizer.makeToken(kind, word)
	}
	if !util.IsIdentifier(word) {
		return tokenizer.makeToken(InvalidId, word)
	}
	return tokenizer.makeToken(Id, word)
}
