package util

// Character classes shared by the Moon source lexer, the Moon assembler and config checks.

func IsDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func IsNonZeroDigit(b byte) bool {
	return b != '0' && IsDigit(b)
}

func IsUnderScore(b byte) bool {
	return b == '_'
}

func IsLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// IsAlphanum reports whether b may continue an identifier: letter, digit or underscore.
func IsAlphanum(b byte) bool {
	return IsLetter(b) || IsUnderScore(b) || IsDigit(b)
}

func IsSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n' || b == '\f' || b == '\v'
}

// IsIdentifier reports whether s is a letter followed by alphanumerics.
func IsIdentifier(s string) bool {
	if len(s) == 0 || !IsLetter(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !IsAlphanum(s[i]) {
			return false
		}
	}
	return true
}
