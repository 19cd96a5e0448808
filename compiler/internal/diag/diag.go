package diag

import (
	"bytes"
	"fmt"
)

type Severity int

const (
	Error       Severity = iota // stops the compilation from succeeding
	Warning                     // informational only
	Unsupported                 // a construct the code generator cannot lower
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "ERROR"
	case Warning:
		return "WARNING"
	case Unsupported:
		return "UNSUPPORTED"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Diagnostic is one problem found in the source. It is data, never a Go error.
type Diagnostic struct {
	Severity Severity
	Message  string
	Line     int
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s - %s on line %d.", d.Severity, d.Message, d.Line)
}

// List collects diagnostics in the order they were found.
type List struct {
	items []Diagnostic
}

func (l *List) Add(severity Severity, line int, format string, args ...interface{}) {
	l.items = append(l.items, Diagnostic{Severity: severity, Message: fmt.Sprintf(format, args...), Line: line})
}

func (l *List) Errorf(line int, format string, args ...interface{}) {
	l.Add(Error, line, format, args...)
}

func (l *List) Warnf(line int, format string, args ...interface{}) {
	l.Add(Warning, line, format, args...)
}

func (l *List) Unsupportedf(line int, format string, args ...interface{}) {
	l.Add(Unsupported, line, format, args...)
}

// Append adds the diagnostics of others after the ones of l. Nil lists are skipped.
func (l *List) Append(others ...*List) {
	for _, other := range others {
		if other != nil {
			l.items = append(l.items, other.items...)
		}
	}
}

func (l *List) Items() []Diagnostic {
	return l.items
}

// Count returns how many diagnostics have severity s.
func (l *List) Count(s Severity) int {
	n := 0
	for _, d := range l.items {
		if d.Severity == s {
			n++
		}
	}
	return n
}

// Failed reports whether any diagnostic other than a warning was recorded.
func (l *List) Failed() bool {
	return l.Count(Error)+l.Count(Unsupported) > 0
}

func (l *List) String() string {
	bf := &bytes.Buffer{}
	for _, d := range l.items {
		bf.WriteString(d.String())
		bf.WriteString("\n")
	}
	return bf.String()
}
