// Package logbook collects human readable lines describing what a mapper did.
// A logbook is a side channel: nothing written to it changes a mapping result.
package logbook

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Gobusters/ectologger"
)

type LogBook interface {
	// AddLine appends a line. An optional indent is added to the current one.
	AddLine(text string, indent ...int)
	AddIndent(delta int)
}

// Memory keeps lines in memory, e.g. to return them from the execute endpoint.
type Memory struct {
	title  string
	lines  []string
	indent int
	mu     sync.Mutex
}

func NewMemory(title string) *Memory {
	return &Memory{title: title, lines: []string{}}
}

func (m *Memory) AddLine(text string, indent ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	level := m.indent
	for _, i := range indent {
		level += i
	}
	if level < 0 {
		level = 0
	}
	m.lines = append(m.lines, strings.Repeat("  ", level)+"- "+text)
}

func (m *Memory) AddIndent(delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indent = max(0, m.indent+delta)
}

func (m *Memory) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.lines...)
}

func (m *Memory) String() string {
	lines := m.Lines()
	if m.title != "" {
		lines = append([]string{m.title}, lines...)
	}
	return strings.Join(lines, "\n")
}

// Logger forwards lines to the service logger at debug level.
type Logger struct {
	ctx    context.Context
	logger ectologger.Logger
	indent int
}

func NewLogger(ctx context.Context, logger ectologger.Logger) *Logger {
	return &Logger{ctx: ctx, logger: logger}
}

func (l *Logger) AddLine(text string, indent ...int) {
	level := l.indent
	for _, i := range indent {
		level += i
	}
	l.logger.WithContext(l.ctx).WithFields(map[string]any{"indent": level}).Debug(text)
}

func (l *Logger) AddIndent(delta int) {
	l.indent = max(0, l.indent+delta)
}

// Safe wraps a logbook so that neither a nil logbook nor a panicking one can affect
// the caller.
type Safe struct {
	inner LogBook
}

func NewSafe(inner LogBook) *Safe {
	if s, ok := inner.(*Safe); ok {
		return s
	}
	return &Safe{inner: inner}
}

func (s *Safe) AddLine(text string, indent ...int) {
	if s == nil || s.inner == nil {
		return
	}
	defer func() { _ = recover() }()
	s.inner.AddLine(text, indent...)
}

// AddLinef formats the line first.
func (s *Safe) AddLinef(format string, args ...any) {
	s.AddLine(fmt.Sprintf(format, args...))
}

func (s *Safe) AddIndent(delta int) {
	if s == nil || s.inner == nil {
		return
	}
	defer func() { _ = recover() }()
	s.inner.AddIndent(delta)
}

// Multi writes to several logbooks.
type Multi []LogBook

func (m Multi) AddLine(text string, indent ...int) {
	for _, l := range m {
		NewSafe(l).AddLine(text, indent...)
	}
}

func (m Multi) AddIndent(delta int) {
	for _, l := range m {
		NewSafe(l).AddIndent(delta)
	}
}
