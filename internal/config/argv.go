package config

import (
	"fmt"
	"os"
	"strings"
	"unicode"
)

// splitCommand breaks a shell-style command line into argv. Quotes group words and
// backslash escapes the next rune. $VAR and ${VAR} expand through lookup everywhere
// except inside single quotes. A line starting with # counts as unset.
func splitCommand(line string, lookup func(string) string) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}

	s := splitter{src: []rune(line), lookup: lookup}
	for s.pos < len(s.src) {
		r := s.src[s.pos]
		s.pos++
		switch {
		case r == '\\':
			if s.pos >= len(s.src) {
				return nil, fmt.Errorf("unterminated escape sequence in command: %q", line)
			}
			s.word.WriteRune(s.src[s.pos])
			s.pos++
			s.open = true
		case r == '\'' || r == '"':
			if err := s.quoted(r); err != nil {
				return nil, fmt.Errorf("%w in command: %q", err, line)
			}
		case r == '$':
			s.expand()
		case unicode.IsSpace(r):
			s.flush()
		default:
			s.word.WriteRune(r)
			s.open = true
		}
	}
	s.flush()
	return s.argv, nil
}

type splitter struct {
	src    []rune
	pos    int
	lookup func(string) string

	argv []string
	word strings.Builder
	// open is set once the current word has started, so "" yields an empty argument.
	open bool
}

func (s *splitter) flush() {
	if !s.open {
		return
	}
	s.argv = append(s.argv, s.word.String())
	s.word.Reset()
	s.open = false
}

func (s *splitter) quoted(quote rune) error {
	s.open = true
	for s.pos < len(s.src) {
		r := s.src[s.pos]
		s.pos++
		switch {
		case r == quote:
			return nil
		case quote == '"' && r == '\\' && s.pos < len(s.src):
			s.word.WriteRune(s.src[s.pos])
			s.pos++
		case quote == '"' && r == '$':
			s.expand()
		default:
			s.word.WriteRune(r)
		}
	}
	return fmt.Errorf("unterminated quote")
}

// expand reads a variable name after '$'. Without a valid name the dollar sign stays.
func (s *splitter) expand() {
	s.open = true
	if s.pos < len(s.src) && s.src[s.pos] == '{' {
		end := s.pos + 1
		for end < len(s.src) && s.src[end] != '}' {
			end++
		}
		if end < len(s.src) && end > s.pos+1 {
			s.word.WriteString(s.lookup(string(s.src[s.pos+1 : end])))
			s.pos = end + 1
			return
		}
		s.word.WriteRune('$')
		return
	}

	start := s.pos
	for s.pos < len(s.src) && isNameRune(s.src[s.pos], s.pos == start) {
		s.pos++
	}
	if s.pos == start {
		s.word.WriteRune('$')
		return
	}
	s.word.WriteString(s.lookup(string(s.src[start:s.pos])))
}

func isNameRune(r rune, first bool) bool {
	if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
		return true
	}
	return !first && r >= '0' && r <= '9'
}

func parseArgv(input string) ([]string, error) {
	return splitCommand(input, os.Getenv)
}

func mustParseArgv(input string) []string {
	argv, err := parseArgv(input)
	if err != nil {
		panic(err)
	}
	return argv
}
