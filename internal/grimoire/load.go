package grimoire

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Default returns the built-in grimoire used when no file is configured.
func Default() (*Grimoire, error) {
	g, err := Parse(defaultYAML)
	if err != nil {
		return nil, fmt.Errorf("parse built-in grimoire: %w", err)
	}
	return g, nil
}

// Load reads and parses a grimoire YAML file.
func Load(path string) (*Grimoire, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grimoire %q: %w", path, err)
	}
	g, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse grimoire %q: %w", path, err)
	}
	return g, nil
}

// Parse decodes grimoire YAML. Unknown keys are rejected so typos surface at load time.
func Parse(data []byte) (*Grimoire, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var g Grimoire
	if err := dec.Decode(&g); err != nil {
		if errors.Is(err, io.EOF) {
			return &Grimoire{}, nil
		}
		return nil, err
	}

	for i := range g.Commands {
		cmd := &g.Commands[i]
		cmd.Phrase = strings.TrimSpace(cmd.Phrase)
		cmd.Expansion = strings.TrimSpace(cmd.Expansion)
		cmd.Aliases = trimAll(cmd.Aliases)
		cmd.Tags = trimAll(cmd.Tags)
	}
	for i := range g.Modifiers {
		mod := &g.Modifiers[i]
		mod.Phrase = strings.TrimSpace(mod.Phrase)
		mod.Effect = strings.TrimSpace(mod.Effect)
		mod.Append = strings.TrimSpace(mod.Append)
	}
	g.Parser.StripFillerWords = trimAll(g.Parser.StripFillerWords)

	return &g, nil
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Open loads path, or the built-in grimoire when path is empty, and validates it. An
// error-severity issue is reported as an error alongside the full issue list.
func Open(path string) (*Grimoire, []Issue, error) {
	var (
		g   *Grimoire
		err error
	)
	if strings.TrimSpace(path) == "" {
		g, err = Default()
	} else {
		g, err = Load(path)
	}
	if err != nil {
		return nil, nil, err
	}
	issues := Validate(g)
	if HasErrors(issues) {
		return g, issues, fmt.Errorf("grimoire %s is invalid: %s", SourceName(path), firstError(issues))
	}
	return g, issues, nil
}

// SourceName labels where a grimoire came from.
func SourceName(path string) string {
	if strings.TrimSpace(path) == "" {
		return "built-in"
	}
	return path
}
