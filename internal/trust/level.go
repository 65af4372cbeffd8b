// Package trust decides whether a matched command may run, given the effective trust
// level and whether the command is destructive.
package trust

import (
	"fmt"
	"strconv"
	"strings"
)

// Level is the ordinal trust policy, 1 (Preview) through 5 (Autonomous).
type Level int

const (
	LevelPreview    Level = 1
	LevelExplicit   Level = 2
	LevelSupervised Level = 3
	LevelAssisted   Level = 4
	LevelAutonomous Level = 5
)

var levelNames = map[Level]string{
	LevelPreview:    "preview",
	LevelExplicit:   "explicit",
	LevelSupervised: "supervised",
	LevelAssisted:   "assisted",
	LevelAutonomous: "autonomous",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Valid reports whether l is within 1..5.
func (l Level) Valid() bool {
	return l >= LevelPreview && l <= LevelAutonomous
}

// ParseLevel accepts a number or a level name.
func ParseLevel(raw string) (Level, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(raw); err == nil {
		if l := Level(n); l.Valid() {
			return l, nil
		}
		return 0, fmt.Errorf("trust level %d out of range 1-5", n)
	}
	for l, name := range levelNames {
		if name == raw {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown trust level %q", raw)
}
