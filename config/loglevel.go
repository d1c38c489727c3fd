package config

import (
	"fmt"
	"strings"
)

// Loglevel is a validated, lowercased log level string.
type Loglevel string

// UnmarshalYAML lowercases the scalar and validates it names a level
// logrus understands.
func (loglevel *Loglevel) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	s = strings.ToLower(s)
	switch s {
	case "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("invalid loglevel %q: must be one of [error, warn, info, debug]", s)
	}

	*loglevel = Loglevel(s)
	return nil
}
