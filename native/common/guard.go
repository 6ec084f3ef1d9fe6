package common

import (
	"errors"
	"strings"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is a fixed set of paused module names, normally loaded from
// the daemon configuration.
type StaticPauses map[string]bool

// NewStaticPauses builds a pause set from module names. Blank entries are
// ignored and names are case-insensitive.
func NewStaticPauses(modules ...string) StaticPauses {
	set := make(StaticPauses, len(modules))
	for _, module := range modules {
		if trimmed := strings.ToLower(strings.TrimSpace(module)); trimmed != "" {
			set[trimmed] = true
		}
	}
	return set
}

func (s StaticPauses) IsPaused(module string) bool {
	return s[strings.ToLower(module)]
}
