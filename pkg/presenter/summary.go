package presenter

import (
	"fmt"
	"strings"
)

// TargetCounts is the install outcome of a single target directory
type TargetCounts struct {
	Label       string
	SkillsAdded int
	AgentsAdded int
	Removed     int
	Failed      bool
}

func (c TargetCounts) changed() bool {
	return c.SkillsAdded > 0 || c.AgentsAdded > 0 || c.Removed > 0
}

func (c TargetCounts) describe() string {
	if c.Failed {
		return "failed"
	}
	if !c.changed() {
		return "up to date"
	}

	parts := make([]string, 0, 3)
	if c.SkillsAdded > 0 {
		parts = append(parts, plural(c.SkillsAdded, "skill")+" added")
	}
	if c.AgentsAdded > 0 {
		parts = append(parts, plural(c.AgentsAdded, "agent")+" added")
	}
	if c.Removed > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", c.Removed))
	}
	return strings.Join(parts, ", ")
}

// FormatScope renders the install summary of one scope. A single target
// gets one line, several targets get one indented line each.
func FormatScope(scope string, targets []TargetCounts) string {
	switch len(targets) {
	case 0:
		return fmt.Sprintf("✓ %s: nothing to do", scope)
	case 1:
		t := targets[0]
		return fmt.Sprintf("%s %s (%s): %s", mark(t), scope, t.Label, t.describe())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✓ %s:", scope)
	for _, t := range targets {
		fmt.Fprintf(&b, "\n  %s %s: %s", mark(t), t.Label, t.describe())
	}
	return b.String()
}

// FormatLogHint points the user at the log file when a run had errors
func FormatLogHint(errorCount int, logPath string) string {
	if errorCount <= 0 {
		return ""
	}
	return fmt.Sprintf("%s occurred. See log for details:\n  %s", plural(errorCount, "error"), logPath)
}

func mark(t TargetCounts) string {
	if t.Failed {
		return "✗"
	}
	return "✓"
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
