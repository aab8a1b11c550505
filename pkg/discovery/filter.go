package discovery

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jingkaihe/agentdeps/pkg/config"
	"github.com/pkg/errors"
)

// Filter narrows discovered items to sel. Names are matched exactly or, when
// they contain glob metacharacters, as doublestar patterns. Requested names
// that match nothing are returned in missing. Selected items keep the order
// in which the selection first matched them.
func Filter(items []Item, sel config.Selection) (selected []Item, missing []string, err error) {
	switch sel.Mode {
	case config.SelectNone:
		return nil, nil, nil
	case config.SelectAll:
		return append([]Item(nil), items...), nil, nil
	}

	taken := make(map[string]bool, len(items))
	for _, want := range sel.Names {
		matched := false
		pattern := isPattern(want)
		if pattern && !doublestar.ValidatePattern(want) {
			return nil, nil, errors.Errorf("invalid pattern %q", want)
		}

		for _, item := range items {
			ok := item.Name == want
			if pattern && !ok {
				ok, err = doublestar.Match(want, item.Name)
				if err != nil {
					return nil, nil, errors.Wrapf(err, "invalid pattern %q", want)
				}
			}
			if !ok {
				continue
			}
			matched = true
			if !taken[item.Name] {
				taken[item.Name] = true
				selected = append(selected, item)
			}
		}

		if !matched {
			missing = append(missing, want)
		}
	}
	return selected, missing, nil
}

func isPattern(name string) bool {
	return strings.ContainsAny(name, "*?[{")
}

// Warnings describes discovery problems worth telling the user about: a
// repository with no items of a kind, or requested names that were not
// found. A none selection never warns.
func Warnings(repo string, kind Kind, discovered []Item, sel config.Selection, missing []string) []string {
	if sel.Mode == config.SelectNone {
		return nil
	}

	var warnings []string
	if len(discovered) == 0 {
		hint := " (no agents/ directory)"
		if kind == KindSkill {
			hint = " (no skills/ directory or no SKILL.md files)"
		}
		warnings = append(warnings, fmt.Sprintf("No %s found in %s%s", kind.Plural(), repo, hint))
	}
	if len(missing) > 0 {
		warnings = append(warnings, fmt.Sprintf("%s not found in %s: %s", kind.Plural(), repo, strings.Join(missing, ", ")))
	}
	return warnings
}
