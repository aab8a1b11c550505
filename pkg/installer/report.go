package installer

import (
	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/agentdeps/pkg/install"
	"github.com/jingkaihe/agentdeps/pkg/registry"
	"github.com/pkg/errors"
)

// Level grades an Event
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Event is something that happened during a run worth reporting to the user
type Event struct {
	Level Level
	// Context is a short label of where the event originated, e.g. "cache.clone"
	Context string
	Scope   registry.Scope
	Repo    string
	Message string
	Err     error
}

// TargetResult is the outcome of reconciling one merged target
type TargetResult struct {
	Target registry.DedupTarget
	Skills *install.SyncSummary
	Agents *install.SyncSummary
	// Failed is set when a reconciliation pass for this target stopped early
	Failed bool
}

// Changed reports whether any pass wrote or removed something
func (r TargetResult) Changed() bool {
	return (r.Skills != nil && r.Skills.Changed()) || (r.Agents != nil && r.Agents.Changed())
}

// ScopeResult is the outcome of one scope
type ScopeResult struct {
	Scope        registry.Scope
	Dependencies int
	Targets      []TargetResult
}

// Report collects everything a run did. It is built by the run and handed
// back to the caller; nothing is recorded globally.
type Report struct {
	RunID  string
	Scopes []ScopeResult
	Events []Event
}

func (r *Report) add(e Event) {
	r.Events = append(r.Events, e)
}

// Filter returns the events at level
func (r *Report) Filter(level Level) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// ErrorCount returns the number of error events
func (r *Report) ErrorCount() int {
	return len(r.Filter(LevelError))
}

// Err combines every error event into one error, or returns nil
func (r *Report) Err() error {
	var result *multierror.Error
	for _, e := range r.Filter(LevelError) {
		err := e.Err
		if err == nil {
			err = errors.New(e.Message)
		} else if e.Message != "" {
			err = errors.Wrap(err, e.Message)
		}
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
