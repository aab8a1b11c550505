package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jingkaihe/agentdeps/pkg/logger"
	"github.com/jingkaihe/agentdeps/pkg/paths"
	"github.com/jingkaihe/agentdeps/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// WatchConfig holds configuration for the watch command
type WatchConfig struct {
	DebounceTime int
}

// NewWatchConfig creates a new WatchConfig with default values
func NewWatchConfig() *WatchConfig {
	return &WatchConfig{
		DebounceTime: 500,
	}
}

// Validate validates the WatchConfig and returns an error if invalid
func (c *WatchConfig) Validate() error {
	if c.DebounceTime < 0 {
		return errors.Errorf("debounce time cannot be negative: %d", c.DebounceTime)
	}
	return nil
}

// FileEvent is a change to one of the watched files
type FileEvent struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run install whenever agents.yaml or the configuration changes",
	Long: `Run install, then keep watching the project agents.yaml, the global
agents.yaml and config.yaml, and install again after each change.

Bursts of changes, such as an editor writing a file in several steps, are
coalesced into a single install.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		wc := getWatchConfigFromFlags(cmd)
		if err := wc.Validate(); err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := preflight(ctx)
		if err != nil {
			return err
		}
		return runWatchMode(ctx, a.projectDir, wc)
	},
}

func init() {
	defaults := NewWatchConfig()
	watchCmd.Flags().IntP("debounce", "d", defaults.DebounceTime, "Debounce time in milliseconds for file change events")
}

// getWatchConfigFromFlags extracts watch configuration from command flags
func getWatchConfigFromFlags(cmd *cobra.Command) *WatchConfig {
	config := NewWatchConfig()

	if debounceTime, err := cmd.Flags().GetInt("debounce"); err == nil {
		config.DebounceTime = debounceTime
	}

	return config
}

// watchedFiles returns the files whose changes trigger an install
func watchedFiles(projectDir string) []string {
	return []string{
		paths.ProjectDependenciesFile(projectDir),
		paths.GlobalDependenciesFile(),
		paths.ConfigFile(),
	}
}

// isWatched reports whether path is one of files
func isWatched(path string, files []string) bool {
	clean := filepath.Clean(path)
	for _, f := range files {
		if filepath.Clean(f) == clean {
			return true
		}
	}
	return false
}

// installOnce reloads the configuration and installs every scope
func installOnce(ctx context.Context) {
	a, err := preflight(ctx)
	if err == nil {
		err = a.install(ctx, scopeSelection{Global: true, Project: true})
	}
	if err != nil {
		presenter.Error(err, "Install failed")
		logger.C(ctx, "watch").WithError(err).Error("install failed")
	}
}

func runWatchMode(ctx context.Context, projectDir string, config *WatchConfig) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	files := watchedFiles(projectDir)
	dirs := make(map[string]bool)
	for _, f := range files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
		// Watch the parent so files replaced by rename stay tracked
		if err := watcher.Add(dir); err != nil {
			return errors.Wrapf(err, "failed to watch %s", dir)
		}
		logger.G(ctx).WithField("directory", dir).Debug("Adding directory to watcher")
	}

	events := make(chan FileEvent)
	debouncedEvents := make(chan FileEvent)
	go debounceFileEvents(ctx, events, debouncedEvents, time.Duration(config.DebounceTime)*time.Millisecond)

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isWatched(event.Name, files) || event.Op == fsnotify.Chmod {
					continue
				}
				select {
				case events <- FileEvent{Path: event.Name, Op: event.Op, Time: time.Now()}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				presenter.Error(err, "File watcher error")
				logger.C(ctx, "watch").WithError(err).Error("error watching files")
			case <-ctx.Done():
				return
			}
		}
	}()

	installOnce(ctx)
	presenter.Info("Watching agents.yaml and config.yaml for changes... Press Ctrl+C to stop")

	for {
		select {
		case event := <-debouncedEvents:
			presenter.Info(fmt.Sprintf("\nChange detected: %s (%s)", event.Path, event.Op))
			logger.G(ctx).WithFields(map[string]interface{}{
				"file":      event.Path,
				"operation": event.Op.String(),
				"timestamp": event.Time,
			}).Debug("File change detected")
			installOnce(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// debounceFileEvents forwards the last event of every burst once delay has
// passed without further events. Any watched file changing triggers the same
// full install, so events are coalesced across files.
func debounceFileEvents(ctx context.Context, input <-chan FileEvent, output chan<- FileEvent, delay time.Duration) {
	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending FileEvent
	)

	for {
		select {
		case event, ok := <-input:
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				return
			}
			pending = event
			if timer == nil {
				timer = time.NewTimer(delay)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(delay)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			select {
			case output <- pending:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}
