package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchConfig_Validate(t *testing.T) {
	c := NewWatchConfig()
	assert.NoError(t, c.Validate())

	c.DebounceTime = -1
	assert.Error(t, c.Validate())
}

func TestIsWatched(t *testing.T) {
	dir := t.TempDir()
	files := watchedFiles(dir)

	assert.True(t, isWatched(filepath.Join(dir, "agents.yaml"), files))
	assert.True(t, isWatched(filepath.Join(dir, ".", "agents.yaml"), files))
	assert.False(t, isWatched(filepath.Join(dir, "agents.yaml.swp"), files))
	assert.False(t, isWatched(filepath.Join(dir, "sub", "agents.yaml"), files))
}

func TestDebounceFileEvents_CoalescesBursts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	input := make(chan FileEvent)
	output := make(chan FileEvent, 4)
	go debounceFileEvents(ctx, input, output, 50*time.Millisecond)

	input <- FileEvent{Path: "a", Op: fsnotify.Write}
	input <- FileEvent{Path: "b", Op: fsnotify.Create}
	input <- FileEvent{Path: "c", Op: fsnotify.Write}

	select {
	case event := <-output:
		assert.Equal(t, "c", event.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced event not delivered")
	}

	select {
	case event := <-output:
		t.Fatalf("unexpected second event %v", event)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebounceFileEvents_SeparateBursts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	input := make(chan FileEvent)
	output := make(chan FileEvent, 4)
	go debounceFileEvents(ctx, input, output, 20*time.Millisecond)

	for _, path := range []string{"first", "second"} {
		input <- FileEvent{Path: path}
		select {
		case event := <-output:
			require.Equal(t, path, event.Path)
		case <-time.After(2 * time.Second):
			t.Fatalf("event %s not delivered", path)
		}
	}
}

func TestDebounceFileEvents_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		debounceFileEvents(ctx, make(chan FileEvent), make(chan FileEvent), time.Second)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer did not stop")
	}
}
