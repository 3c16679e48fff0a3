// Package speech reads timeline items aloud. Engine is the text-to-speech
// backend; Queue walks a batch of items through it one utterance at a time.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// Callbacks report the lifecycle of one utterance. Exactly one of OnDone,
// OnStopped or OnError follows OnStart. Any of them may be nil.
type Callbacks struct {
	OnStart   func()
	OnDone    func()
	OnStopped func()
	OnError   func(error)
}

func (c Callbacks) start() {
	if c.OnStart != nil {
		c.OnStart()
	}
}

func (c Callbacks) done() {
	if c.OnDone != nil {
		c.OnDone()
	}
}

func (c Callbacks) stopped() {
	if c.OnStopped != nil {
		c.OnStopped()
	}
}

func (c Callbacks) fail(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

// Engine speaks text. Speak must not block until the utterance ends; Stop
// interrupts whatever is being spoken.
type Engine interface {
	Speak(text string, cb Callbacks)
	Stop()
}

// DefaultCommand is the TTS binary used by CommandEngine.
const DefaultCommand = "espeak-ng"

// CommandEngine speaks through an external TTS program that reads the text
// on stdin. Only one utterance runs at a time.
type CommandEngine struct {
	// Command defaults to DefaultCommand.
	Command string
	// Args defaults to {"--stdin"} when Command is empty.
	Args []string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (e *CommandEngine) command() (string, []string) {
	if e.Command == "" {
		return DefaultCommand, []string{"--stdin"}
	}
	return e.Command, e.Args
}

// Speak implements Engine. A running utterance is stopped first.
func (e *CommandEngine) Speak(text string, cb Callbacks) {
	e.Stop()

	name, args := e.command()
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(text)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	done := make(chan struct{})
	e.mu.Lock()
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	go func() {
		defer close(done)
		err := cmd.Start()
		if err == nil {
			cb.start()
			err = cmd.Wait()
		}
		stopped := ctx.Err() != nil
		cancel()
		// a callback may start the next utterance
		e.release(done)

		switch {
		case stopped:
			cb.stopped()
		case err != nil:
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && stderr.Len() > 0 {
				err = fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
			}
			slog.Debug("speech command failed", slog.String("command", name), slog.Any("error", err))
			cb.fail(fmt.Errorf("%s: %w", name, err))
		default:
			cb.done()
		}
	}()
}

func (e *CommandEngine) release(done chan struct{}) {
	e.mu.Lock()
	if e.done == done {
		e.cancel, e.done = nil, nil
	}
	e.mu.Unlock()
}

// Stop implements Engine. The interrupted utterance reports OnStopped
// asynchronously.
func (e *CommandEngine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel, e.done = nil, nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
