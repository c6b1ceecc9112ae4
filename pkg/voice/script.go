package voice

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Script is a Recognizer that replays a fixed utterance: one interim result
// per word, then a final result (or FailWith). It stands in for a
// microphone in the CLI and in tests.
type Script struct {
	Text       string
	Confidence float64
	// Delay is the pause before each word.
	Delay time.Duration
	// StartErr is returned from Start, e.g. ErrPermissionDenied.
	StartErr error
	// FailWith replaces the final result with an engine error.
	FailWith Reason
	// Unsupported makes Supported report false.
	Unsupported bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (s *Script) Supported() bool { return !s.Unsupported }

func (s *Script) Start(ctx context.Context, sink Sink) error {
	if s.StartErr != nil {
		return s.StartErr
	}
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, sink)
	}()
	return nil
}

func (s *Script) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Wait blocks until the replay goroutine has exited.
func (s *Script) Wait() {
	s.wg.Wait()
}

func (s *Script) run(ctx context.Context, sink Sink) {
	words := strings.Fields(s.Text)
	for i := range words {
		if !s.pause(ctx) {
			return
		}
		sink.Interim(strings.Join(words[:i+1], " "), s.Confidence*float64(i+1)/float64(len(words)+1))
	}
	if !s.pause(ctx) {
		return
	}
	switch {
	case s.FailWith != NoReason:
		sink.Error(s.FailWith)
	case len(words) == 0:
		sink.End()
	default:
		sink.Final(s.Text, s.Confidence)
		sink.End()
	}
}

func (s *Script) pause(ctx context.Context) bool {
	if s.Delay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
