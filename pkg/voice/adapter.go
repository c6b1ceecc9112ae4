/*
Package voice bridges a speech recognizer into the text query pipeline.

An Adapter runs one listening session at a time through a small state
machine:

	Idle -> Listening -> Processing -> Result -> Idle
	                 \-> Error -> Idle

Every recognizer callback, the timeout and Cancel are turned into events and
fed to a single dispatch function; Processing, Result and Error are passed
through inside one dispatch, so observers see each of them exactly once and
the adapter always comes to rest in Idle or Listening.
*/
package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// DefaultTimeout ends a session that has not produced a final result.
const DefaultTimeout = 10 * time.Second

// Sink receives recognizer events for one session.
type Sink interface {
	Interim(text string, confidence float64)
	Final(text string, confidence float64)
	Error(reason Reason)
	End()
}

// Recognizer is the platform speech-recognition boundary.
type Recognizer interface {
	// Supported reports whether recognition is available at all.
	Supported() bool
	// Start begins capturing and delivers events to sink until Stop or
	// until it reports Final, Error or End. It returns ErrPermissionDenied
	// when microphone access is refused.
	Start(ctx context.Context, sink Sink) error
	Stop()
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithNormalizer replaces the default pronunciation normalizer.
func WithNormalizer(n *Normalizer) Option {
	return func(a *Adapter) {
		if n != nil {
			a.norm = n
		}
	}
}

// WithClock replaces time.Now for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

// Adapter owns the voice session state machine. It is safe for concurrent
// use; observers are called outside the internal lock.
type Adapter struct {
	rec     Recognizer
	norm    *Normalizer
	timeout time.Duration
	now     func() time.Time

	mu        sync.Mutex
	session   Session
	timer     *time.Timer
	done      chan struct{}
	observers []func(Session)
	results   []func(Session)
}

type event struct {
	kind       eventKind
	session    string
	text       string
	confidence float64
	reason     Reason
	done       chan struct{}
}

type notice struct {
	session Session
	final   bool
}

// NewAdapter returns an idle adapter over rec. A nil rec behaves as an
// unsupported platform.
func NewAdapter(rec Recognizer, opts ...Option) *Adapter {
	a := &Adapter{
		rec:     rec,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.norm == nil {
		a.norm = NewNormalizer(DefaultPronunciations())
	}
	return a
}

// OnChange registers fn to receive every state change.
func (a *Adapter) OnChange(fn func(Session)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, fn)
}

// Results registers fn to receive each session that reaches Result, once.
func (a *Adapter) Results(fn func(Session)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, fn)
}

// Session returns a snapshot of the current session.
func (a *Adapter) Session() Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// State returns the current state.
func (a *Adapter) State() State {
	return a.Session().State
}

// Start opens a listening session. It fails with ErrBusy while a session is
// running; ErrUnsupported and ErrPermissionDenied are surfaced as an Error
// state with the matching reason before the adapter returns to Idle.
// Cancelling ctx cancels the session.
func (a *Adapter) Start(ctx context.Context) error {
	id := uuid.NewString()
	done := make(chan struct{})
	if !a.dispatch(event{kind: evStart, session: id, done: done}) {
		return ErrBusy
	}

	if a.rec == nil || !a.rec.Supported() {
		a.dispatch(event{kind: evError, session: id, reason: UnsupportedCapability})
		return ErrUnsupported
	}

	if err := a.rec.Start(ctx, sessionSink{a: a, id: id}); err != nil {
		reason := AudioCapture
		if errors.Is(err, ErrPermissionDenied) {
			reason = PermissionDenied
		}
		a.dispatch(event{kind: evError, session: id, reason: reason})
		return fmt.Errorf("starting recognizer: %w", err)
	}

	go func() {
		select {
		case <-ctx.Done():
			a.dispatch(event{kind: evCancel, session: id})
		case <-done:
		}
	}()
	return nil
}

// Cancel aborts the current session. It is a no-op when Idle.
func (a *Adapter) Cancel() {
	a.dispatch(event{kind: evCancel})
}

// dispatch applies one event. Events tagged with a session other than the
// current one are dropped. It reports whether the event was applied.
func (a *Adapter) dispatch(ev event) bool {
	a.mu.Lock()

	if ev.kind != evStart && ev.session != "" && ev.session != a.session.ID {
		a.mu.Unlock()
		log.Debugf("Dropping %s for stale voice session %s", ev.kind, ev.session)
		return false
	}

	var notes []notice
	stopRecognizer := false
	from := a.session.State
	to := transition(from, ev.kind)

	switch {
	case from == Idle && ev.kind == evStart:
		a.session = Session{ID: ev.session, State: Listening, StartedAt: a.now()}
		a.done = ev.done
		id := ev.session
		a.timer = time.AfterFunc(a.timeout, func() {
			a.dispatch(event{kind: evTimeout, session: id})
		})
		notes = append(notes, notice{session: a.session})

	case from == Listening && ev.kind == evInterim:
		a.setTranscript(ev.text, ev.confidence)
		notes = append(notes, notice{session: a.session})

	case from == Listening && ev.kind == evFinal:
		a.setTranscript(ev.text, ev.confidence)
		notes = append(notes, a.step(to))
		final := a.session.Transcript
		a.session.FinalTranscript = &final
		notes = append(notes, a.step(transition(a.session.State, evResolve)))
		notes[len(notes)-1].final = true
		notes = append(notes, a.finishLocked(NoReason))
		stopRecognizer = true

	case from == Listening && to == Error:
		a.session.Reason = errorReason(ev)
		notes = append(notes, a.step(to))
		notes = append(notes, a.finishLocked(a.session.Reason))
		stopRecognizer = true

	case from != Idle && ev.kind == evCancel:
		notes = append(notes, a.finishLocked(Aborted))
		stopRecognizer = from == Listening

	default:
		// no transition: late, duplicate or out-of-order event
		applied := from == to && ev.kind != evStart
		a.mu.Unlock()
		return applied
	}

	observers := a.observers
	results := a.results
	a.mu.Unlock()

	if stopRecognizer && a.rec != nil {
		a.rec.Stop()
	}
	for _, n := range notes {
		for _, fn := range observers {
			fn(n.session)
		}
		if n.final {
			for _, fn := range results {
				fn(n.session)
			}
		}
	}
	return true
}

// step moves to the given state and returns the snapshot to announce.
func (a *Adapter) step(to State) notice {
	a.session.State = to
	return notice{session: a.session}
}

// finishLocked returns the adapter to Idle. The announced Idle snapshot
// keeps the session ID and the reason it ended; the stored one is blank.
func (a *Adapter) finishLocked(reason Reason) notice {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.done != nil {
		close(a.done)
		a.done = nil
	}
	end := a.session
	end.State = transition(end.State, evReset)
	if end.State != Idle {
		end.State = transition(end.State, evCancel)
	}
	end.FinalTranscript = nil
	end.Reason = reason
	if reason == NoReason || reason == Aborted {
		log.Debugf("Voice session %s ended (%s)", end.ID, reasonOrDone(reason))
	} else {
		log.Warnf("Voice session %s failed: %s", end.ID, reason)
	}
	a.session = Session{State: Idle}
	return notice{session: end}
}

func (a *Adapter) setTranscript(text string, confidence float64) {
	a.session.RawTranscript = text
	a.session.Transcript = a.norm.Normalize(text)
	a.session.Confidence = min(max(confidence, 0), 1)
}

func errorReason(ev event) Reason {
	switch ev.kind {
	case evTimeout:
		return Timeout
	case evEnd:
		return NoSpeech
	}
	if ev.reason == NoReason {
		return RecognitionError
	}
	return ev.reason
}

func reasonOrDone(r Reason) string {
	if r == NoReason {
		return "done"
	}
	return r.String()
}

var eventNames = [...]string{
	evStart:   "start",
	evInterim: "interim",
	evFinal:   "final",
	evError:   "error",
	evEnd:     "end",
	evTimeout: "timeout",
	evCancel:  "cancel",
	evResolve: "resolve",
	evReset:   "reset",
}

func (e eventKind) String() string {
	if e >= 0 && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return "unknown"
}

// sessionSink tags recognizer events with the session they belong to.
type sessionSink struct {
	a  *Adapter
	id string
}

func (s sessionSink) Interim(text string, confidence float64) {
	s.a.dispatch(event{kind: evInterim, session: s.id, text: text, confidence: confidence})
}

func (s sessionSink) Final(text string, confidence float64) {
	s.a.dispatch(event{kind: evFinal, session: s.id, text: text, confidence: confidence})
}

func (s sessionSink) Error(reason Reason) {
	s.a.dispatch(event{kind: evError, session: s.id, reason: reason})
}

func (s sessionSink) End() {
	s.a.dispatch(event{kind: evEnd, session: s.id})
}
