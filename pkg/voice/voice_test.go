package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRecognizer hands its sink to the test, which drives it directly.
type fakeRecognizer struct {
	unsupported bool
	startErr    error

	mu    sync.Mutex
	sink  Sink
	stops int
}

func (f *fakeRecognizer) Supported() bool { return !f.unsupported }

func (f *fakeRecognizer) Start(_ context.Context, sink Sink) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.sink = sink
	f.mu.Unlock()
	return nil
}

func (f *fakeRecognizer) Stop() {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
}

func (f *fakeRecognizer) Sink() Sink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sink
}

func (f *fakeRecognizer) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

type recorder struct {
	mu      sync.Mutex
	changes []Session
	results []Session
}

func record(a *Adapter) *recorder {
	r := &recorder{}
	a.OnChange(func(s Session) {
		r.mu.Lock()
		r.changes = append(r.changes, s)
		r.mu.Unlock()
	})
	a.Results(func(s Session) {
		r.mu.Lock()
		r.results = append(r.results, s)
		r.mu.Unlock()
	})
	return r
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.changes))
	for i, s := range r.changes {
		out[i] = s.State
	}
	return out
}

func (r *recorder) last() Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changes[len(r.changes)-1]
}

func (r *recorder) errorReason() Reason {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.changes {
		if s.State == Error {
			return s.Reason
		}
	}
	return NoReason
}

func (r *recorder) resultCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func TestPermissionDenied(t *testing.T) {
	rec := &fakeRecognizer{startErr: ErrPermissionDenied}
	a := NewAdapter(rec)
	r := record(a)

	err := a.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	assert.Equal(t, []State{Listening, Error, Idle}, r.states())
	assert.Equal(t, PermissionDenied, r.errorReason())
	assert.Equal(t, Idle, a.State())
	assert.Equal(t, "microphone access needed", r.last().Reason.Message())
}

func TestUnsupported(t *testing.T) {
	for name, rec := range map[string]Recognizer{
		"nil recognizer": nil,
		"unsupported":    &fakeRecognizer{unsupported: true},
	} {
		t.Run(name, func(t *testing.T) {
			a := NewAdapter(rec)
			r := record(a)
			assert.ErrorIs(t, a.Start(context.Background()), ErrUnsupported)
			assert.Equal(t, []State{Listening, Error, Idle}, r.states())
			assert.Equal(t, UnsupportedCapability, r.errorReason())
			assert.Equal(t, Idle, a.State())
		})
	}
}

func TestOtherStartErrorsAreAudioCapture(t *testing.T) {
	a := NewAdapter(&fakeRecognizer{startErr: errors.New("device busy")})
	r := record(a)
	assert.Error(t, a.Start(context.Background()))
	assert.Equal(t, AudioCapture, r.errorReason())
}

func TestInterimReplacesTranscript(t *testing.T) {
	rec := &fakeRecognizer{}
	a := NewAdapter(rec)
	require.NoError(t, a.Start(context.Background()))
	defer a.Cancel()

	sink := rec.Sink()
	sink.Interim("new", 0.3)
	assert.Equal(t, "new", a.Session().Transcript)

	sink.Interim("new york", 0.5)
	s := a.Session()
	assert.Equal(t, Listening, s.State)
	assert.Equal(t, "new york", s.RawTranscript)
	assert.Equal(t, "New York", s.Transcript)
	assert.Equal(t, 0.5, s.Confidence)
	assert.Nil(t, s.FinalTranscript, "no final transcript while listening")
}

func TestFinalResult(t *testing.T) {
	rec := &fakeRecognizer{}
	a := NewAdapter(rec)
	r := record(a)
	require.NoError(t, a.Start(context.Background()))
	id := a.Session().ID
	require.NotEmpty(t, id)

	sink := rec.Sink()
	sink.Interim("the big", 0.4)
	sink.Final("The Big Apple.", 0.92)

	assert.Equal(t, []State{Listening, Listening, Processing, Result, Idle}, r.states())
	require.Equal(t, 1, r.resultCount())
	res := r.results[0]
	assert.Equal(t, Result, res.State)
	assert.Equal(t, id, res.ID)
	require.NotNil(t, res.FinalTranscript)
	assert.Equal(t, "New York", *res.FinalTranscript)
	assert.Equal(t, 0.92, res.Confidence)

	for _, s := range r.changes {
		if s.State != Result {
			assert.Nil(t, s.FinalTranscript, "final transcript outside Result in %s", s.State)
		}
	}

	assert.Equal(t, Idle, a.State())
	assert.Equal(t, 1, rec.Stops())

	// the recognizer's trailing events belong to a finished session
	sink.End()
	sink.Final("again", 1)
	assert.Equal(t, 1, r.resultCount())
	assert.Equal(t, Idle, a.State())
}

func TestEngineErrors(t *testing.T) {
	testCases := []struct {
		desc   string
		emit   func(Sink)
		reason Reason
	}{
		{"network", func(s Sink) { s.Error(Network) }, Network},
		{"audio", func(s Sink) { s.Error(AudioCapture) }, AudioCapture},
		{"unspecified", func(s Sink) { s.Error(NoReason) }, RecognitionError},
		{"ended without speech", func(s Sink) { s.End() }, NoSpeech},
		{"ended after interim", func(s Sink) { s.Interim("par", 0.2); s.End() }, NoSpeech},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			rec := &fakeRecognizer{}
			a := NewAdapter(rec)
			r := record(a)
			require.NoError(t, a.Start(context.Background()))

			tc.emit(rec.Sink())
			assert.Equal(t, tc.reason, r.errorReason())
			assert.Equal(t, Idle, a.State())
			assert.Equal(t, 0, r.resultCount())
			assert.Equal(t, 1, rec.Stops())

			// surfaced once: a repeated error is ignored
			rec.Sink().Error(Network)
			assert.Equal(t, Idle, a.State())
			n := 0
			for _, s := range r.changes {
				if s.State == Error {
					n++
				}
			}
			assert.Equal(t, 1, n)
		})
	}
}

func TestTimeout(t *testing.T) {
	rec := &fakeRecognizer{}
	a := NewAdapter(rec, WithTimeout(20*time.Millisecond))
	r := record(a)
	require.NoError(t, a.Start(context.Background()))

	require.Eventually(t, func() bool {
		return a.State() == Idle
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, Timeout, r.errorReason())
	assert.Equal(t, 1, rec.Stops())

	rec.Sink().Final("paris", 1)
	assert.Equal(t, 0, r.resultCount(), "late final after timeout")
}

func TestFinalStopsTimer(t *testing.T) {
	rec := &fakeRecognizer{}
	a := NewAdapter(rec, WithTimeout(30*time.Millisecond))
	r := record(a)
	require.NoError(t, a.Start(context.Background()))
	rec.Sink().Final("rome", 0.8)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, NoReason, r.errorReason())
	assert.Equal(t, Idle, a.State())
}

func TestCancel(t *testing.T) {
	rec := &fakeRecognizer{}
	a := NewAdapter(rec)
	r := record(a)

	a.Cancel() // idle: no-op
	assert.Empty(t, r.states())

	require.NoError(t, a.Start(context.Background()))
	rec.Sink().Interim("lond", 0.3)
	a.Cancel()

	assert.Equal(t, Idle, a.State())
	assert.Equal(t, Aborted, r.last().Reason)
	assert.Equal(t, 1, rec.Stops())

	rec.Sink().Final("london", 0.9)
	assert.Equal(t, 0, r.resultCount())
}

func TestContextCancel(t *testing.T) {
	rec := &fakeRecognizer{}
	a := NewAdapter(rec)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, a.Start(ctx))
	cancel()

	require.Eventually(t, func() bool {
		return a.State() == Idle
	}, time.Second, 5*time.Millisecond)
}

func TestBusy(t *testing.T) {
	rec := &fakeRecognizer{}
	a := NewAdapter(rec)
	require.NoError(t, a.Start(context.Background()))
	first := a.Session().ID

	assert.ErrorIs(t, a.Start(context.Background()), ErrBusy)
	assert.Equal(t, first, a.Session().ID)

	a.Cancel()
	require.NoError(t, a.Start(context.Background()))
	assert.NotEqual(t, first, a.Session().ID)
	a.Cancel()
}

func TestTransitionTotality(t *testing.T) {
	for _, s := range allStates {
		for _, e := range allEvents {
			next := transition(s, e)
			assert.Contains(t, allStates, next, "%s + %s", s, e)
		}
	}

	// the happy path and every exit
	assert.Equal(t, Listening, transition(Idle, evStart))
	assert.Equal(t, Processing, transition(Listening, evFinal))
	assert.Equal(t, Result, transition(Processing, evResolve))
	assert.Equal(t, Idle, transition(Result, evReset))
	assert.Equal(t, Error, transition(Listening, evTimeout))
	assert.Equal(t, Idle, transition(Error, evReset))
	for _, s := range allStates {
		assert.Equal(t, Idle, transition(s, evCancel))
	}
	assert.Equal(t, Listening, transition(Listening, evStart), "busy")
	assert.Equal(t, Idle, transition(Idle, evFinal), "stale final")
}

func TestScriptRecognizer(t *testing.T) {
	script := &Script{Text: "paree", Confidence: 0.88, Delay: time.Millisecond}
	a := NewAdapter(script)
	r := record(a)

	done := make(chan Session, 1)
	a.Results(func(s Session) { done <- s })
	require.NoError(t, a.Start(context.Background()))

	select {
	case s := <-done:
		assert.Equal(t, "Paris", s.Final())
		assert.Equal(t, 0.88, s.Confidence)
	case <-time.After(time.Second):
		t.Fatal("no result from scripted session")
	}
	script.Wait()
	assert.Equal(t, Idle, a.State())
	assert.Equal(t, 1, r.resultCount())
}

func TestScriptFailure(t *testing.T) {
	script := &Script{Text: "uh", FailWith: NoSpeech}
	a := NewAdapter(script)
	r := record(a)
	require.NoError(t, a.Start(context.Background()))
	script.Wait()
	assert.Equal(t, NoSpeech, r.errorReason())
	assert.Equal(t, Idle, a.State())
}

func TestNormalizer(t *testing.T) {
	n := NewNormalizer(DefaultPronunciations(), "Ushuaia", "Barcelona")
	assert.Greater(t, n.Len(), 80)

	testCases := []struct {
		spoken string
		want   string
	}{
		{"Tokio.", "Tokyo"},
		{"the big apple", "New York"},
		{"  SAN   fran ", "San Francisco"},
		{"philly pennsylvania", "Philadelphia pennsylvania"},
		{"barcelona", "Barcelona"},
		{"barsalona", "Barcelona"},
		{"ushuaia!", "Ushuaia"},
		{"hello there", "hello there"},
		{"", ""},
		{"...", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.spoken, func(t *testing.T) {
			assert.Equal(t, tc.want, n.Normalize(tc.spoken))
		})
	}
}

func TestReasonStrings(t *testing.T) {
	assert.Equal(t, "permission_denied", PermissionDenied.String())
	assert.Equal(t, "listening", Listening.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.Equal(t, "didn't catch that, try again", Timeout.Message())
	assert.Equal(t, "", Session{}.Final())
}
