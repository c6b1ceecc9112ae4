package voice

import (
	"errors"
	"time"
)

var (
	// ErrUnsupported is returned by Start when no recognizer is available.
	ErrUnsupported = errors.New("voice: speech recognition unsupported")
	// ErrPermissionDenied is returned by a Recognizer (and Start) when
	// microphone access is refused.
	ErrPermissionDenied = errors.New("voice: microphone permission denied")
	// ErrBusy is returned by Start while a session is already running.
	ErrBusy = errors.New("voice: session already active")
)

// State is the session lifecycle position.
type State int

const (
	Idle State = iota
	Listening
	Processing
	Result
	Error
)

var stateNames = [...]string{
	Idle:       "idle",
	Listening:  "listening",
	Processing: "processing",
	Result:     "result",
	Error:      "error",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Reason explains why a session ended in Error (or was aborted).
type Reason int

const (
	NoReason Reason = iota
	UnsupportedCapability
	PermissionDenied
	Timeout
	NoSpeech
	AudioCapture
	Network
	Aborted
	RecognitionError
)

var reasonNames = [...]string{
	NoReason:              "",
	UnsupportedCapability: "unsupported_capability",
	PermissionDenied:      "permission_denied",
	Timeout:               "timeout",
	NoSpeech:              "no_speech",
	AudioCapture:          "audio_capture",
	Network:               "network",
	Aborted:               "aborted",
	RecognitionError:      "recognition_error",
}

func (r Reason) String() string {
	if r >= 0 && int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// Message is the user-facing hint for a reason.
func (r Reason) Message() string {
	switch r {
	case NoReason:
		return ""
	case UnsupportedCapability:
		return "voice input is not available here"
	case PermissionDenied:
		return "microphone access needed"
	case Aborted:
		return "voice input cancelled"
	default:
		return "didn't catch that, try again"
	}
}

// Session is a snapshot of one listening interaction.
// FinalTranscript is non-nil only in the Result state.
type Session struct {
	ID              string
	State           State
	Transcript      string
	RawTranscript   string
	FinalTranscript *string
	Confidence      float64
	Reason          Reason
	StartedAt       time.Time
}

// Final returns the final transcript, or "" when there is none.
func (s Session) Final() string {
	if s.FinalTranscript == nil {
		return ""
	}
	return *s.FinalTranscript
}

type eventKind int

const (
	evStart eventKind = iota
	evInterim
	evFinal
	evError
	evEnd
	evTimeout
	evCancel
	// internal steps through the transient states
	evResolve
	evReset
)

var allEvents = []eventKind{evStart, evInterim, evFinal, evError, evEnd, evTimeout, evCancel, evResolve, evReset}

var allStates = []State{Idle, Listening, Processing, Result, Error}

// transition is the complete state table. Pairs not listed keep the
// current state, which makes late or duplicate engine events harmless.
func transition(s State, e eventKind) State {
	if e == evCancel {
		return Idle
	}
	switch s {
	case Idle:
		if e == evStart {
			return Listening
		}
	case Listening:
		switch e {
		case evFinal:
			return Processing
		case evError, evEnd, evTimeout:
			return Error
		}
	case Processing:
		if e == evResolve {
			return Result
		}
	case Result, Error:
		if e == evReset {
			return Idle
		}
	}
	return s
}
