package models

// Phase is the coarse-grained lifecycle phase of a batch.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseUploading        Phase = "uploading"
	PhaseParsingStarted   Phase = "parsing_started"
	PhaseParsingCompleted Phase = "parsing_completed"
	PhaseError            Phase = "error"
	// PhaseTimeout is only produced by the client when polling gives up.
	PhaseTimeout Phase = "timeout"
)

// LifecycleStatus is the phase reported to polling clients plus an optional detail.
type LifecycleStatus struct {
	Phase  Phase  `json:"phase" msgpack:"phase"`
	Detail string `json:"detail,omitempty" msgpack:"detail,omitempty"`
}

var (
	StatusIdle             = LifecycleStatus{Phase: PhaseIdle}
	StatusUploading        = LifecycleStatus{Phase: PhaseUploading}
	StatusParsingStarted   = LifecycleStatus{Phase: PhaseParsingStarted}
	StatusParsingCompleted = LifecycleStatus{Phase: PhaseParsingCompleted}
)

// StatusError builds an Error(detail) status.
func StatusError(detail string) LifecycleStatus {
	return LifecycleStatus{Phase: PhaseError, Detail: detail}
}

// StatusTimeout builds a Timeout(detail) status.
func StatusTimeout(detail string) LifecycleStatus {
	return LifecycleStatus{Phase: PhaseTimeout, Detail: detail}
}

// String renders the status the way polling clients display it.
func (s LifecycleStatus) String() string {
	switch s.Phase {
	case PhaseUploading:
		return "Uploading..."
	case PhaseParsingStarted:
		return "Parsing started..."
	case PhaseParsingCompleted:
		return "Parsing completed!"
	case PhaseError:
		return "Error: " + s.Detail
	case PhaseTimeout:
		return "Timeout: " + s.Detail
	default:
		return "Idle"
	}
}

// Terminal reports whether no further transition is expected without user action.
func (s LifecycleStatus) Terminal() bool {
	switch s.Phase {
	case PhaseParsingCompleted, PhaseError, PhaseTimeout:
		return true
	}
	return false
}
