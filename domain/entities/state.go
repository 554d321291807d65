package entities

// State is the lifecycle state of a transcription session
type State string

const (
	StateDraft        State = "draft"
	StateRecording    State = "recording"
	StateTranscribing State = "transcribing"
	StateReview       State = "review"
	StateValidated    State = "validated"
	StateError        State = "error"
)

// transitions lists the states reachable from each state. Error is reachable
// from every active state; a failed session may only be retried through a
// new transcription.
var transitions = map[State][]State{
	StateDraft:        {StateRecording, StateTranscribing, StateError},
	StateRecording:    {StateTranscribing, StateError},
	StateTranscribing: {StateReview, StateError},
	StateReview:       {StateValidated, StateError},
	StateValidated:    {StateValidated},
	StateError:        {StateTranscribing},
}

// Valid reports whether s is a known state
func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Active reports whether the session is still moving through the workflow
func (s State) Active() bool {
	switch s {
	case StateDraft, StateRecording, StateTranscribing, StateReview:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanStartTranscription reports whether a transcribe request may run from s.
// Sessions created directly in transcribing (the frontend does this) are
// accepted as well.
func (s State) CanStartTranscription() bool {
	return s == StateTranscribing || s.CanTransitionTo(StateTranscribing)
}

// CanValidate reports whether a validate request may run from s
func (s State) CanValidate() bool {
	return s.CanTransitionTo(StateValidated)
}
