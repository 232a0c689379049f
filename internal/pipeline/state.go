package pipeline

import "fmt"

// State is one step of the dubbing state machine.
type State int

const (
	StateTranscribe State = iota
	StateGroupSegments
	StateTranslate
	StateSynthesize
	StateIsolate
	StateMix
	StateDone
)

var stateNames = [...]string{
	StateTranscribe:    "transcribe",
	StateGroupSegments: "group_segments",
	StateTranslate:     "translate",
	StateSynthesize:    "synthesize",
	StateIsolate:       "isolate",
	StateMix:           "mix",
	StateDone:          "done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}
