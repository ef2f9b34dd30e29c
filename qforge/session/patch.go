package session

import (
	"encoding/json"
	"time"

	"github.com/ZanzyTHEbar/questforge/qforge/content"
)

// Failure records which stage exhausted its retries and why.
type Failure struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// Patch is a partial session update. Zero-value fields are left untouched;
// artifacts merge into the existing map and turns append to the log. Status
// changes go through TransitionStatus, not Patch.
type Patch struct {
	Artifacts    map[content.Kind]json.RawMessage
	AppendTurns  []Turn
	SetFailure   *Failure
	ClearFailure bool
	Touch        bool
}

// IsZero reports whether applying p would change nothing.
func (p Patch) IsZero() bool {
	return len(p.Artifacts) == 0 &&
		len(p.AppendTurns) == 0 &&
		p.SetFailure == nil &&
		!p.ClearFailure &&
		!p.Touch
}

// apply mutates s in place and bumps its version. Drivers call this on a
// private copy under whatever concurrency control they use.
func (p Patch) apply(s *Session, now time.Time) {
	if len(p.Artifacts) > 0 {
		if s.Artifacts == nil {
			s.Artifacts = make(map[content.Kind]json.RawMessage, len(p.Artifacts))
		}
		for kind, raw := range p.Artifacts {
			s.Artifacts[kind] = append(json.RawMessage(nil), raw...)
		}
	}
	if len(p.AppendTurns) > 0 {
		s.Log = append(s.Log, p.AppendTurns...)
	}
	if p.SetFailure != nil {
		s.FailureStage = p.SetFailure.Stage
		s.FailureReason = p.SetFailure.Reason
	}
	if p.ClearFailure {
		s.FailureStage = ""
		s.FailureReason = ""
	}
	s.LastActivity = now
	s.Version++
}
