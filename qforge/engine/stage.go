package engine

import (
	"github.com/ZanzyTHEbar/questforge/qforge/content"
	"github.com/ZanzyTHEbar/questforge/qforge/session"
)

// PromptRequest carries what a stage prompt builder needs: the session with
// its artifacts so far, the attempt number, and feedback phrased from the
// previous failed attempt.
type PromptRequest struct {
	Session  *session.Session
	Attempt  int
	Feedback string
}

// PromptFunc builds the provider prompt for one stage attempt. It fails
// only when a consumed artifact is missing or undecodable.
type PromptFunc func(req PromptRequest) (string, error)

// Stage is one unit of the setup pipeline. It consumes previously generated
// artifact kinds and produces exactly one.
type Stage struct {
	Name     string
	Kind     content.Kind
	Consumes []content.Kind
	Prompt   PromptFunc
}

// Ready reports whether the stage can run now: every consumed artifact
// present, the produced one still absent.
func (st *Stage) Ready(s *session.Session) bool {
	if s.HasArtifact(st.Kind) {
		return false
	}
	for _, dep := range st.Consumes {
		if !s.HasArtifact(dep) {
			return false
		}
	}
	return true
}
