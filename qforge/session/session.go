// Package session defines the game session aggregate and its persistence
// contract. A session carries the player preferences, every generated
// artifact, the conversation log, and a status that tracks setup progress.
//
// Stores are swappable behind the Store interface: in-memory for tests,
// redis for shared ephemeral state, libsql for embedded durability, and
// supabase for hosted deployments.
package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/questforge/qforge/content"
)

// Status is the lifecycle state of a session. Setup walks the generating
// chain in order; active sessions accept player turns until completed.
type Status string

const (
	StatusInitializing        Status = "initializing"
	StatusGeneratingWorld     Status = "generating_world"
	StatusGeneratingCharacter Status = "generating_character"
	StatusGeneratingNPCs      Status = "generating_npcs"
	StatusGeneratingQuests    Status = "generating_quests"
	StatusGeneratingItems     Status = "generating_items"
	StatusFinalizing          Status = "finalizing"
	StatusActive              Status = "active"
	StatusCompleted           Status = "completed"
	StatusFailed              Status = "failed"
)

// statusOrder positions the forward chain. Failed sits outside the chain and
// is handled explicitly in CanTransition.
var statusOrder = map[Status]int{
	StatusInitializing:        0,
	StatusGeneratingWorld:     1,
	StatusGeneratingCharacter: 2,
	StatusGeneratingNPCs:      3,
	StatusGeneratingQuests:    4,
	StatusGeneratingItems:     5,
	StatusFinalizing:          6,
	StatusActive:              7,
	StatusCompleted:           8,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := statusOrder[s]
	return ok
}

// Terminal reports whether the session can never change status again.
// Failed is not terminal: a retry moves the session back into the chain.
func (s Status) Terminal() bool { return s == StatusCompleted }

// Generating reports whether s is one of the setup states between
// initializing and active.
func (s Status) Generating() bool {
	ord, ok := statusOrder[s]
	return ok && ord >= statusOrder[StatusGeneratingWorld] && ord <= statusOrder[StatusFinalizing]
}

// Before reports whether s comes earlier than other on the forward chain.
// Statuses outside the chain are never ordered.
func (s Status) Before(other Status) bool {
	a, aok := statusOrder[s]
	b, bok := statusOrder[other]
	return aok && bok && a < b
}

func (s Status) String() string { return string(s) }

// CanTransition reports whether moving from one status to another is legal.
// The chain only moves forward; any non-completed session may fail; a failed
// session may re-enter the chain anywhere past initializing.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	if from == StatusCompleted {
		return false
	}
	if to == StatusFailed {
		return true
	}
	if to == StatusCompleted {
		return from == StatusActive
	}
	if from == StatusFailed {
		return to != StatusInitializing
	}
	return statusOrder[to] > statusOrder[from]
}

// Conversation log roles. Player input is recorded as user and in-fiction
// narration as character; assistant is model output speaking out of fiction,
// system is engine notes. The turn windower maps these onto provider roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleCharacter = "character"
)

// Turn is one entry in the session conversation log.
type Turn struct {
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Session is the persisted aggregate for one game. Artifacts are keyed by
// content kind and are written once each during setup; the log grows for the
// life of the session.
type Session struct {
	ID            string                           `json:"id"`
	Status        Status                           `json:"status"`
	Preferences   map[string]string                `json:"preferences,omitempty"`
	Artifacts     map[content.Kind]json.RawMessage `json:"artifacts,omitempty"`
	Log           []Turn                           `json:"log,omitempty"`
	FailureStage  string                           `json:"failure_stage,omitempty"`
	FailureReason string                           `json:"failure_reason,omitempty"`
	CreatedAt     time.Time                        `json:"created_at"`
	LastActivity  time.Time                        `json:"last_activity"`
	Version       int64                            `json:"version"`
}

// New returns a fresh initializing session with a generated ID. Preferences
// are copied; the caller keeps ownership of its map.
func New(prefs map[string]string) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:           uuid.New().String(),
		Status:       StatusInitializing,
		Artifacts:    make(map[content.Kind]json.RawMessage),
		CreatedAt:    now,
		LastActivity: now,
		Version:      1,
	}
	if len(prefs) > 0 {
		s.Preferences = make(map[string]string, len(prefs))
		for k, v := range prefs {
			s.Preferences[k] = v
		}
	}
	return s
}

// Artifact returns the payload for kind and whether it is present.
func (s *Session) Artifact(kind content.Kind) (json.RawMessage, bool) {
	raw, ok := s.Artifacts[kind]
	return raw, ok
}

// HasArtifact reports whether the artifact for kind has been generated.
func (s *Session) HasArtifact(kind content.Kind) bool {
	_, ok := s.Artifacts[kind]
	return ok
}

// Preference returns the named preference or fallback when unset.
func (s *Session) Preference(key, fallback string) string {
	if v, ok := s.Preferences[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Clone returns a deep copy. Stores hand out clones so callers can mutate
// freely without corrupting shared state.
func (s *Session) Clone() *Session {
	out := *s
	if s.Preferences != nil {
		out.Preferences = make(map[string]string, len(s.Preferences))
		for k, v := range s.Preferences {
			out.Preferences[k] = v
		}
	}
	if s.Artifacts != nil {
		out.Artifacts = make(map[content.Kind]json.RawMessage, len(s.Artifacts))
		for k, v := range s.Artifacts {
			out.Artifacts[k] = append(json.RawMessage(nil), v...)
		}
	}
	if s.Log != nil {
		out.Log = make([]Turn, len(s.Log))
		copy(out.Log, s.Log)
		for i := range out.Log {
			if meta := s.Log[i].Meta; meta != nil {
				out.Log[i].Meta = make(map[string]string, len(meta))
				for k, v := range meta {
					out.Log[i].Meta[k] = v
				}
			}
		}
	}
	return &out
}
