package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/questforge/qforge/content"
	"github.com/ZanzyTHEbar/questforge/qforge/session"
)

// seededSession returns a session holding every canned artifact.
func seededSession() *session.Session {
	s := session.New(map[string]string{"theme": "grim fantasy"})
	for kind, payload := range map[content.Kind]string{
		content.KindWorld:         worldPayload,
		content.KindCharacter:     characterPayload,
		content.KindMajorNPCs:     majorNPCPayload,
		content.KindSecondaryNPCs: secondaryPayload,
		content.KindGenericNPCs:   genericPayload,
		content.KindMainQuest:     mainQuestPayload,
		content.KindSideQuests:    sideQuestPayload,
		content.KindPlayerItems:   startingPayload,
		content.KindWorldItems:    worldItemPayload,
		content.KindIntroduction:  introPayload,
	} {
		s.Artifacts[kind] = json.RawMessage(payload)
	}
	return s
}

// TestPromptBuilders_BuildWithFullInputs checks every stage prompt builds
// once its inputs exist and carries the payload formatting rules.
func TestPromptBuilders_BuildWithFullInputs(t *testing.T) {
	s := seededSession()
	for _, grp := range buildPlan() {
		for _, st := range grp.stages {
			prompt, err := st.Prompt(PromptRequest{Session: s, Attempt: 1})
			require.NoError(t, err, "stage %s", st.Name)
			assert.Contains(t, prompt, "single JSON object", "stage %s", st.Name)
		}
	}
}

// TestPromptBuilders_FailWithoutInputs checks prompts refuse to build when
// a consumed artifact is missing.
func TestPromptBuilders_FailWithoutInputs(t *testing.T) {
	empty := session.New(nil)
	for _, grp := range buildPlan() {
		for _, st := range grp.stages {
			if len(st.Consumes) == 0 {
				continue
			}
			_, err := st.Prompt(PromptRequest{Session: empty, Attempt: 1})
			assert.ErrorIs(t, err, ErrDependencyMissing, "stage %s", st.Name)
		}
	}
}

// TestRetryFeedback_Phrasing checks each failure class produces the right
// correction instruction.
func TestRetryFeedback_Phrasing(t *testing.T) {
	verr := &content.ValidationError{
		Kind:       content.KindCharacter,
		Violations: []string{"attributes.strength: Must be less than or equal to 18"},
	}
	feedback := retryFeedback(fmt.Errorf("validate: %w", verr))
	assert.Contains(t, feedback, "violated these rules")
	assert.Contains(t, feedback, "strength")

	feedback = retryFeedback(fmt.Errorf("extract: %w", content.ErrMalformed))
	assert.Contains(t, feedback, "valid JSON object")

	assert.Empty(t, retryFeedback(errors.New("unrelated")))
}

// TestWithFeedback_AppendsOnlyWhenPresent tests feedback folding.
func TestWithFeedback_AppendsOnlyWhenPresent(t *testing.T) {
	base := "do the thing"
	assert.Equal(t, base, withFeedback(base, PromptRequest{}))

	folded := withFeedback(base, PromptRequest{Feedback: "fix it"})
	assert.Contains(t, folded, base)
	assert.Contains(t, folded, "fix it")
}

// TestNarrativePrompt_CarriesEstablishedFacts checks a turn prompt anchors
// the narration in the generated world, character and quest.
func TestNarrativePrompt_CarriesEstablishedFacts(t *testing.T) {
	s := seededSession()

	prompt, err := NarrativePrompt(s, "I approach the gate")
	require.NoError(t, err)
	assert.Contains(t, prompt, "Emberfall")
	assert.Contains(t, prompt, "Mara Voss")
	assert.Contains(t, prompt, "The Second Ember")
	assert.Contains(t, prompt, "I approach the gate")
	assert.Contains(t, prompt, "plain text")
}

// TestNarrativePrompt_RequiresSetupArtifacts checks a turn cannot be
// narrated before the world exists.
func TestNarrativePrompt_RequiresSetupArtifacts(t *testing.T) {
	_, err := NarrativePrompt(session.New(nil), "hello")
	assert.ErrorIs(t, err, ErrDependencyMissing)
}
