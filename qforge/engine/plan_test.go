package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/questforge/qforge/content"
	"github.com/ZanzyTHEbar/questforge/qforge/session"
)

// TestPlan_CoversEveryKindOnce checks that each artifact kind is produced
// by exactly one stage.
func TestPlan_CoversEveryKindOnce(t *testing.T) {
	plan := buildPlan()

	produced := make(map[content.Kind]string)
	total := 0
	for _, grp := range plan {
		for _, st := range grp.stages {
			total++
			prev, dup := produced[st.Kind]
			require.False(t, dup, "kind %s produced by both %s and %s", st.Kind, prev, st.Name)
			produced[st.Kind] = st.Name
		}
	}

	assert.Equal(t, len(content.AllKinds()), total)
	for _, kind := range content.AllKinds() {
		assert.Contains(t, produced, kind)
	}
}

// TestPlan_DependenciesPointBackward checks that no stage consumes a kind
// produced by a later group, which would deadlock the wave scheduler.
func TestPlan_DependenciesPointBackward(t *testing.T) {
	plan := buildPlan()

	groupOf := make(map[content.Kind]int)
	for i, grp := range plan {
		for _, st := range grp.stages {
			groupOf[st.Kind] = i
		}
	}

	for i, grp := range plan {
		for _, st := range grp.stages {
			for _, dep := range st.Consumes {
				producer, known := groupOf[dep]
				require.True(t, known, "stage %s consumes unproduced kind %s", st.Name, dep)
				assert.LessOrEqual(t, producer, i,
					"stage %s consumes %s from a later group", st.Name, dep)
				assert.NotEqual(t, st.Kind, dep, "stage %s consumes itself", st.Name)
			}
		}
	}
}

// TestPlan_GroupStatusesWalkTheChain checks each group carries the status
// the session shows while that group runs.
func TestPlan_GroupStatusesWalkTheChain(t *testing.T) {
	plan := buildPlan()

	var statuses []session.Status
	for _, grp := range plan {
		statuses = append(statuses, grp.status)
	}
	assert.Equal(t, []session.Status{
		session.StatusGeneratingWorld,
		session.StatusGeneratingCharacter,
		session.StatusGeneratingNPCs,
		session.StatusGeneratingQuests,
		session.StatusGeneratingItems,
		session.StatusFinalizing,
	}, statuses)
}

// TestStage_Ready checks readiness against present artifacts.
func TestStage_Ready(t *testing.T) {
	plan := buildPlan()
	s := session.New(nil)

	// With nothing generated only the world stage is ready.
	for _, grp := range plan {
		for _, st := range grp.stages {
			if st.Name == "World" {
				assert.True(t, st.Ready(s))
			} else {
				assert.False(t, st.Ready(s), "stage %s ready without inputs", st.Name)
			}
		}
	}

	// A produced kind is never regenerated even when its inputs are there.
	s.Artifacts[content.KindWorld] = []byte(`{}`)
	for _, grp := range plan {
		for _, st := range grp.stages {
			if st.Name == "World" {
				assert.False(t, st.Ready(s), "stage with artifact present must not be ready")
			}
		}
	}
}
