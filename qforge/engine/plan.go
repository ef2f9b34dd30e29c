package engine

import (
	"github.com/ZanzyTHEbar/questforge/qforge/content"
	"github.com/ZanzyTHEbar/questforge/qforge/session"
)

// group pairs one status of the generating chain with the stages that run
// under it. Stages inside a group may run concurrently once their inputs
// exist; the chain status only advances when the whole group is done.
type group struct {
	status session.Status
	stages []*Stage
}

// buildPlan wires the ten setup stages into their chain groups. Dependency
// edges are expressed through Consumes; the scheduler works them out in
// waves rather than hard-coding an order inside a group.
func buildPlan() []group {
	world := &Stage{
		Name:   "World",
		Kind:   content.KindWorld,
		Prompt: worldPrompt,
	}
	character := &Stage{
		Name:     "Character",
		Kind:     content.KindCharacter,
		Consumes: []content.Kind{content.KindWorld},
		Prompt:   characterPrompt,
	}
	majorNPCs := &Stage{
		Name:     "MajorNPCs",
		Kind:     content.KindMajorNPCs,
		Consumes: []content.Kind{content.KindWorld, content.KindCharacter},
		Prompt:   majorNPCPrompt,
	}
	secondaryNPCs := &Stage{
		Name:     "SecondaryNPCs",
		Kind:     content.KindSecondaryNPCs,
		Consumes: []content.Kind{content.KindWorld, content.KindMajorNPCs},
		Prompt:   secondaryNPCPrompt,
	}
	genericNPCs := &Stage{
		Name:     "GenericNPCs",
		Kind:     content.KindGenericNPCs,
		Consumes: []content.Kind{content.KindWorld},
		Prompt:   genericNPCPrompt,
	}
	mainQuest := &Stage{
		Name:     "MainQuest",
		Kind:     content.KindMainQuest,
		Consumes: []content.Kind{content.KindWorld, content.KindCharacter, content.KindMajorNPCs},
		Prompt:   mainQuestPrompt,
	}
	sideQuests := &Stage{
		Name:     "SideQuests",
		Kind:     content.KindSideQuests,
		Consumes: []content.Kind{content.KindWorld, content.KindSecondaryNPCs, content.KindMainQuest},
		Prompt:   sideQuestPrompt,
	}
	startingItems := &Stage{
		Name:     "StartingItems",
		Kind:     content.KindPlayerItems,
		Consumes: []content.Kind{content.KindCharacter},
		Prompt:   startingItemsPrompt,
	}
	worldItems := &Stage{
		Name:     "WorldItems",
		Kind:     content.KindWorldItems,
		Consumes: []content.Kind{content.KindWorld},
		Prompt:   worldItemsPrompt,
	}
	introduction := &Stage{
		Name:     "Introduction",
		Kind:     content.KindIntroduction,
		Consumes: []content.Kind{content.KindWorld, content.KindCharacter, content.KindMajorNPCs, content.KindMainQuest, content.KindPlayerItems},
		Prompt:   introductionPrompt,
	}

	return []group{
		{session.StatusGeneratingWorld, []*Stage{world}},
		{session.StatusGeneratingCharacter, []*Stage{character}},
		{session.StatusGeneratingNPCs, []*Stage{majorNPCs, secondaryNPCs, genericNPCs}},
		{session.StatusGeneratingQuests, []*Stage{mainQuest, sideQuests}},
		{session.StatusGeneratingItems, []*Stage{startingItems, worldItems}},
		{session.StatusFinalizing, []*Stage{introduction}},
	}
}

// pendingStages returns the stages in grp whose artifact is still missing.
func pendingStages(grp group, s *session.Session) []*Stage {
	var pending []*Stage
	for _, st := range grp.stages {
		if !s.HasArtifact(st.Kind) {
			pending = append(pending, st)
		}
	}
	return pending
}

func stageNames(stages []*Stage) []string {
	names := make([]string, len(stages))
	for i, st := range stages {
		names[i] = st.Name
	}
	return names
}
