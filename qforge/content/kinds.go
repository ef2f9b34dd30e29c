// Package content defines the generated artifact kinds, their payload
// shapes, and the parsing/validation pipeline that turns raw model output
// into validated session artifacts.
package content

// Kind identifies one generated artifact within a session. Each pipeline
// stage produces exactly one kind, keyed by these names in the session
// artifact map and in persisted documents.
type Kind string

const (
	KindWorld         Kind = "world"
	KindCharacter     Kind = "character"
	KindMajorNPCs     Kind = "npcs.major"
	KindSecondaryNPCs Kind = "npcs.secondary"
	KindGenericNPCs   Kind = "npcs.generic"
	KindMainQuest     Kind = "quests.main"
	KindSideQuests    Kind = "quests.side"
	KindPlayerItems   Kind = "items.player"
	KindWorldItems    Kind = "items.world"
	KindIntroduction  Kind = "introduction"
)

// AllKinds returns every artifact kind in canonical pipeline order.
func AllKinds() []Kind {
	return []Kind{
		KindWorld,
		KindCharacter,
		KindMajorNPCs,
		KindSecondaryNPCs,
		KindGenericNPCs,
		KindMainQuest,
		KindSideQuests,
		KindPlayerItems,
		KindWorldItems,
		KindIntroduction,
	}
}

// Valid reports whether k names a known artifact kind.
func (k Kind) Valid() bool {
	switch k {
	case KindWorld, KindCharacter,
		KindMajorNPCs, KindSecondaryNPCs, KindGenericNPCs,
		KindMainQuest, KindSideQuests,
		KindPlayerItems, KindWorldItems,
		KindIntroduction:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }
