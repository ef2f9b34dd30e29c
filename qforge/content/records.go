package content

import (
	"encoding/json"
	"fmt"
)

// Attribute bounds for generated characters. Values outside this range are
// rejected by the character schema.
const (
	AttributeMin = 8
	AttributeMax = 18
)

// World is the setting artifact: name, tone, and the locations and factions
// later stages draw on.
type World struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Tone        string     `json:"tone,omitempty"`
	Hook        string     `json:"hook,omitempty"`
	Locations   []Location `json:"locations"`
	Factions    []Faction  `json:"factions,omitempty"`
}

// Location is a named place inside a generated world.
type Location struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Faction is an organized group with an agenda inside a generated world.
type Faction struct {
	Name   string `json:"name"`
	Agenda string `json:"agenda"`
}

// Attributes holds the six core character scores. Each score is constrained
// to [AttributeMin, AttributeMax].
type Attributes struct {
	Strength     int `json:"strength"`
	Dexterity    int `json:"dexterity"`
	Constitution int `json:"constitution"`
	Intelligence int `json:"intelligence"`
	Wisdom       int `json:"wisdom"`
	Charisma     int `json:"charisma"`
}

// Character is the player character artifact.
type Character struct {
	Name       string     `json:"name"`
	Class      string     `json:"class"`
	Background string     `json:"background"`
	Attributes Attributes `json:"attributes"`
	Skills     []string   `json:"skills"`
	Equipment  []string   `json:"equipment,omitempty"`
}

// NPC is a single non-player character. Major NPCs carry a motivation;
// generic ones may omit most fields beyond name and role.
type NPC struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	Location    string `json:"location,omitempty"`
	Disposition string `json:"disposition,omitempty"`
	Description string `json:"description,omitempty"`
	Motivation  string `json:"motivation,omitempty"`
}

// NPCSet is the payload shape shared by the three NPC artifact kinds.
type NPCSet struct {
	NPCs []NPC `json:"npcs"`
}

// Quest is a single quest with its objectives.
type Quest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Giver       string   `json:"giver,omitempty"`
	Objectives  []string `json:"objectives"`
	Reward      string   `json:"reward,omitempty"`
}

// QuestSet is the payload shape shared by the quest artifact kinds. The main
// quest set carries exactly one quest; side quest sets carry one or more.
type QuestSet struct {
	Quests []Quest `json:"quests"`
}

// Item is a single piece of equipment or loot.
type Item struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description"`
	Rarity      string `json:"rarity,omitempty"`
	Location    string `json:"location,omitempty"`
}

// ItemSet is the payload shape shared by the item artifact kinds.
type ItemSet struct {
	Items []Item `json:"items"`
}

// Introduction is the narrative opening presented to the player. It becomes
// the first entry of the session conversation log.
type Introduction struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// DecodeWorld unmarshals a validated world payload.
func DecodeWorld(raw json.RawMessage) (World, error) {
	var w World
	if err := json.Unmarshal(raw, &w); err != nil {
		return World{}, fmt.Errorf("decode world: %w", err)
	}
	return w, nil
}

// DecodeCharacter unmarshals a validated character payload.
func DecodeCharacter(raw json.RawMessage) (Character, error) {
	var c Character
	if err := json.Unmarshal(raw, &c); err != nil {
		return Character{}, fmt.Errorf("decode character: %w", err)
	}
	return c, nil
}

// DecodeNPCSet unmarshals a validated NPC payload.
func DecodeNPCSet(raw json.RawMessage) (NPCSet, error) {
	var s NPCSet
	if err := json.Unmarshal(raw, &s); err != nil {
		return NPCSet{}, fmt.Errorf("decode npc set: %w", err)
	}
	return s, nil
}

// DecodeQuestSet unmarshals a validated quest payload.
func DecodeQuestSet(raw json.RawMessage) (QuestSet, error) {
	var s QuestSet
	if err := json.Unmarshal(raw, &s); err != nil {
		return QuestSet{}, fmt.Errorf("decode quest set: %w", err)
	}
	return s, nil
}

// DecodeItemSet unmarshals a validated item payload.
func DecodeItemSet(raw json.RawMessage) (ItemSet, error) {
	var s ItemSet
	if err := json.Unmarshal(raw, &s); err != nil {
		return ItemSet{}, fmt.Errorf("decode item set: %w", err)
	}
	return s, nil
}

// DecodeIntroduction unmarshals a validated introduction payload.
func DecodeIntroduction(raw json.RawMessage) (Introduction, error) {
	var in Introduction
	if err := json.Unmarshal(raw, &in); err != nil {
		return Introduction{}, fmt.Errorf("decode introduction: %w", err)
	}
	return in, nil
}
