package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/questforge/qforge/content"
	"github.com/ZanzyTHEbar/questforge/qforge/session"
)

// payloadRules is appended to every setup prompt. Providers drift toward
// prose and fences; the parser tolerates some of that, but asking first is
// cheaper than repairing.
const payloadRules = "Respond with a single JSON object and nothing else: no prose around it, no markdown fences, no comments, no trailing commas."

// withFeedback folds the previous attempt's failure into the prompt.
func withFeedback(prompt string, req PromptRequest) string {
	if req.Feedback == "" {
		return prompt
	}
	return prompt + "\n\n" + req.Feedback
}

// retryFeedback phrases a failed attempt as an instruction for the next
// one: malformed output earns a stricter format reminder, invalid output
// gets its violations quoted back.
func retryFeedback(err error) string {
	var verr *content.ValidationError
	if errors.As(err, &verr) {
		return fmt.Sprintf(
			"Your previous reply violated these rules: %s. Return a corrected JSON object that fixes every violation.",
			strings.Join(verr.Violations, "; "))
	}
	if errors.Is(err, content.ErrMalformed) {
		return "Your previous reply was not a valid JSON object. Respond with only the JSON object itself: no explanations, no markdown fences, no trailing commas."
	}
	return ""
}

func worldPrompt(req PromptRequest) (string, error) {
	s := req.Session
	theme := s.Preference("theme", "classic fantasy")
	difficulty := s.Preference("difficulty", "balanced")

	var b strings.Builder
	fmt.Fprintf(&b, "Design the world for a new %s adventure with %s difficulty.\n\n", theme, difficulty)
	b.WriteString("Invent a setting with a memorable name, a short description, an overall tone, a hook that pulls the player in, three to five named locations, and one or two factions with agendas.\n\n")
	b.WriteString(`Use this JSON shape:
{"name": "...", "description": "...", "tone": "...", "hook": "...", "locations": [{"name": "...", "description": "..."}], "factions": [{"name": "...", "agenda": "..."}]}`)
	b.WriteString("\n\n")
	b.WriteString(payloadRules)
	return withFeedback(b.String(), req), nil
}

func characterPrompt(req PromptRequest) (string, error) {
	world, err := requireWorld(req.Session)
	if err != nil {
		return "", err
	}
	theme := req.Session.Preference("theme", "classic fantasy")

	var b strings.Builder
	fmt.Fprintf(&b, "Create the player character for a %s adventure set in %s.\n\n", theme, world.Name)
	fmt.Fprintf(&b, "World summary: %s\n\n", world.Description)
	b.WriteString("Give the character a name, a class, a background tied to the world, at least two skills, and a little flavor equipment. ")
	b.WriteString("Attributes are integers from 8 to 18 for exactly these six: strength, dexterity, constitution, intelligence, wisdom, charisma.\n\n")
	b.WriteString(`Use this JSON shape:
{"name": "...", "class": "...", "background": "...", "attributes": {"strength": 10, "dexterity": 10, "constitution": 10, "intelligence": 10, "wisdom": 10, "charisma": 10}, "skills": ["..."], "equipment": ["..."]}`)
	b.WriteString("\n\n")
	b.WriteString(payloadRules)
	return withFeedback(b.String(), req), nil
}

func majorNPCPrompt(req PromptRequest) (string, error) {
	world, err := requireWorld(req.Session)
	if err != nil {
		return "", err
	}
	character, err := requireCharacter(req.Session)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Cast the major characters for an adventure in %s, where the player is %s, a %s.\n\n",
		world.Name, character.Name, character.Class)
	fmt.Fprintf(&b, "World summary: %s\n\n", world.Description)
	b.WriteString("Create three to five major NPCs central to the story. Every one of them needs a name, a role, a description, and a motivation; location and disposition toward the player are welcome.\n\n")
	b.WriteString(`Use this JSON shape:
{"npcs": [{"name": "...", "role": "...", "location": "...", "disposition": "...", "description": "...", "motivation": "..."}]}`)
	b.WriteString("\n\n")
	b.WriteString(payloadRules)
	return withFeedback(b.String(), req), nil
}

func secondaryNPCPrompt(req PromptRequest) (string, error) {
	world, err := requireWorld(req.Session)
	if err != nil {
		return "", err
	}
	majors, err := requireNPCSet(req.Session, content.KindMajorNPCs, "major NPCs")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Cast the supporting characters for an adventure in %s.\n\n", world.Name)
	fmt.Fprintf(&b, "Already cast, do not reuse or rename: %s.\n\n", strings.Join(npcNames(majors), ", "))
	b.WriteString("Create four to six secondary NPCs: merchants, rivals, allies, informants. Each needs a name and a role; descriptions and locations make them easier to bring on stage.\n\n")
	b.WriteString(`Use this JSON shape:
{"npcs": [{"name": "...", "role": "...", "location": "...", "disposition": "...", "description": "..."}]}`)
	b.WriteString("\n\n")
	b.WriteString(payloadRules)
	return withFeedback(b.String(), req), nil
}

func genericNPCPrompt(req PromptRequest) (string, error) {
	world, err := requireWorld(req.Session)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Populate %s with background figures.\n\n", world.Name)
	fmt.Fprintf(&b, "Known locations: %s.\n\n", strings.Join(locationNames(world), ", "))
	b.WriteString("Create four to eight generic NPCs the player might pass in the street: guards, farmers, dock workers, beggars. A name and a role suffice; tie them to locations where it helps.\n\n")
	b.WriteString(`Use this JSON shape:
{"npcs": [{"name": "...", "role": "...", "location": "..."}]}`)
	b.WriteString("\n\n")
	b.WriteString(payloadRules)
	return withFeedback(b.String(), req), nil
}

func mainQuestPrompt(req PromptRequest) (string, error) {
	world, err := requireWorld(req.Session)
	if err != nil {
		return "", err
	}
	character, err := requireCharacter(req.Session)
	if err != nil {
		return "", err
	}
	majors, err := requireNPCSet(req.Session, content.KindMajorNPCs, "major NPCs")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write the main quest for %s, a %s, in the world of %s.\n\n", character.Name, character.Class, world.Name)
	fmt.Fprintf(&b, "Hook: %s\n", world.Hook)
	fmt.Fprintf(&b, "Major NPCs available as quest givers or antagonists: %s.\n\n", strings.Join(npcNames(majors), ", "))
	b.WriteString("Create exactly one quest: a title, a description, a giver drawn from the major NPCs, three to five concrete objectives, and a reward.\n\n")
	b.WriteString(`Use this JSON shape:
{"quests": [{"title": "...", "description": "...", "giver": "...", "objectives": ["..."], "reward": "..."}]}`)
	b.WriteString("\n\n")
	b.WriteString(payloadRules)
	return withFeedback(b.String(), req), nil
}

func sideQuestPrompt(req PromptRequest) (string, error) {
	world, err := requireWorld(req.Session)
	if err != nil {
		return "", err
	}
	main, err := requireQuestSet(req.Session, content.KindMainQuest, "main quest")
	if err != nil {
		return "", err
	}
	secondaries, err := requireNPCSet(req.Session, content.KindSecondaryNPCs, "secondary NPCs")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write side quests for the world of %s.\n\n", world.Name)
	if len(main.Quests) > 0 {
		fmt.Fprintf(&b, "The main quest is %q: %s\n\n", main.Quests[0].Title, main.Quests[0].Description)
	}
	fmt.Fprintf(&b, "Supporting cast available as givers: %s.\n\n", strings.Join(npcNames(secondaries), ", "))
	b.WriteString("Create two to four side quests that do not overlap the main quest. Each needs a title, a description, and one to three objectives; givers and rewards are welcome.\n\n")
	b.WriteString(`Use this JSON shape:
{"quests": [{"title": "...", "description": "...", "giver": "...", "objectives": ["..."], "reward": "..."}]}`)
	b.WriteString("\n\n")
	b.WriteString(payloadRules)
	return withFeedback(b.String(), req), nil
}

func startingItemsPrompt(req PromptRequest) (string, error) {
	character, err := requireCharacter(req.Session)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Outfit %s, a %s, for the road.\n\n", character.Name, character.Class)
	if len(character.Equipment) > 0 {
		fmt.Fprintf(&b, "Flavor equipment already mentioned in their background: %s.\n\n", strings.Join(character.Equipment, ", "))
	}
	b.WriteString("Create the starting inventory: three to five items fitting the class, each with a name and a description. Keep the power level modest.\n\n")
	b.WriteString(`Use this JSON shape:
{"items": [{"name": "...", "type": "...", "description": "...", "rarity": "..."}]}`)
	b.WriteString("\n\n")
	b.WriteString(payloadRules)
	return withFeedback(b.String(), req), nil
}

func worldItemsPrompt(req PromptRequest) (string, error) {
	world, err := requireWorld(req.Session)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Seed the world of %s with discoverable items.\n\n", world.Name)
	fmt.Fprintf(&b, "Known locations: %s.\n\n", strings.Join(locationNames(world), ", "))
	b.WriteString("Create three to six notable items hidden in the world, each tied to one of the locations: relics, tools, keepsakes, curiosities. Each needs a name, a description, and a location.\n\n")
	b.WriteString(`Use this JSON shape:
{"items": [{"name": "...", "type": "...", "description": "...", "rarity": "...", "location": "..."}]}`)
	b.WriteString("\n\n")
	b.WriteString(payloadRules)
	return withFeedback(b.String(), req), nil
}

func introductionPrompt(req PromptRequest) (string, error) {
	world, err := requireWorld(req.Session)
	if err != nil {
		return "", err
	}
	character, err := requireCharacter(req.Session)
	if err != nil {
		return "", err
	}
	majors, err := requireNPCSet(req.Session, content.KindMajorNPCs, "major NPCs")
	if err != nil {
		return "", err
	}
	main, err := requireQuestSet(req.Session, content.KindMainQuest, "main quest")
	if err != nil {
		return "", err
	}
	carried, err := requireItemSet(req.Session, content.KindPlayerItems, "starting items")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Write the opening narration of the adventure.\n\n")
	fmt.Fprintf(&b, "World: %s. Tone: %s.\n", world.Name, world.Tone)
	fmt.Fprintf(&b, "The player is %s, a %s. Background: %s\n", character.Name, character.Class, character.Background)
	fmt.Fprintf(&b, "Figures who may appear or be spoken of: %s.\n", strings.Join(npcNames(majors), ", "))
	if len(carried.Items) > 0 {
		fmt.Fprintf(&b, "They set out carrying: %s.\n", strings.Join(itemNames(carried), ", "))
	}
	if len(main.Quests) > 0 {
		fmt.Fprintf(&b, "Their story leads toward %q, but do not spell the quest out; hint at it.\n", main.Quests[0].Title)
	}
	b.WriteString("\nNarrate in second person, 150 to 250 words, ending at a moment where the player can act.\n\n")
	b.WriteString(`Use this JSON shape:
{"title": "...", "text": "..."}`)
	b.WriteString("\n\n")
	b.WriteString(payloadRules)
	return withFeedback(b.String(), req), nil
}

// NarrativePrompt builds the provider prompt for one player turn in an
// active session. Unlike the setup prompts this asks for plain narration,
// not JSON; recent log turns travel separately as history.
func NarrativePrompt(s *session.Session, input string) (string, error) {
	world, err := requireWorld(s)
	if err != nil {
		return "", err
	}
	character, err := requireCharacter(s)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are the narrator of an adventure in %s. Keep the tone %s.\n", world.Name, world.Tone)
	fmt.Fprintf(&b, "The player is %s, a %s.\n", character.Name, character.Class)
	if main, err := requireQuestSet(s, content.KindMainQuest, "main quest"); err == nil && len(main.Quests) > 0 {
		fmt.Fprintf(&b, "Their main quest is %q.\n", main.Quests[0].Title)
	}
	fmt.Fprintf(&b, "\nThe player says: %q\n\n", input)
	b.WriteString("Narrate what happens next in second person, under 200 words, consistent with everything established so far. End at a point where the player can act again. Respond with plain text, not JSON.")
	return b.String(), nil
}

func requireWorld(s *session.Session) (content.World, error) {
	raw, ok := s.Artifact(content.KindWorld)
	if !ok {
		return content.World{}, fmt.Errorf("%w: world", ErrDependencyMissing)
	}
	world, err := content.DecodeWorld(raw)
	if err != nil {
		return content.World{}, fmt.Errorf("%w: world artifact undecodable: %v", ErrDependencyMissing, err)
	}
	return world, nil
}

func requireCharacter(s *session.Session) (content.Character, error) {
	raw, ok := s.Artifact(content.KindCharacter)
	if !ok {
		return content.Character{}, fmt.Errorf("%w: character", ErrDependencyMissing)
	}
	character, err := content.DecodeCharacter(raw)
	if err != nil {
		return content.Character{}, fmt.Errorf("%w: character artifact undecodable: %v", ErrDependencyMissing, err)
	}
	return character, nil
}

func requireNPCSet(s *session.Session, kind content.Kind, label string) (content.NPCSet, error) {
	raw, ok := s.Artifact(kind)
	if !ok {
		return content.NPCSet{}, fmt.Errorf("%w: %s", ErrDependencyMissing, label)
	}
	set, err := content.DecodeNPCSet(raw)
	if err != nil {
		return content.NPCSet{}, fmt.Errorf("%w: %s artifact undecodable: %v", ErrDependencyMissing, label, err)
	}
	return set, nil
}

func requireQuestSet(s *session.Session, kind content.Kind, label string) (content.QuestSet, error) {
	raw, ok := s.Artifact(kind)
	if !ok {
		return content.QuestSet{}, fmt.Errorf("%w: %s", ErrDependencyMissing, label)
	}
	set, err := content.DecodeQuestSet(raw)
	if err != nil {
		return content.QuestSet{}, fmt.Errorf("%w: %s artifact undecodable: %v", ErrDependencyMissing, label, err)
	}
	return set, nil
}

func requireItemSet(s *session.Session, kind content.Kind, label string) (content.ItemSet, error) {
	raw, ok := s.Artifact(kind)
	if !ok {
		return content.ItemSet{}, fmt.Errorf("%w: %s", ErrDependencyMissing, label)
	}
	set, err := content.DecodeItemSet(raw)
	if err != nil {
		return content.ItemSet{}, fmt.Errorf("%w: %s artifact undecodable: %v", ErrDependencyMissing, label, err)
	}
	return set, nil
}

func npcNames(set content.NPCSet) []string {
	names := make([]string, len(set.NPCs))
	for i, npc := range set.NPCs {
		names[i] = npc.Name
	}
	return names
}

func itemNames(set content.ItemSet) []string {
	names := make([]string, len(set.Items))
	for i, item := range set.Items {
		names[i] = item.Name
	}
	return names
}

func locationNames(world content.World) []string {
	names := make([]string, len(world.Locations))
	for i, loc := range world.Locations {
		names[i] = loc.Name
	}
	return names
}
