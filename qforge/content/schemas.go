package content

// JSON schemas for each artifact kind. Structural rules only: required
// fields, numeric ranges, and minimum counts. Narrative quality is the
// provider's problem, shape is ours.

const worldSchema = `{
  "type": "object",
  "required": ["name", "description", "locations"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string", "minLength": 1},
    "tone": {"type": "string"},
    "hook": {"type": "string"},
    "locations": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "description"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string", "minLength": 1}
        }
      }
    },
    "factions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "agenda": {"type": "string"}
        }
      }
    }
  }
}`

const characterSchema = `{
  "type": "object",
  "required": ["name", "class", "background", "attributes", "skills"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "class": {"type": "string", "minLength": 1},
    "background": {"type": "string", "minLength": 1},
    "attributes": {
      "type": "object",
      "required": ["strength", "dexterity", "constitution", "intelligence", "wisdom", "charisma"],
      "additionalProperties": false,
      "properties": {
        "strength": {"type": "integer", "minimum": 8, "maximum": 18},
        "dexterity": {"type": "integer", "minimum": 8, "maximum": 18},
        "constitution": {"type": "integer", "minimum": 8, "maximum": 18},
        "intelligence": {"type": "integer", "minimum": 8, "maximum": 18},
        "wisdom": {"type": "integer", "minimum": 8, "maximum": 18},
        "charisma": {"type": "integer", "minimum": 8, "maximum": 18}
      }
    },
    "skills": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "minLength": 1}
    },
    "equipment": {
      "type": "array",
      "items": {"type": "string"}
    }
  }
}`

const majorNPCSchema = `{
  "type": "object",
  "required": ["npcs"],
  "properties": {
    "npcs": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "role", "description", "motivation"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "role": {"type": "string", "minLength": 1},
          "location": {"type": "string"},
          "disposition": {"type": "string"},
          "description": {"type": "string", "minLength": 1},
          "motivation": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

const npcSetSchema = `{
  "type": "object",
  "required": ["npcs"],
  "properties": {
    "npcs": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "role"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "role": {"type": "string", "minLength": 1},
          "location": {"type": "string"},
          "disposition": {"type": "string"},
          "description": {"type": "string"},
          "motivation": {"type": "string"}
        }
      }
    }
  }
}`

const mainQuestSchema = `{
  "type": "object",
  "required": ["quests"],
  "properties": {
    "quests": {
      "type": "array",
      "minItems": 1,
      "maxItems": 1,
      "items": {
        "type": "object",
        "required": ["title", "description", "objectives"],
        "properties": {
          "title": {"type": "string", "minLength": 1},
          "description": {"type": "string", "minLength": 1},
          "giver": {"type": "string"},
          "objectives": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "string", "minLength": 1}
          },
          "reward": {"type": "string"}
        }
      }
    }
  }
}`

const sideQuestSchema = `{
  "type": "object",
  "required": ["quests"],
  "properties": {
    "quests": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["title", "description", "objectives"],
        "properties": {
          "title": {"type": "string", "minLength": 1},
          "description": {"type": "string", "minLength": 1},
          "giver": {"type": "string"},
          "objectives": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "string", "minLength": 1}
          },
          "reward": {"type": "string"}
        }
      }
    }
  }
}`

const itemSetSchema = `{
  "type": "object",
  "required": ["items"],
  "properties": {
    "items": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "description"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "type": {"type": "string"},
          "description": {"type": "string", "minLength": 1},
          "rarity": {"type": "string"},
          "location": {"type": "string"}
        }
      }
    }
  }
}`

const introductionSchema = `{
  "type": "object",
  "required": ["text"],
  "properties": {
    "title": {"type": "string"},
    "text": {"type": "string", "minLength": 1}
  }
}`

// schemaSources maps each artifact kind to its schema document.
var schemaSources = map[Kind]string{
	KindWorld:         worldSchema,
	KindCharacter:     characterSchema,
	KindMajorNPCs:     majorNPCSchema,
	KindSecondaryNPCs: npcSetSchema,
	KindGenericNPCs:   npcSetSchema,
	KindMainQuest:     mainQuestSchema,
	KindSideQuests:    sideQuestSchema,
	KindPlayerItems:   itemSetSchema,
	KindWorldItems:    itemSetSchema,
	KindIntroduction:  introductionSchema,
}
