package services

import (
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/ophion/companion/internal/domain/entities"
)

func str() jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.String}
}

func enum[T ~string](values ...T) jsonschema.Definition {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return jsonschema.Definition{Type: jsonschema.String, Enum: out}
}

func object(props map[string]jsonschema.Definition) jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.Object, Properties: props}
}

func arrayOf(item jsonschema.Definition) jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.Array, Items: &item}
}

func taskDraftSchema() jsonschema.Definition {
	return object(map[string]jsonschema.Definition{
		"title":    str(),
		"category": enum(entities.Categories...),
		"priority": enum(entities.PriorityHigh, entities.PriorityMedium, entities.PriorityLow),
		"dueDate":  str(),
	})
}

var (
	taskListSchema = arrayOf(taskDraftSchema())

	dailyPlanSchema = object(map[string]jsonschema.Definition{
		"tasks":            arrayOf(taskDraftSchema()),
		"motivationalNote": str(),
	})

	noteAnalysisSchema = object(map[string]jsonschema.Definition{
		"suggestedTask": {Type: jsonschema.String, Description: "Task title if actionable, else null"},
		"summary":       {Type: jsonschema.String, Description: "Short summary"},
	})

	noteInsightSchema = object(map[string]jsonschema.Definition{
		"priority":       enum(entities.PriorityHigh, entities.PriorityMedium, entities.PriorityLow),
		"suggestedColor": str(),
		"actionable":     {Type: jsonschema.Boolean},
	})

	rescheduleSchema = arrayOf(object(map[string]jsonschema.Definition{
		"taskId":             str(),
		"suggestedDay":       str(),
		"suggestedStartTime": str(),
	}))

	wrappedSchema = object(map[string]jsonschema.Definition{
		"identity":      object(map[string]jsonschema.Definition{"archetype": str(), "quote": str(), "description": str()}),
		"timeStats":     object(map[string]jsonschema.Definition{"peakHour": str(), "bestDay": str(), "comment": str()}),
		"categoryStats": object(map[string]jsonschema.Definition{"topCategory": str(), "completionRate": {Type: jsonschema.Number}, "comment": str()}),
		"streaks":       object(map[string]jsonschema.Definition{"longestStreak": {Type: jsonschema.Number}, "type": str(), "comment": str()}),
		"projectStats":  object(map[string]jsonschema.Definition{"highlightProject": str(), "role": str(), "comment": str()}),
		"growth":        arrayOf(str()),
		"achievements":  arrayOf(str()),
		"movie":         object(map[string]jsonschema.Definition{"title": str(), "genre": str(), "description": str()}),
		"predictions":   arrayOf(str()),
		"final":         object(map[string]jsonschema.Definition{"title": str(), "quote": str()}),
	})
)
