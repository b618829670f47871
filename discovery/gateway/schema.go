package gateway

import "github.com/openai/openai-go/shared"

// Tool schemas force the model into fixed output shapes. Mirrors of these live
// in the contract types; keep them in sync.

const (
	quizBatchToolName  = "generate_quiz_batch"
	summaryToolName    = "generate_discovery_summary"
	steeringToolName   = "suggest_steering_prompts"
	overviewToolName   = "synthesize_engagement_overview"
	extractionToolName = "extract_engagement_context"
)

var quizBatchParams = shared.FunctionParameters{
	"type": "object",
	"properties": map[string]any{
		"questions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": `Unique identifier for this question (e.g., "q1_1", "q2_3")`,
					},
					"text": map[string]any{
						"type":        "string",
						"description": "The question text",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Optional clarifying context for the question",
					},
					"type": map[string]any{
						"type":        "string",
						"enum":        []string{"single", "multi"},
						"description": "single = radio buttons (pick one), multi = checkboxes (pick multiple)",
					},
					"options": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"id":    map[string]any{"type": "string"},
								"label": map[string]any{"type": "string"},
							},
							"required": []string{"id", "label"},
						},
						"minItems": 2,
						"maxItems": 6,
					},
					"allowNoneOfTheAbove": map[string]any{
						"type":        "boolean",
						"description": `Whether to show a "None of the above" option`,
					},
				},
				"required": []string{"id", "text", "type", "options", "allowNoneOfTheAbove"},
			},
			"minItems": 2,
			"maxItems": 4,
		},
		"isComplete": map[string]any{
			"type":        "boolean",
			"description": "Set to true when you have gathered enough information (typically after 4-6 batches). When true, questions array can be empty.",
		},
		"progressHint": map[string]any{
			"type":        "string",
			"description": `A brief hint about progress, e.g., "About halfway through" or "Just a few more questions"`,
		},
		"batchNumber": map[string]any{
			"type":        "number",
			"description": "The current batch number (1-indexed)",
		},
	},
	"required": []string{"questions", "isComplete", "batchNumber"},
}

var summaryParams = shared.FunctionParameters{
	"type": "object",
	"properties": map[string]any{
		"summary": map[string]any{
			"type":        "string",
			"description": "A comprehensive discovery summary organized by themes. Include key findings, priorities, challenges, and recommendations.",
		},
		"keyThemes": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "The top 3-5 key themes identified from the discovery",
			"minItems":    3,
			"maxItems":    5,
		},
		"priorityLevel": map[string]any{
			"type":        "string",
			"enum":        []string{"low", "medium", "high", "critical"},
			"description": "Overall urgency/priority level based on stakeholder responses",
		},
	},
	"required": []string{"summary", "keyThemes", "priorityLevel"},
}

var steeringParams = shared.FunctionParameters{
	"type": "object",
	"properties": map[string]any{
		"suggestions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"label": map[string]any{
						"type":        "string",
						"description": "Short focus-area label, a few words",
					},
					"prompt": map[string]any{
						"type":        "string",
						"description": "One or two sentences steering the interview toward this focus area",
					},
				},
				"required": []string{"label", "prompt"},
			},
			"minItems": 3,
			"maxItems": 5,
		},
	},
	"required": []string{"suggestions"},
}

var overviewParams = shared.FunctionParameters{
	"type": "object",
	"properties": map[string]any{
		"overview": map[string]any{
			"type":        "string",
			"description": "Cross-stakeholder synthesis reporting consensus and divergence",
		},
	},
	"required": []string{"overview"},
}

var extractionParams = shared.FunctionParameters{
	"type": "object",
	"properties": map[string]any{
		"description": map[string]any{
			"type":        "string",
			"description": "One or two sentence engagement description",
		},
		"context": map[string]any{
			"type":        "string",
			"description": "Background context a discovery interviewer needs: goals, scope, constraints, systems, teams, pain points",
		},
		"documentSummaries": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "One-line summary per source document, in input order",
		},
	},
	"required": []string{"description", "context"},
}
