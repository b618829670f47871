// Package gateway translates engine-level requests into structured-output
// model calls. All prompt text and provider request shapes stay behind this
// boundary; callers only see contract types or a typed failure.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog/log"

	contractx "github.com/brightline-consulting/discovery/discovery/contract"
	openrouterx "github.com/brightline-consulting/discovery/pkg/openrouter"
)

type Gateway struct {
	client      *openaisdk.Client
	model       string
	maxTokens   int64
	temperature float64
}

var _ contractx.Gateway = (*Gateway)(nil)

func New(client *openaisdk.Client, cfg openrouterx.Config) *Gateway {
	return &Gateway{
		client:      client,
		model:       strings.TrimSpace(cfg.Model),
		maxTokens:   cfg.MaxCompletionToken,
		temperature: cfg.Temperature,
	}
}

// NextBatch asks the model for the next round of questions. The returned
// batch's number is whatever the model claimed; the engine overwrites it.
func (g *Gateway) NextBatch(ctx context.Context, st *contractx.ConversationState) (*contractx.QuizBatch, error) {
	messages := []openaisdk.ChatCompletionMessageParamUnion{
		openaisdk.SystemMessage(interviewerSystemPrompt(st)),
		openaisdk.UserMessage(interviewerUserPrompt(st)),
	}

	raw, err := g.invokeTool(ctx, messages, quizBatchToolName, "Generate the next batch of discovery questions for the stakeholder.", quizBatchParams)
	if err != nil {
		return nil, err
	}

	// Decode questions leniently: the model occasionally returns a non-list
	// questions field, which must coerce to empty rather than fail.
	var loose struct {
		Questions    json.RawMessage `json:"questions"`
		IsComplete   bool            `json:"isComplete"`
		ProgressHint string          `json:"progressHint"`
		BatchNumber  int             `json:"batchNumber"`
	}
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil, fmt.Errorf("%w: decode quiz batch: %v", contractx.ErrGateway, err)
	}

	batch := &contractx.QuizBatch{
		Questions:    []contractx.QuizQuestion{},
		IsComplete:   loose.IsComplete,
		ProgressHint: loose.ProgressHint,
		BatchNumber:  loose.BatchNumber,
	}
	if len(loose.Questions) > 0 {
		var questions []contractx.QuizQuestion
		if err := json.Unmarshal(loose.Questions, &questions); err != nil {
			log.Warn().Str("session_id", st.SessionID).Msg("model returned malformed questions field, coercing to empty")
		} else {
			batch.Questions = questions
		}
	}

	return batch, nil
}

func (g *Gateway) Summarize(ctx context.Context, st *contractx.ConversationState) (*contractx.DiscoverySummary, error) {
	messages := []openaisdk.ChatCompletionMessageParamUnion{
		openaisdk.SystemMessage(summarizerSystemPrompt(st)),
		openaisdk.UserMessage(summarizerUserPrompt(st)),
	}

	raw, err := g.invokeTool(ctx, messages, summaryToolName, "Generate a structured discovery summary based on all the answers collected during the session.", summaryParams)
	if err != nil {
		return nil, err
	}

	var summary contractx.DiscoverySummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("%w: decode summary: %v", contractx.ErrGateway, err)
	}
	if strings.TrimSpace(summary.Summary) == "" {
		return nil, fmt.Errorf("%w: empty summary text", contractx.ErrGateway)
	}
	return &summary, nil
}

// SuggestSteering proposes focus areas for a not-yet-started interview.
// Callers treat any failure as "no suggestions", never as a user-facing error.
func (g *Gateway) SuggestSteering(ctx context.Context, engagementContext, stakeholderName, stakeholderRole string) ([]contractx.SteeringSuggestion, error) {
	messages := []openaisdk.ChatCompletionMessageParamUnion{
		openaisdk.SystemMessage(steeringSystemPrompt(engagementContext)),
		openaisdk.UserMessage(steeringUserPrompt(stakeholderName, stakeholderRole)),
	}

	raw, err := g.invokeTool(ctx, messages, steeringToolName, "Suggest focus areas for an upcoming stakeholder interview.", steeringParams)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Suggestions []contractx.SteeringSuggestion `json:"suggestions"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode steering suggestions: %v", contractx.ErrGateway, err)
	}
	return payload.Suggestions, nil
}

func (g *Gateway) SynthesizeOverview(ctx context.Context, engagementContext string, summaries []contractx.StakeholderSummary) (string, error) {
	messages := []openaisdk.ChatCompletionMessageParamUnion{
		openaisdk.SystemMessage(overviewSystemPrompt(engagementContext)),
		openaisdk.UserMessage(overviewUserPrompt(summaries)),
	}

	raw, err := g.invokeTool(ctx, messages, overviewToolName, "Synthesize individual stakeholder summaries into one cross-stakeholder overview.", overviewParams)
	if err != nil {
		return "", err
	}

	var payload struct {
		Overview string `json:"overview"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("%w: decode overview: %v", contractx.ErrGateway, err)
	}
	if strings.TrimSpace(payload.Overview) == "" {
		return "", fmt.Errorf("%w: empty overview text", contractx.ErrGateway)
	}
	return payload.Overview, nil
}

// ExtractFromDocuments turns uploaded source documents into engagement
// context. Text files are inlined; binary files travel as encoded file parts.
func (g *Gateway) ExtractFromDocuments(ctx context.Context, files []contractx.DocumentFile) (*contractx.DocumentExtraction, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no documents to extract", contractx.ErrInvalidInput)
	}

	parts := make([]openaisdk.ChatCompletionContentPartUnionParam, 0, len(files)+1)
	parts = append(parts, openaisdk.ChatCompletionContentPartUnionParam{
		OfText: &openaisdk.ChatCompletionContentPartTextParam{
			Text: fmt.Sprintf("Extract engagement context from the following %d document(s).", len(files)),
		},
	})

	for _, f := range files {
		if isTextContent(f) {
			parts = append(parts, openaisdk.ChatCompletionContentPartUnionParam{
				OfText: &openaisdk.ChatCompletionContentPartTextParam{
					Text: fmt.Sprintf("--- Document: %s ---\n%s", f.Filename, string(f.Data)),
				},
			})
			continue
		}

		dataURL := fmt.Sprintf("data:%s;base64,%s", f.ContentType, base64.StdEncoding.EncodeToString(f.Data))
		parts = append(parts, openaisdk.ChatCompletionContentPartUnionParam{
			OfFile: &openaisdk.ChatCompletionContentPartFileParam{
				File: openaisdk.ChatCompletionContentPartFileFileParam{
					FileData: openaisdk.String(dataURL),
					Filename: openaisdk.String(f.Filename),
				},
			},
		})
	}

	messages := []openaisdk.ChatCompletionMessageParamUnion{
		openaisdk.SystemMessage(strings.TrimSpace(extractorRaw)),
		{
			OfUser: &openaisdk.ChatCompletionUserMessageParam{
				Content: openaisdk.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: parts,
				},
			},
		},
	}

	raw, err := g.invokeTool(ctx, messages, extractionToolName, "Extract an engagement description and interviewer context from source documents.", extractionParams)
	if err != nil {
		return nil, err
	}

	var extraction contractx.DocumentExtraction
	if err := json.Unmarshal(raw, &extraction); err != nil {
		return nil, fmt.Errorf("%w: decode extraction: %v", contractx.ErrGateway, err)
	}
	return &extraction, nil
}

// invokeTool runs one chat completion with a single forced function tool and
// returns the raw tool-call arguments.
func (g *Gateway) invokeTool(
	ctx context.Context,
	messages []openaisdk.ChatCompletionMessageParamUnion,
	toolName, toolDescription string,
	params shared.FunctionParameters,
) (json.RawMessage, error) {
	completion, err := g.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model:       openaisdk.ChatModel(g.model),
		Messages:    messages,
		MaxTokens:   openaisdk.Int(g.maxTokens),
		Temperature: openaisdk.Float(g.temperature),
		Tools: []openaisdk.ChatCompletionToolParam{
			{
				Function: shared.FunctionDefinitionParam{
					Name:        toolName,
					Description: openaisdk.String(toolDescription),
					Parameters:  params,
				},
			},
		},
		ToolChoice: openaisdk.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openaisdk.ChatCompletionNamedToolChoiceParam{
				Function: openaisdk.ChatCompletionNamedToolChoiceFunctionParam{Name: toolName},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contractx.ErrGateway, toolName, err)
	}

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: %s returned no choices", contractx.ErrGateway, toolName)
	}
	for _, tc := range completion.Choices[0].Message.ToolCalls {
		if tc.Function.Name != toolName {
			continue
		}
		args := strings.TrimSpace(tc.Function.Arguments)
		if args == "" {
			break
		}
		return json.RawMessage(args), nil
	}
	return nil, fmt.Errorf("%w: %s produced no tool call", contractx.ErrGateway, toolName)
}

func isTextContent(f contractx.DocumentFile) bool {
	if strings.HasPrefix(f.ContentType, "text/") ||
		f.ContentType == "application/json" ||
		f.ContentType == "text/markdown" {
		return utf8.Valid(f.Data)
	}
	return false
}
