package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NamrataaKale/Account-Plan-Generator/internal/domain"
	"github.com/NamrataaKale/Account-Plan-Generator/internal/llm"
)

// Tool names the model may invoke.
const (
	ToolUpdateSection    = "updateSection"
	ToolStartNewResearch = "startNewResearch"
	ToolGenerateChart    = "generateChart"
)

// ToolEffects is the side-effect surface the registry dispatches into. The
// orchestrator provides a per-turn implementation bound to the active session.
type ToolEffects interface {
	UpdateSection(ctx context.Context, key domain.SectionKey, content string) error
	StartNewResearch(ctx context.Context, entityName string) error
	GenerateChart(ctx context.Context, spec domain.ChartSpec) error
}

// UpdateSectionArgs replaces one research document section.
type UpdateSectionArgs struct {
	SectionKey string `json:"sectionKey"`
	Content    string `json:"content"`
}

// StartNewResearchArgs switches the conversation to a fresh session.
type StartNewResearchArgs struct {
	EntityName string `json:"entityName"`
}

// GenerateChartArgs describes a chart for the transcript.
type GenerateChartArgs struct {
	Title  string `json:"title"`
	Kind   string `json:"kind"`
	Points []struct {
		Label string  `json:"label"`
		Value float64 `json:"value"`
	} `json:"points"`
	Color string `json:"color"`
}

// invocation is the validated form of one tool call. Exactly one field is set.
type invocation struct {
	Update   *UpdateSectionArgs
	Research *StartNewResearchArgs
	Chart    *GenerateChartArgs
}

// Registry holds the fixed tool set: argument schemas for the model and
// validation plus dispatch for the orchestrator.
type Registry struct{}

// NewRegistry creates the tool registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Declarations returns the function declarations advertised to the model.
func (r *Registry) Declarations() []llm.FunctionDeclaration {
	sectionKeys := make([]string, 0, len(domain.SectionKeys()))
	for _, key := range domain.SectionKeys() {
		sectionKeys = append(sectionKeys, string(key))
	}

	return []llm.FunctionDeclaration{
		{
			Name:        ToolUpdateSection,
			Description: "Replace the content of one section of the research document.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"sectionKey": map[string]any{
						"type": "string",
						"enum": sectionKeys,
					},
					"content": map[string]any{
						"type":        "string",
						"description": "New markdown content for the section.",
					},
				},
				"required": []string{"sectionKey", "content"},
			},
		},
		{
			Name:        ToolStartNewResearch,
			Description: "Start researching a different company in a fresh session.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"entityName": map[string]any{
						"type":        "string",
						"description": "Name of the company to research next.",
					},
				},
				"required": []string{"entityName"},
			},
		},
		{
			Name:        ToolGenerateChart,
			Description: "Render a chart from labeled numeric data points.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{"type": "string"},
					"kind": map[string]any{
						"type": "string",
						"enum": []string{string(domain.ChartBar), string(domain.ChartLine)},
					},
					"points": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"label": map[string]any{"type": "string"},
								"value": map[string]any{"type": "number"},
							},
							"required": []string{"label", "value"},
						},
					},
					"color": map[string]any{
						"type":        "string",
						"description": "Optional CSS color for the series.",
					},
				},
				"required": []string{"title", "kind", "points"},
			},
		},
	}
}

// Dispatch validates one tool call and applies its effect. It always returns
// exactly one result; a malformed call or a failed effect yields an
// error-status result instead of aborting the turn.
func (r *Registry) Dispatch(ctx context.Context, fx ToolEffects, call llm.ToolCall) llm.ToolResult {
	result := llm.ToolResult{ID: call.ID, Name: call.Name}

	inv, err := parseCall(call)
	if err != nil {
		result.Status = fmt.Sprintf("Error: %s", err)
		return result
	}

	switch {
	case inv.Update != nil:
		key, _ := domain.ParseSectionKey(inv.Update.SectionKey)
		if err := fx.UpdateSection(ctx, key, inv.Update.Content); err != nil {
			result.Status = fmt.Sprintf("Error: %s", err)
			return result
		}
		result.Status = "Section updated."

	case inv.Research != nil:
		if err := fx.StartNewResearch(ctx, inv.Research.EntityName); err != nil {
			result.Status = fmt.Sprintf("Error: %s", err)
			return result
		}
		result.Status = "Context switched."

	case inv.Chart != nil:
		kind, _ := domain.ParseChartKind(inv.Chart.Kind)
		points := make([]domain.ChartPoint, 0, len(inv.Chart.Points))
		for _, p := range inv.Chart.Points {
			points = append(points, domain.ChartPoint{Label: p.Label, Value: p.Value})
		}
		spec := domain.ChartSpec{
			Title:  inv.Chart.Title,
			Kind:   kind,
			Points: points,
			Color:  inv.Chart.Color,
		}
		if err := fx.GenerateChart(ctx, spec); err != nil {
			result.Status = fmt.Sprintf("Error: %s", err)
			return result
		}
		result.Status = "Chart rendered."
	}

	return result
}

// parseCall decodes and validates a raw tool call into its tagged form.
func parseCall(call llm.ToolCall) (invocation, error) {
	switch call.Name {
	case ToolUpdateSection:
		// Content decodes through a pointer so a missing field is
		// distinguishable from an explicit empty string.
		var raw struct {
			SectionKey string  `json:"sectionKey"`
			Content    *string `json:"content"`
		}
		if err := json.Unmarshal(call.Args, &raw); err != nil {
			return invocation{}, fmt.Errorf("invalid arguments for %s: %w", call.Name, err)
		}
		if _, err := domain.ParseSectionKey(raw.SectionKey); err != nil {
			return invocation{}, err
		}
		if raw.Content == nil {
			return invocation{}, fmt.Errorf("content is required")
		}
		return invocation{Update: &UpdateSectionArgs{SectionKey: raw.SectionKey, Content: *raw.Content}}, nil

	case ToolStartNewResearch:
		var args StartNewResearchArgs
		if err := json.Unmarshal(call.Args, &args); err != nil {
			return invocation{}, fmt.Errorf("invalid arguments for %s: %w", call.Name, err)
		}
		if args.EntityName == "" {
			return invocation{}, fmt.Errorf("entityName is required")
		}
		return invocation{Research: &args}, nil

	case ToolGenerateChart:
		var args GenerateChartArgs
		if err := json.Unmarshal(call.Args, &args); err != nil {
			return invocation{}, fmt.Errorf("invalid arguments for %s: %w", call.Name, err)
		}
		if args.Title == "" {
			return invocation{}, fmt.Errorf("title is required")
		}
		if _, err := domain.ParseChartKind(args.Kind); err != nil {
			return invocation{}, err
		}
		if len(args.Points) == 0 {
			return invocation{}, fmt.Errorf("at least one data point is required")
		}
		return invocation{Chart: &args}, nil

	default:
		return invocation{}, fmt.Errorf("unknown tool: %s", call.Name)
	}
}
