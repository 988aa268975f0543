package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/NamrataaKale/Account-Plan-Generator/internal/agent"
	"github.com/NamrataaKale/Account-Plan-Generator/internal/domain"
	"github.com/NamrataaKale/Account-Plan-Generator/internal/llm"
)

// turnParams are the inputs to turn.run.
type turnParams struct {
	SessionID  string             `json:"sessionId"`
	Text       string             `json:"text"`
	Attachment *domain.Attachment `json:"attachment,omitempty"`
}

// turnPayload is the turn.run response.
type turnPayload struct {
	State     string          `json:"state"`
	SessionID string          `json:"sessionId"`
	Reply     *domain.Message `json:"reply,omitempty"`
}

// sessionSummary is a transcript-free session listing entry.
type sessionSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	UserNamed    bool      `json:"userNamed"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

type sessionIDParams struct {
	SessionID string `json:"sessionId"`
}

type sessionCreateParams struct {
	Name string `json:"name"`
}

type sectionEditParams struct {
	SessionID  string `json:"sessionId"`
	SectionKey string `json:"sectionKey"`
	Content    string `json:"content"`
}

type personaParams struct {
	Persona string `json:"persona"`
}

// dispatch routes one request frame and writes exactly one response.
func (s *Server) dispatch(ctx context.Context, c *client, frame Frame) {
	payload, errShape := s.handle(ctx, frame)
	if errShape != nil {
		c.writeJSON(NewErrorResponse(frame.ID, *errShape))
		return
	}

	resp, err := NewResponse(frame.ID, payload)
	if err != nil {
		s.log.Error().Err(err).Str("method", frame.Method).Msg("failed to encode response")
		c.writeJSON(NewErrorResponse(frame.ID, ErrorShape{Code: "internal", Message: err.Error()}))
		return
	}
	c.writeJSON(resp)
}

func (s *Server) handle(ctx context.Context, frame Frame) (any, *ErrorShape) {
	orch := s.orchestrator()
	if orch == nil {
		return nil, &ErrorShape{Code: "unavailable", Message: "orchestrator not attached"}
	}

	switch frame.Method {
	case MethodTurnRun:
		var params turnParams
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			return nil, invalidParams(err)
		}
		out, err := orch.RunTurn(ctx, agent.TurnInput{
			SessionID:  params.SessionID,
			Text:       params.Text,
			Attachment: params.Attachment,
		})
		if err != nil {
			return nil, turnError(err)
		}
		return turnPayload{
			State:     out.State.String(),
			SessionID: out.SessionID,
			Reply:     out.Reply,
		}, nil

	case MethodSessionsList:
		sessions := s.store.List()
		out := make([]sessionSummary, 0, len(sessions))
		for _, sess := range sessions {
			out = append(out, sessionSummary{
				ID:           sess.ID,
				Name:         sess.Name,
				UserNamed:    sess.UserNamed,
				CreatedAt:    sess.CreatedAt,
				LastActiveAt: sess.LastActiveAt,
			})
		}
		return out, nil

	case MethodSessionGet:
		var params sessionIDParams
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			return nil, invalidParams(err)
		}
		sess := s.store.Get(params.SessionID)
		if sess == nil {
			return nil, sessionNotFound()
		}
		return sess, nil

	case MethodSessionCreate:
		var params sessionCreateParams
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			return nil, invalidParams(err)
		}
		return orch.StartSession(params.Name), nil

	case MethodSessionDelete:
		var params sessionIDParams
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			return nil, invalidParams(err)
		}
		orch.DeleteSession(params.SessionID)
		return map[string]any{"deleted": params.SessionID}, nil

	case MethodSessionActivate:
		var params sessionIDParams
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			return nil, invalidParams(err)
		}
		if err := orch.SetActiveSession(params.SessionID); err != nil {
			return nil, sessionNotFound()
		}
		return map[string]any{"active": params.SessionID}, nil

	case MethodSectionEdit:
		var params sectionEditParams
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			return nil, invalidParams(err)
		}
		key, err := domain.ParseSectionKey(params.SectionKey)
		if err != nil {
			return nil, &ErrorShape{Code: "invalid_section", Message: err.Error()}
		}
		if err := orch.EditSection(params.SessionID, key, params.Content); err != nil {
			return nil, &ErrorShape{Code: "edit_failed", Message: err.Error()}
		}
		return map[string]any{"updated": params.SectionKey}, nil

	case MethodPersonaSet:
		var params personaParams
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			return nil, invalidParams(err)
		}
		persona, err := llm.ParsePersona(params.Persona)
		if err != nil {
			return nil, &ErrorShape{Code: "invalid_persona", Message: err.Error()}
		}
		orch.SetPersona(persona)
		return map[string]any{"persona": string(persona)}, nil

	case MethodReportExport:
		var params sessionIDParams
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			return nil, invalidParams(err)
		}
		sess := s.store.Get(params.SessionID)
		if sess == nil {
			return nil, sessionNotFound()
		}
		return map[string]any{
			"sessionId": sess.ID,
			"name":      sess.Name,
			"report":    sess.Document.Report(),
		}, nil

	default:
		return nil, &ErrorShape{Code: "method_not_found", Message: "unknown method: " + frame.Method}
	}
}

func invalidParams(err error) *ErrorShape {
	return &ErrorShape{Code: "invalid_params", Message: err.Error()}
}

func sessionNotFound() *ErrorShape {
	return &ErrorShape{Code: "session_not_found", Message: "no such session"}
}

// turnError maps orchestrator rejections to protocol error codes.
func turnError(err error) *ErrorShape {
	switch {
	case errors.Is(err, agent.ErrEmptyInput):
		return &ErrorShape{Code: "empty_input", Message: err.Error()}
	case errors.Is(err, agent.ErrTurnInProgress):
		return &ErrorShape{Code: "turn_in_progress", Message: err.Error()}
	case errors.Is(err, agent.ErrUnknownSession):
		return &ErrorShape{Code: "session_not_found", Message: err.Error()}
	}
	return &ErrorShape{Code: "internal", Message: err.Error()}
}
