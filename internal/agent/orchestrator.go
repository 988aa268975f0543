// Package agent drives one user interaction from input to final response: the
// turn state machine, the tool registry, and the session bookkeeping around
// context switches.
package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NamrataaKale/Account-Plan-Generator/internal/domain"
	"github.com/NamrataaKale/Account-Plan-Generator/internal/llm"
	"github.com/NamrataaKale/Account-Plan-Generator/internal/logging"
	"github.com/NamrataaKale/Account-Plan-Generator/internal/store"
)

var (
	// ErrEmptyInput rejects a turn with no text and no attachment.
	ErrEmptyInput = errors.New("empty input")

	// ErrTurnInProgress rejects a turn while another is outstanding for the
	// same session.
	ErrTurnInProgress = errors.New("a turn is already in progress for this session")

	// ErrUnknownSession rejects a turn against a session id the store does
	// not know.
	ErrUnknownSession = errors.New("unknown session")
)

// TurnState is the terminal state of one turn.
type TurnState int

const (
	TurnIdle TurnState = iota
	TurnAwaitingModel
	TurnApplyingTools
	TurnDone
	TurnFailed
)

func (s TurnState) String() string {
	switch s {
	case TurnIdle:
		return "idle"
	case TurnAwaitingModel:
		return "awaitingModel"
	case TurnApplyingTools:
		return "applyingTools"
	case TurnDone:
		return "done"
	case TurnFailed:
		return "failed"
	}
	return "unknown"
}

const (
	defaultMaxToolRounds = 5
	defaultAdvisoryTTL   = 10 * time.Second

	gatewayFailureText = "Sorry, I couldn't reach the research model. Please try again in a moment."
	noResolutionText   = "Sorry, I couldn't reach a conclusion for that request. Please try rephrasing it."

	conflictNotice = "Potential conflict detected in the latest findings."
)

// conflictKeywords trigger a conflict advisory when the final answer contains
// any of them, case-insensitively.
var conflictKeywords = []string{"contradict", "discrepancy", "inconsistent", "however"}

// Config configures the orchestrator.
type Config struct {
	Persona     llm.Persona
	Instruction string

	// MaxToolRounds caps tool-call rounds per turn. Zero means the default.
	MaxToolRounds int

	// AdvisoryTTL is how long a conflict advisory stays up before the
	// cleared event fires. Zero means the default.
	AdvisoryTTL time.Duration
}

// TurnInput is one user submission.
type TurnInput struct {
	SessionID  string
	Text       string
	Attachment *domain.Attachment
}

// TurnOutcome reports how a turn ended. Reply is the agent message appended
// to the transcript, including the one describing a failure.
type TurnOutcome struct {
	State     TurnState
	SessionID string
	Reply     *domain.Message
}

// Orchestrator runs the turn state machine. It owns the open model
// conversations, keyed by session id, and serializes turns per session.
type Orchestrator struct {
	client llm.Client
	store  store.SessionStore
	tools  *Registry
	sink   EventSink
	log    *logging.Logger
	cfg    Config

	mu       sync.Mutex
	convos   map[string]llm.Conversation
	inflight map[string]bool
	active   string
}

// New creates an orchestrator.
func New(client llm.Client, st store.SessionStore, tools *Registry, sink EventSink, log *logging.Logger, cfg Config) *Orchestrator {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = defaultMaxToolRounds
	}
	if cfg.AdvisoryTTL <= 0 {
		cfg.AdvisoryTTL = defaultAdvisoryTTL
	}
	if cfg.Persona == "" {
		cfg.Persona = llm.PersonaDefault
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Orchestrator{
		client:   client,
		store:    st,
		tools:    tools,
		sink:     sink,
		log:      log.Sub("agent"),
		cfg:      cfg,
		convos:   make(map[string]llm.Conversation),
		inflight: make(map[string]bool),
	}
}

// RunTurn drives one user input to a final agent message. Rejections (empty
// input, unknown session, single-flight violation) return an error with no
// state change; gateway failures and the round cap end the turn in TurnFailed
// with an error message appended to the transcript instead.
func (o *Orchestrator) RunTurn(ctx context.Context, in TurnInput) (*TurnOutcome, error) {
	if strings.TrimSpace(in.Text) == "" && in.Attachment == nil {
		return nil, ErrEmptyInput
	}

	convo, err := o.beginTurn(in.SessionID)
	if err != nil {
		return nil, err
	}
	defer o.endTurn(in.SessionID)

	start := time.Now()
	o.log.Info().
		Str("sessionId", in.SessionID).
		Bool("hasAttachment", in.Attachment != nil).
		Msg("turn started")

	o.appendMessage(in.SessionID, domain.Message{
		ID:         uuid.New().String(),
		Role:       domain.RoleUser,
		Text:       in.Text,
		Attachment: in.Attachment,
		Timestamp:  time.Now(),
	})

	result, err := convo.SendTurn(ctx, in.Text, in.Attachment)
	if err != nil {
		o.log.Error().Err(err).Str("sessionId", in.SessionID).Msg("model turn failed")
		return o.failTurn(in.SessionID, gatewayFailureText), nil
	}

	fx := &turnEffects{o: o, sessionID: in.SessionID}

	for round := 0; len(result.ToolCalls) > 0; round++ {
		if round >= o.cfg.MaxToolRounds {
			o.log.Warn().
				Str("sessionId", in.SessionID).
				Int("rounds", round).
				Msg("tool round cap exceeded")
			return o.failTurn(in.SessionID, noResolutionText), nil
		}

		results := make([]llm.ToolResult, 0, len(result.ToolCalls))
		for _, call := range result.ToolCalls {
			o.log.Debug().
				Str("sessionId", in.SessionID).
				Str("tool", call.Name).
				Msg("dispatching tool call")
			results = append(results, o.tools.Dispatch(ctx, fx, call))
		}

		result, err = convo.SendToolResults(ctx, results)
		if err != nil {
			o.log.Error().Err(err).Str("sessionId", in.SessionID).Msg("tool result round failed")
			return o.failTurn(in.SessionID, gatewayFailureText), nil
		}

		// A context switch ends the turn in the old session once its
		// results are acknowledged. The new session gets a fresh
		// conversation on its first turn.
		if fx.newSessionID != "" {
			reply := o.finishTurn(in.SessionID, result)
			o.setActive(fx.newSessionID)
			o.log.Info().
				Str("sessionId", in.SessionID).
				Str("newSessionId", fx.newSessionID).
				Dur("duration", time.Since(start)).
				Msg("turn done with context switch")
			return &TurnOutcome{State: TurnDone, SessionID: fx.newSessionID, Reply: reply}, nil
		}
	}

	reply := o.finishTurn(in.SessionID, result)
	o.log.Info().
		Str("sessionId", in.SessionID).
		Dur("duration", time.Since(start)).
		Msg("turn done")
	return &TurnOutcome{State: TurnDone, SessionID: in.SessionID, Reply: reply}, nil
}

// beginTurn acquires the single-flight slot and the session's conversation.
func (o *Orchestrator) beginTurn(sessionID string) (llm.Conversation, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess := o.store.Get(sessionID)
	if sess == nil {
		return nil, ErrUnknownSession
	}
	if o.inflight[sessionID] {
		return nil, ErrTurnInProgress
	}
	o.inflight[sessionID] = true

	convo, ok := o.convos[sessionID]
	if !ok {
		convo = o.client.StartConversation(llm.ConversationOptions{
			Persona:     o.cfg.Persona,
			Instruction: o.cfg.Instruction,
			Tools:       o.tools.Declarations(),
			History:     sess.Messages,
		})
		o.convos[sessionID] = convo
	}
	return convo, nil
}

func (o *Orchestrator) endTurn(sessionID string) {
	o.mu.Lock()
	delete(o.inflight, sessionID)
	o.mu.Unlock()
}

// finishTurn appends the final agent message, with citations deduplicated by
// URI, and raises a conflict advisory when the text warrants one.
func (o *Orchestrator) finishTurn(sessionID string, result *llm.TurnResult) *domain.Message {
	msg := domain.Message{
		ID:        uuid.New().String(),
		Role:      domain.RoleAgent,
		Text:      result.Text,
		Sources:   domain.DedupSources(result.Citations),
		Timestamp: time.Now(),
	}
	o.appendMessage(sessionID, msg)

	if hasConflictIndicator(result.Text) {
		ttl := o.cfg.AdvisoryTTL
		o.sink.ConflictAdvisory(sessionID, conflictNotice, ttl)
		time.AfterFunc(ttl, func() {
			o.sink.ConflictCleared(sessionID)
		})
	}
	return &msg
}

// failTurn appends a neutral error message and ends the turn in TurnFailed.
func (o *Orchestrator) failTurn(sessionID, text string) *TurnOutcome {
	msg := domain.Message{
		ID:        uuid.New().String(),
		Role:      domain.RoleAgent,
		Text:      text,
		Timestamp: time.Now(),
	}
	o.appendMessage(sessionID, msg)
	return &TurnOutcome{State: TurnFailed, SessionID: sessionID, Reply: &msg}
}

func (o *Orchestrator) appendMessage(sessionID string, msg domain.Message) {
	o.store.Append(sessionID, msg)
	o.sink.MessageAppended(sessionID, msg)
}

func (o *Orchestrator) setActive(sessionID string) {
	o.mu.Lock()
	o.active = sessionID
	o.mu.Unlock()
	o.sink.ActiveSessionChanged(sessionID)
}

// StartSession creates a session and makes it active.
func (o *Orchestrator) StartSession(name string) *domain.Session {
	sess := o.store.CreateEmpty(name)
	o.setActive(sess.ID)
	return sess
}

// ActiveSessionID returns the current active session id, or empty if none.
func (o *Orchestrator) ActiveSessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// SetActiveSession switches the active session to an existing one.
func (o *Orchestrator) SetActiveSession(sessionID string) error {
	if o.store.Get(sessionID) == nil {
		return ErrUnknownSession
	}
	o.setActive(sessionID)
	return nil
}

// SetPersona changes the persona for subsequent turns. Open conversations are
// discarded so the next turn per session starts with the new configuration.
func (o *Orchestrator) SetPersona(p llm.Persona) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg.Persona = p
	o.convos = make(map[string]llm.Conversation)
}

// EditSection applies a direct user edit to a document section.
func (o *Orchestrator) EditSection(sessionID string, key domain.SectionKey, content string) error {
	return o.store.SetSection(sessionID, key, content)
}

// DeleteSession removes a session and its conversation.
func (o *Orchestrator) DeleteSession(sessionID string) {
	o.mu.Lock()
	delete(o.convos, sessionID)
	if o.active == sessionID {
		o.active = ""
	}
	o.mu.Unlock()
	o.store.Delete(sessionID)
}

// turnEffects applies tool side effects against the turn's active session.
type turnEffects struct {
	o         *Orchestrator
	sessionID string

	// newSessionID is set when startNewResearch fires; the orchestrator
	// switches to it after the round's results are acknowledged.
	newSessionID string
}

func (fx *turnEffects) UpdateSection(_ context.Context, key domain.SectionKey, content string) error {
	if err := fx.o.store.SetSection(fx.sessionID, key, content); err != nil {
		return err
	}

	// First non-empty target entity names the session, unless the user
	// already picked a name.
	if key == domain.SectionTargetEntity && strings.TrimSpace(content) != "" {
		if sess := fx.o.store.Get(fx.sessionID); sess != nil &&
			!sess.UserNamed && sess.Name == domain.DefaultSessionName {
			fx.o.store.Rename(fx.sessionID, firstLine(content), false)
		}
	}
	return nil
}

func (fx *turnEffects) StartNewResearch(_ context.Context, entityName string) error {
	sess := fx.o.store.CreateEmpty(entityName)
	if err := fx.o.store.SetSection(sess.ID, domain.SectionTargetEntity, entityName); err != nil {
		return err
	}
	fx.newSessionID = sess.ID
	return nil
}

func (fx *turnEffects) GenerateChart(_ context.Context, spec domain.ChartSpec) error {
	fx.o.appendMessage(fx.sessionID, domain.Message{
		ID:        uuid.New().String(),
		Role:      domain.RoleAgent,
		Chart:     &spec,
		Timestamp: time.Now(),
	})
	return nil
}

func hasConflictIndicator(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range conflictKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
