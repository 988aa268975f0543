package cli

import (
	"fmt"

	"github.com/NamrataaKale/Account-Plan-Generator/internal/agent"
	"github.com/NamrataaKale/Account-Plan-Generator/internal/config"
	"github.com/NamrataaKale/Account-Plan-Generator/internal/llm"
	"github.com/NamrataaKale/Account-Plan-Generator/internal/store"
)

// runtime bundles the wired application components for a command invocation.
type runtime struct {
	cfg     config.Config
	store   store.SessionStore
	client  llm.Client
	persona llm.Persona
	db      *store.DB
}

// buildRuntime loads config and wires the session store and model client.
// Callers must Close when done.
func buildRuntime() (*runtime, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return nil, err
	}

	personaName := cfg.Personas.Default
	if persona != "" {
		personaName = persona
	}
	p, err := llm.ParsePersona(personaName)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, persona: p}

	if cfg.Session.Store == "memory" {
		rt.store = store.NewMemoryStore()
		log.Info().Msg("using in-memory session store")
	} else {
		if err := paths.EnsureDirs(); err != nil {
			return nil, fmt.Errorf("creating data directories: %w", err)
		}
		db, err := store.Open(paths.DatabasePath(), log)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		rt.db = db
		rt.store = store.NewSQLiteStore(db)
	}

	if cfg.API.Key == "" {
		rt.Close()
		return nil, fmt.Errorf("no API key configured: set api.key or GEMINI_API_KEY")
	}
	rt.client = llm.NewGeminiClient(cfg.API.Key, cfg.API.Model, log)

	return rt, nil
}

// orchestrator builds an orchestrator over the runtime's components.
func (rt *runtime) orchestrator(sink agent.EventSink) *agent.Orchestrator {
	return agent.New(rt.client, rt.store, agent.NewRegistry(), sink, log, agent.Config{
		Persona:     rt.persona,
		Instruction: rt.cfg.Instruction(string(rt.persona)),
	})
}

func (rt *runtime) Close() {
	if rt.db != nil {
		rt.db.Close()
	}
}
