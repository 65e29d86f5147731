package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/soyeahso/valet/internal/conductor"
	"github.com/soyeahso/valet/internal/config"
	"github.com/soyeahso/valet/internal/gateway"
	"github.com/soyeahso/valet/internal/llm"
	"github.com/soyeahso/valet/internal/logging"
	"github.com/soyeahso/valet/internal/monitor"
	"github.com/soyeahso/valet/internal/planner"
	"github.com/soyeahso/valet/internal/scheduler"
	"github.com/soyeahso/valet/internal/store"
	"github.com/soyeahso/valet/internal/tool"
	"github.com/soyeahso/valet/internal/tool/email"
	"github.com/soyeahso/valet/internal/tool/remind"
	"github.com/soyeahso/valet/internal/tool/texttool"
	"github.com/soyeahso/valet/internal/worker"
)

// app is the wired object graph shared by the serve and message commands.
type app struct {
	cfg config.Config
	log *logging.Logger

	db            *store.DB
	conversations *store.ConversationStore
	triggers      *store.TriggerStore
	registry      *tool.Registry
	conductor     *conductor.Conductor
	scheduler     *scheduler.Scheduler
	monitor       *monitor.Monitor // nil without a configured mailbox
	hub           *gateway.Hub
}

// buildApp assembles stores, providers, capabilities, and the conductor
// stack from configuration.
func buildApp(cfg config.Config, log *logging.Logger) (*app, error) {
	if cfg.Store.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	db, err := store.Open(cfg.Store.Path, log)
	if err != nil {
		return nil, err
	}

	conversations := store.NewConversationStore(db)
	triggers := store.NewTriggerStore(db)

	llmReg := llm.NewRegistry(log)
	llmReg.Register("openrouter", llm.NewOpenRouterClient(cfg.LLM.BaseURL, cfg.LLM.APIKey))
	llmReg.SetFallback("openrouter")
	for _, model := range append([]string{cfg.LLM.ConductorModel, cfg.LLM.WorkerModel}, cfg.LLM.Fallbacks...) {
		llmReg.Alias(model, "openrouter")
	}
	conductorClient := llm.NewFailoverClient(llmReg, cfg.LLM.ConductorModel, cfg.LLM.Fallbacks, log)
	workerClient := llm.NewFailoverClient(llmReg, cfg.LLM.WorkerModel, cfg.LLM.Fallbacks, log)

	registry := tool.NewRegistry()
	var provider email.Provider
	if cfg.Email.IMAPHost != "" {
		provider = email.NewIMAPProvider(cfg.Email, log)
	} else {
		// No account configured; email capabilities stay registered so
		// plans validate, backed by an empty in-memory mailbox.
		provider = &email.FakeProvider{}
	}
	email.RegisterAll(registry, provider)
	texttool.RegisterAll(registry, workerClient, cfg.LLM.WorkerModel)
	remind.RegisterAll(registry, triggers, nil)

	pl := planner.New(workerClient, cfg.LLM.WorkerModel, log)
	wk := worker.New(registry, workerClient, cfg.LLM.WorkerModel, worker.Options{
		MaxToolCallsPerStep: cfg.Worker.MaxToolCallsPerStep,
		MaxStepRetries:      cfg.Worker.MaxStepRetries,
		MaxSteps:            cfg.Worker.MaxSteps,
	}, log)
	cond := conductor.New(conversations, pl, wk, registry, conductorClient, cfg.LLM.ConductorModel, conductor.Options{
		DedupWindow:       cfg.Conductor.DedupWindow,
		SuppressWindow:    cfg.Conductor.SuppressWindow,
		MaxToolIterations: cfg.Conductor.MaxToolIterations,
		SummarizeAfter:    cfg.Conductor.SummarizeAfter,
	}, log)

	hub := gateway.NewHub(log)
	sched := scheduler.New(triggers, cond, hub, scheduler.Options{
		PollInterval:        cfg.Scheduler.PollInterval,
		MaxDeliveryAttempts: cfg.Scheduler.MaxDeliveryAttempts,
	}, log)

	var mon *monitor.Monitor
	if cfg.Email.IMAPHost != "" {
		mon = monitor.New(provider, cond, hub, monitor.Options{
			CheckInterval: cfg.Email.CheckInterval,
			VIPSenders:    cfg.Email.VIPSenders,
		}, log)
	}

	return &app{
		cfg:           cfg,
		log:           log,
		db:            db,
		conversations: conversations,
		triggers:      triggers,
		registry:      registry,
		conductor:     cond,
		scheduler:     sched,
		monitor:       mon,
		hub:           hub,
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing database")
	}
}
