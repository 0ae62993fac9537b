// Command agent runs the Email Campaign Agent process: it loads
// configuration, wires the store/lock/transport/quota/metrics stack, and
// drives internal/agentloop's poll loop until it receives SIGINT/SIGTERM.
// Grounded on the teacher's cmd/worker/main.go (signal-driven graceful
// shutdown over a cancellable context) and its plain stdlib flag usage —
// no third-party CLI library appears anywhere in the pack's cmd/*.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/email-campaign-agent/internal/agentloop"
	"github.com/ignite/email-campaign-agent/internal/config"
	"github.com/ignite/email-campaign-agent/internal/credentials"
	"github.com/ignite/email-campaign-agent/internal/executor"
	"github.com/ignite/email-campaign-agent/internal/lock"
	"github.com/ignite/email-campaign-agent/internal/metrics"
	"github.com/ignite/email-campaign-agent/internal/push"
	"github.com/ignite/email-campaign-agent/internal/quota"
	"github.com/ignite/email-campaign-agent/internal/sleepqueue"
	"github.com/ignite/email-campaign-agent/internal/store"
	"github.com/ignite/email-campaign-agent/internal/transport"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the agent's YAML configuration file")
	logLevels := flag.String("log-levels", "info", "comma-separated log levels (accepted for compatibility; this agent only logs through stdlib log)")
	terminateAfterInit := flag.Bool("terminate-after-initialization", false, "run Startup once and exit, without entering the poll loop")
	flag.Parse()
	_ = *logLevels

	log.Println("Starting Email Campaign Agent...")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("agent: load config: %v", err)
	}
	if cfg.Agent.ID == "" {
		log.Fatal("agent: AGENT_ID (or agent.id in config.yaml) is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.New(ctx, *cfg)
	if err != nil {
		log.Fatalf("agent: connect to store: %v", err)
	}

	notifier := push.New(st)
	notifier.Heartbeat(ctx)
	defer notifier.Stop()
	var backingStore store.Store = notifier

	lockMgr := lock.NewManager(st.Dynamo(), st.WorkOrdersTable())

	creds, err := credentials.New(backingStore, cfg.SMTP.CredentialCache)
	if err != nil {
		log.Fatalf("agent: build credential cache: %v", err)
	}

	gateway := transport.New(transport.Config{
		Server:          cfg.SMTP.Server,
		Port:            cfg.SMTP.Port,
		DefaultFromName: cfg.SMTP.DefaultFromName,
		DefaultPreview:  cfg.SMTP.DefaultPreview,
	}, creds)

	// No Redis fast-path is configured from YAML/env yet: the store scan is
	// the quota source of truth either way, so a nil client just means every
	// check falls through to DynamoDB.
	quotaChecker := quota.New(backingStore, nil)

	templates := store.NewTemplateClient(cfg.SMTP.TemplateBaseURL)

	counters := metrics.New()
	sleepQueue := sleepqueue.New()

	rt := &executor.Runtime{
		Store:                    backingStore,
		Templates:                templates,
		Credentials:              creds,
		Transport:                gateway,
		Quota:                    quotaChecker,
		Metrics:                  counters,
		CoordinatorEmail:         cfg.Render.CoordinatorEmail,
		PreviewText:              cfg.SMTP.DefaultPreview,
		EmailBurstSize:           cfg.Send.EmailBurstSize,
		EmailRecoverySleepSecs:   cfg.Send.EmailRecoverySleepSecs,
		EmailContinuousSleepSecs: cfg.Send.EmailContinuousSleepSecs,
		SMTP24HourSendLimit:      cfg.Send.SMTP24HourSendLimit,
	}

	exec := executor.New(backingStore, cfg.Agent.ID)
	loop := agentloop.New(backingStore, lockMgr, exec, rt, sleepQueue, cfg.Agent.ID,
		cfg.Polling.PollInterval(), cfg.Polling.ReceiveWait())

	if *terminateAfterInit {
		if err := loop.Startup(ctx); err != nil {
			log.Fatalf("agent: startup: %v", err)
		}
		log.Println("Startup complete, exiting (--terminate-after-initialization set)")
		return
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	runErr := make(chan error, 1)
	go func() { runErr <- loop.Run(ctx) }()

	select {
	case <-quit:
		log.Println("Shutting down agent...")
		cancel()
		<-runErr
	case err := <-runErr:
		if err != nil && ctx.Err() == nil {
			log.Printf("agent: loop exited: %v", err)
		}
	}

	counters.Log()
	log.Println("Agent stopped")
}
