package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"botcrew.ai/internal/actor"
	"botcrew.ai/internal/bank"
	"botcrew.ai/internal/bot"
	"botcrew.ai/internal/config"
	"botcrew.ai/internal/game"
	"botcrew.ai/internal/persistence/activitylog"
	"botcrew.ai/internal/persistence/historydb"
	"botcrew.ai/internal/plan"
	"botcrew.ai/internal/ui"
	"botcrew.ai/internal/world"
)

func main() {
	var (
		configPath = flag.String("config", "configs/crew.yaml", "crew config path")
		addr       = flag.String("addr", "", "dashboard listen address (overrides config)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
		worldDir   = flag.String("world", "", "world data directory (overrides config)")
		cooldown   = flag.Duration("cooldown", 500*time.Millisecond, "sandbox action cooldown")
		seed       = flag.Int64("seed", 1337, "sandbox drop rng seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[botcrew] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *worldDir != "" {
		cfg.WorldDataDir = *worldDir
	}

	w, err := world.Load(cfg.WorldDataDir)
	if err != nil {
		logger.Fatalf("load world data: %v", err)
	}
	items, resources, monsters, tiles := w.Counts()
	logger.Printf("world: %d items, %d resources, %d monsters, %d tiles", items, resources, monsters, tiles)

	client := newSandboxClient(w, cfg.Workers, *cooldown, *seed)

	ctx, cancel := signalContext()
	defer cancel()

	activity := activitylog.New(cfg.DataDir)
	defer activity.Close()
	history, err := historydb.Open(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		logger.Fatalf("open history db: %v", err)
	}
	defer history.Close()

	bankActor := actor.New("bank", bank.NewLedger(client, nil), 128, logger)
	if err := bankActor.Start(ctx); err != nil {
		logger.Fatalf("start bank: %v", err)
	}
	defer bankActor.Stop()
	vault := bank.NewHandle(bankActor, 5*time.Second)

	orch := plan.NewOrchestrator(w, multiRecorder{history, activity},
		log.New(os.Stdout, "[orchestrator] ", log.LstdFlags|log.Lmicroseconds))
	orchActor := actor.New("orchestrator", orch, 256, logger)
	if err := orchActor.Start(ctx); err != nil {
		logger.Fatalf("start orchestrator: %v", err)
	}
	defer orchActor.Stop()
	planner := plan.NewHandle(orchActor, 5*time.Second)

	hub := ui.NewHub(log.New(os.Stdout, "[ui] ", log.LstdFlags|log.Lmicroseconds))
	sink := bot.MultiSink(hub, activity)

	var wg sync.WaitGroup
	for _, spec := range cfg.Workers {
		wk := bot.New(bot.Config{
			Name:         spec.Name,
			Role:         game.Role(spec.Role),
			Client:       client,
			World:        w,
			Vault:        vault,
			Planner:      planner,
			Sink:         sink,
			Logger:       log.New(os.Stdout, "["+spec.Name+"] ", log.LstdFlags|log.Lmicroseconds),
			PollInterval: cfg.PollInterval(),
			MaxRetries:   cfg.MaxRetries,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := wk.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("worker %s stopped: %v", wk.Name(), err)
			}
		}()
	}
	logger.Printf("%d workers up", len(cfg.Workers))

	for _, g := range cfg.Goals {
		res, err := planner.CreatePlan(ctx, g.Item, g.Quantity)
		if err != nil {
			logger.Printf("create plan %s x%d: %v", g.Item, g.Quantity, err)
			continue
		}
		logger.Printf("goal %s: %s x%d, %d jobs", res.GoalID, g.Item, g.Quantity, res.Jobs)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/ws", hub.Handler())
	mux.HandleFunc("/v1/status", func(rw http.ResponseWriter, r *http.Request) {
		rep, err := planner.Status(r.Context(), r.URL.Query().Get("goal"))
		if err != nil {
			http.Error(rw, err.Error(), http.StatusNotFound)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(rep)
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("dashboard on %s", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// Workers release their jobs before the actors go down.
	wg.Wait()
	logger.Printf("workers drained")
}

// multiRecorder fans plan lifecycle events out to every recorder.
type multiRecorder []plan.Recorder

func (m multiRecorder) PlanCreated(goalID, item string, quantity, jobs int) {
	for _, r := range m {
		r.PlanCreated(goalID, item, quantity, jobs)
	}
}

func (m multiRecorder) JobEvent(goalID, jobID, event, worker, detail string) {
	for _, r := range m {
		r.JobEvent(goalID, jobID, event, worker, detail)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
