package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wifi-survey/agent"
	"wifi-survey/core"
	"wifi-survey/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "fichier de configuration YAML")
	once := flag.Bool("once", false, "mesurer un seul point dans le terminal puis quitter")
	flag.Parse()

	agentCfg, serverCfg := loadConfigs(*configPath)
	core.Log.Configure(agentCfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	surveyor := newSurveyor(agentCfg)
	if *once {
		os.Exit(runOnce(ctx, surveyor, agentCfg))
	}

	if err := serve(ctx, surveyor, agentCfg, serverCfg); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Println("👋 arrêt terminé")
}

func loadConfigs(path string) (agent.Config, server.Config) {
	agentCfg, err := agent.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("⚠️ %s introuvable, configuration par défaut", path)
		return agent.DefaultConfig(), server.DefaultConfig()
	}
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	serverCfg, err := server.LoadConfig(path)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	return agentCfg, serverCfg
}

func newSurveyor(cfg agent.Config) *agent.Surveyor {
	checker := agent.NewChecker(cfg.Agent)
	return &agent.Surveyor{
		Validator:     checker,
		Servers:       checker,
		Wifi:          agent.NewIwReader(cfg.Agent.IwBinary, cfg.Agent.Interface),
		Probe:         agent.NewIperfProbe(cfg.Agent.IperfBinary),
		DisabledDelay: cfg.Agent.DisabledDelay,
	}
}

// runOnce mesure le point décrit par la section survey et affiche le résultat en JSON.
func runOnce(ctx context.Context, surveyor *agent.Surveyor, cfg agent.Config) int {
	rc := agent.NewRunContext()
	rc.Progress.SetSink(newTerminalSink(os.Stderr))

	// Ctrl-C arme le jeton : la mesure s'arrête au prochain point de contrôle
	go func() {
		<-ctx.Done()
		rc.Cancel.Cancel()
	}()

	outcome, err := surveyor.Run(context.Background(), rc, cfg.WithDefaults(core.Settings{}))
	if err != nil {
		log.Printf("❌ %v", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(outcome); err != nil {
		log.Printf("❌ encodage du résultat : %v", err)
		return 1
	}
	if outcome.Status != "" {
		return 2
	}
	return 0
}

func serve(ctx context.Context, surveyor *agent.Surveyor, agentCfg agent.Config, serverCfg server.Config) error {
	ctx, cancelAll := context.WithCancel(ctx)
	defer cancelAll()

	hub := server.NewHub()
	rc := agent.NewRunContext()

	var sinks []agent.ResultSink
	api := &server.API{Hub: hub, Defaults: agentCfg.WithDefaults}

	if serverCfg.Database.DSN != "" {
		store, err := server.OpenStore(serverCfg.Database.DSN)
		if err != nil {
			return err
		}
		defer store.Close()
		schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = store.EnsureSchema(schemaCtx)
		cancel()
		if err != nil {
			return err
		}
		sinks = append(sinks, store)
		api.Points = store
	}

	if len(agentCfg.Kafka.Brokers) > 0 {
		publisher := agent.NewKafkaPublisher(agentCfg.Kafka.Brokers, agentCfg.Kafka.TestResultTopic)
		defer publisher.Close()
		sinks = append(sinks, publisher)
	}

	// progression : navigateurs locaux, et tableau de bord distant si configuré
	var progress agent.ProgressSink = hub
	if agentCfg.WebSocket.URL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		conn, err := agent.DialWebSocket(dialCtx, agentCfg.WebSocket.URL, 5*time.Second)
		cancel()
		if err != nil {
			log.Printf("⚠️ %v, reconnexion au premier message", err)
		}
		remote := agent.NewWebSocketSink(conn, agentCfg.WebSocket.URL)
		defer remote.Close()
		progress = agent.SinkFunc(func(msg core.ProgressMessage) {
			hub.Send(msg)
			remote.Send(msg)
		})
	}
	rc.Progress.SetSink(progress)

	controller := agent.NewController(ctx, surveyor, rc, sinks...)
	api.Controller = controller

	if len(agentCfg.Kafka.Brokers) > 0 {
		log.Println("✅ Démarrage de l'écoute Kafka...")
		go agent.ListenForSurveyRequests(ctx, agentCfg, agent.HandleSurveyRequests(controller, agentCfg))
	}

	errs := make(chan error, 2)
	go func() {
		errs <- server.ServeGRPC(ctx, serverCfg.GRPCAddr(), server.NewGRPCServer(server.NewSurveyServer(controller, agentCfg.WithDefaults)))
	}()
	go func() {
		errs <- server.ServeHTTP(ctx, serverCfg.HTTPAddr(), api.Handler(serverCfg.CORS.AllowedOrigins))
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil && firstErr == nil {
			firstErr = err
			cancelAll()
		}
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	controller.Stop()
	_ = controller.Wait(waitCtx)
	return firstErr
}
