// cubelink is a headless client for Minecraft Java Edition servers speaking
// protocol 1.7.2 through 1.12.2.
//
// It logs in (offline or through the session service), mirrors the world the
// server streams to it, records status probes, chat and sessions in SQLite,
// exposes the mirror over a REST API, and publishes events to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cubelink-project/cubelink/internal/api"
	"github.com/cubelink-project/cubelink/internal/cli"
	"github.com/cubelink-project/cubelink/internal/config"
	"github.com/cubelink-project/cubelink/internal/connector"
	"github.com/cubelink-project/cubelink/internal/db"
	"github.com/cubelink-project/cubelink/internal/events"
	"github.com/cubelink-project/cubelink/internal/health"
	"github.com/cubelink-project/cubelink/internal/network"
	"github.com/cubelink-project/cubelink/internal/protocol"
	"github.com/cubelink-project/cubelink/internal/scheduler"
	"github.com/cubelink-project/cubelink/internal/telemetry"
	"github.com/cubelink-project/cubelink/internal/util"
)

const (
	AppName    = "cubelink"
	AppVersion = "0.4.0"
	Banner     = `
            _          _ _       _
   ___ _  _| |__  ___ | (_)_ __ | | __
  / __| || | '_ \/ _ \| | | '_ \| |/ /
 | (__| || | |_) | __/| | | | | |   <
  \___|\_,_|_.__/\___||_|_|_| |_|_|\_\  v%s
 Headless client for protocol 1.7.2 - 1.12.2
`
)

type flags struct {
	configDir string
	host      string
	port      int
	username  string
	version   string
	probeOnly bool
	noCLI     bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configDir, "config", config.DefaultConfigDir, "configuration directory")
	flag.StringVar(&f.host, "host", "", "server host (overrides config)")
	flag.IntVar(&f.port, "port", 0, "server port (overrides config)")
	flag.StringVar(&f.username, "username", "", "username (overrides config)")
	flag.StringVar(&f.version, "version", "", "protocol version or release name, or 'auto' (overrides config)")
	flag.BoolVar(&f.probeOnly, "probe", false, "query server status and exit")
	flag.BoolVar(&f.noCLI, "no-cli", false, "disable the interactive console")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()

	fmt.Printf(Banner, AppVersion)
	fmt.Println()

	// Defaults until the configuration is loaded.
	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Msg("starting cubelink")

	cfg, err := config.Load(f.configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	applyOverrides(cfg, f)

	app := cfg.GetApplicationData()
	logCfg := util.LogConfig{
		Level:      app.Logging.Level,
		Directory:  app.Logging.Directory,
		MaxBackups: app.Logging.MaxBackups,
		Console:    true,
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}
	if removed := util.CleanOldLogs(app.Logging.Directory, app.Logging.MaxBackups); removed > 0 {
		log.Debug().Int("removed", removed).Msg("old log files removed")
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		if cfg.IsFirstRun() {
			log.Info().Msg("first run detected, launching setup wizard")
			if err := config.RunSetupWizard(cfg, os.Stdin, os.Stdout); err != nil {
				log.Fatal().Err(err).Msg("setup wizard failed")
			}
			app = cfg.GetApplicationData()
		} else {
			log.Fatal().Msg("configuration validation failed, please fix the errors above")
		}
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := events.NewEventBus()

	if f.probeOnly {
		st, err := probe(ctx, cfg, eventBus)
		if err != nil {
			log.Fatal().Err(err).Msg("status probe failed")
		}
		printStatus(st)
		eventBus.Wait()
		return
	}

	var history *db.HistoryStore
	if app.Database.Enabled {
		history, err = db.NewHistoryStore(app.Database.Path)
		if err != nil {
			log.Warn().Err(err).Msg("failed to open history database, history disabled")
			history = nil
		} else {
			history.Attach(eventBus)
		}
	}

	if wh := connector.NewWebhookNotifier(app.Webhook, eventBus); wh != nil {
		log.Info().Msg("webhook notifications enabled")
	}

	var bridge *telemetry.Bridge
	if app.MQTT.Enabled {
		bridge, err = telemetry.NewBridge(app.MQTT, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	apiServer := api.NewServer(cfg, eventBus, history, AppVersion)
	cliHandler := cli.NewCLI(cfg, eventBus, history, os.Stdin, os.Stdout)
	healthMgr := health.NewManager(cfg, eventBus)
	sched := scheduler.NewScheduler(cfg, eventBus, history, func(ctx context.Context) error {
		_, err := probe(ctx, cfg, eventBus)
		return err
	})

	attach := func(conn *network.Connection) {
		if conn == nil {
			apiServer.Attach(nil)
			cliHandler.Attach(nil)
			healthMgr.Attach(nil)
			return
		}
		apiServer.Attach(conn)
		cliHandler.Attach(conn)
		healthMgr.Attach(conn)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 4)
	shutdownCh := make(chan struct{}, 1)
	eventBus.Subscribe(events.EventShutdown, "main", func(context.Context, events.Event) error {
		select {
		case shutdownCh <- struct{}{}:
		default:
		}
		return nil
	})

	if app.API.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Int("port", app.API.Port).Msg("starting REST API server")
			if err := apiServer.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("API server failed (non-fatal)")
			}
		}()
	}

	if bridge != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := bridge.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		healthMgr.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		log.Info().Str("schedule", sched.String()).Msg("starting task scheduler")
		sched.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runSession(ctx, cfg, eventBus, attach); err != nil {
			errCh <- err
			return
		}
		select {
		case shutdownCh <- struct{}{}:
		default:
		}
	}()

	if !f.noCLI {
		go cliHandler.Start(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-shutdownCh:
		log.Info().Msg("session ended")
	case err := <-errCh:
		log.Error().Err(err).Msg("session failed, initiating shutdown")
		exitCode = 1
	}

	log.Info().Msg("initiating graceful shutdown...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("shutdown timed out after 15 seconds, forcing exit")
	}

	eventBus.Wait()
	eventBus.Stop()
	if history != nil {
		if err := history.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close history database")
		}
	}
	log.Info().Msg("cubelink stopped")
	os.Exit(exitCode)
}

func applyOverrides(cfg *config.Config, f flags) {
	client := cfg.GetClientData()
	if f.host != "" {
		client.ServerHost = f.host
	}
	if f.port != 0 {
		client.ServerPort = f.port
	}
	if f.username != "" {
		client.Username = f.username
	}
	if f.version != "" {
		client.ProtocolVersion = f.version
	}
	cfg.SetClientData(client)
}

func serverAddr(client config.ClientData) string {
	return net.JoinHostPort(client.ServerHost, strconv.Itoa(client.ServerPort))
}

func dial(ctx context.Context, cfg *config.Config, timeout time.Duration) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", serverAddr(cfg.GetClientData()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", serverAddr(cfg.GetClientData()), err)
	}
	return conn, nil
}

// probe runs one status query on a fresh connection.
func probe(ctx context.Context, cfg *config.Config, bus *events.EventBus) (*network.StatusResult, error) {
	client := cfg.GetClientData()
	netCfg := cfg.GetApplicationData().Network

	conn, err := dial(ctx, cfg, netCfg.DialTimeout())
	if err != nil {
		return nil, err
	}
	probeCtx, cancel := context.WithTimeout(ctx, netCfg.ProbeTimeout())
	defer cancel()

	version, _, err := client.ResolveVersion()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return network.Probe(probeCtx, conn, network.Options{
		Version:     version,
		Host:        client.ServerHost,
		Port:        uint16(client.ServerPort),
		ReadTimeout: netCfg.ProbeTimeout(),
		Bus:         bus,
	})
}

// runSession logs in and runs the play session until it ends. A protocol
// version of "auto" is resolved with a status probe first.
func runSession(ctx context.Context, cfg *config.Config, bus *events.EventBus, attach func(*network.Connection)) error {
	client := cfg.GetClientData()
	netCfg := cfg.GetApplicationData().Network

	version, auto, err := client.ResolveVersion()
	if err != nil {
		return err
	}
	if auto {
		st, err := probe(ctx, cfg, bus)
		if err != nil {
			return fmt.Errorf("version detection: %w", err)
		}
		detected := protocol.Version(st.Status.Version.Protocol)
		if !detected.Supported() {
			return fmt.Errorf("server speaks %s (protocol %d); supported: %s",
				st.Status.Version.Name, st.Status.Version.Protocol, config.SupportedVersionList())
		}
		version = detected
		log.Info().Str("version", version.String()).Msg("detected server protocol version")
	}

	var joiner network.SessionJoiner = connector.OfflineSession{}
	if client.OnlineMode {
		joiner = connector.NewSessionClient(client, AppVersion)
	}

	transport, err := dial(ctx, cfg, netCfg.DialTimeout())
	if err != nil {
		return err
	}
	conn, err := network.NewConnection(transport, network.Options{
		Version:     version,
		Username:    client.Username,
		Host:        client.ServerHost,
		Port:        uint16(client.ServerPort),
		QueueSize:   netCfg.QueueSize,
		ReadTimeout: netCfg.ReadTimeout(),
		Session:     joiner,
		Bus:         bus,
	})
	if err != nil {
		transport.Close()
		return err
	}

	conn.BindCommands(bus)
	attach(conn)
	defer attach(nil)

	log.Info().
		Str("server", serverAddr(client)).
		Str("username", client.Username).
		Str("version", version.String()).
		Bool("online_mode", client.OnlineMode).
		Msg("connecting")

	err = conn.Run(ctx, protocol.IntentLogin)
	var disc *network.DisconnectError
	switch {
	case err == nil:
		log.Info().Str("reason", conn.Reason()).Msg("connection closed")
		return nil
	case errors.As(err, &disc):
		log.Warn().Str("reason", disc.Reason).Msg("disconnected by server")
		return nil
	case ctx.Err() != nil:
		return nil
	default:
		return err
	}
}

func printStatus(st *network.StatusResult) {
	fmt.Printf("\n  Version:  %s (protocol %d)\n", st.Status.Version.Name, st.Status.Version.Protocol)
	fmt.Printf("  Players:  %d/%d\n", st.Status.Players.Online, st.Status.Players.Max)
	fmt.Printf("  MOTD:     %s\n", st.Status.Description.ClearString())
	fmt.Printf("  Latency:  %s\n\n", st.Latency.Round(time.Millisecond))
}
