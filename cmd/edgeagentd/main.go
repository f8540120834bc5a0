// Command edgeagentd is the device-local agent daemon: one process, one
// goroutine tree, every subsystem (config bus, IPC broker, deployment
// watcher and worker, fleet status, token exchange, diagnostics) wired
// together and started here, joined on a single signal handler for an
// orderly shutdown.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgecore/edgeagentd/internal/agent"
	"github.com/edgecore/edgeagentd/internal/authz"
	"github.com/edgecore/edgeagentd/internal/auth/jwt"
	"github.com/edgecore/edgeagentd/internal/bootstrap"
	"github.com/edgecore/edgeagentd/internal/config"
	"github.com/edgecore/edgeagentd/internal/config/kv"
	"github.com/edgecore/edgeagentd/internal/config/store"
	"github.com/edgecore/edgeagentd/internal/corebus"
	"github.com/edgecore/edgeagentd/internal/debugapi"
	"github.com/edgecore/edgeagentd/internal/deployment"
	"github.com/edgecore/edgeagentd/internal/fleetstatus"
	"github.com/edgecore/edgeagentd/internal/ipc"
	"github.com/edgecore/edgeagentd/internal/lifecycle"
	"github.com/edgecore/edgeagentd/internal/metrics"
	"github.com/edgecore/edgeagentd/internal/mqttsession"
	"github.com/edgecore/edgeagentd/internal/tes"
	loggerPkg "github.com/edgecore/edgeagentd/pkg/logger"
)

// Build information, set via -ldflags at release time.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// defaultProvisioningTemplate is used when resolving identity finds no
// existing thing certificate and must request one.
const defaultProvisioningTemplate bootstrap.TemplateName = "EdgeAgentProvisioning"

func main() {
	configPath := flag.String("config", "/etc/edgeagentd/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("edgeagentd %s (commit %s) built on %s\n", version, commit, buildDate)
		return
	}

	var cfg config.Config
	if err := config.NewYAMLLoader(*configPath).Load(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := loggerPkg.NewZapLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting edgeagentd", loggerPkg.String("version", version), loggerPkg.String("commit", commit))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := metrics.NewCollector("prometheus", log)

	addressTable := corebus.NewAddressTable(cfg.Runtime.SocketDir)

	configStore := store.New()
	configBus := corebus.NewServer(corebus.AddressConfig, addressTable, log)
	store.RegisterHandlers(configBus, configStore)
	go func() {
		if err := configBus.Serve(ctx); err != nil {
			log.Error("config core-bus server stopped", loggerPkg.Error(err))
		}
	}()

	configClient, err := dialConfigClient(addressTable, log)
	if err != nil {
		log.Fatal("failed to connect to config service", loggerPkg.Error(err))
	}
	kvClient := kv.New(configClient)

	identity := resolveIdentity(ctx, &cfg, kvClient, log)

	registry := lifecycle.NewRegistry()
	executor := &lifecycle.Executor{}
	authzEngine := authz.NewEngine()

	secretKey := make([]byte, 32)
	if _, err := rand.Read(secretKey); err != nil {
		log.Fatal("failed to generate SVCUID signing key", loggerPkg.Error(err))
	}
	svcuidGen := jwt.NewJWTGenerator(secretKey, "edgeagentd", time.Hour)

	var cloudSession *mqttsession.Session
	if cfg.Identity.DataEndpoint != "" {
		cloudSession, err = mqttsession.New(mqttsession.Config{
			ThingName:       identity.ThingName,
			Endpoint:        cfg.Identity.DataEndpoint,
			RootCAPath:      identity.RootCAPath,
			CertificatePath: identity.CertificatePath,
			PrivateKeyPath:  identity.PrivateKeyPath,
		}, log)
		if err != nil {
			log.Fatal("failed to build MQTT session", loggerPkg.Error(err))
		}
		if err := cloudSession.Connect(ctx); err != nil {
			log.Warn("initial MQTT connect failed, will retry in background", loggerPkg.Error(err))
		}
	}

	ipcBroker := ipc.NewBroker(
		corebus.IPCSocketPath(cfg.Runtime.SocketDir),
		log, svcuidGen, authzEngine, registry, kvClient,
		cloudAdapter{cloudSession},
		ipc.SystemInfo{ThingName: identity.ThingName, RootCAPath: identity.RootCAPath, RootPath: cfg.Runtime.RootPath},
	)
	go func() {
		if err := ipcBroker.Serve(ctx); err != nil {
			log.Error("IPC broker stopped", loggerPkg.Error(err))
		}
	}()

	deployQueue := deployment.NewQueue()
	if existing := deployment.LoadState(cfg.Runtime.RootPath, log); len(existing) > 0 {
		log.Info("resuming with deployment history from previous run", loggerPkg.Int("count", len(existing)))
	}
	watcher, err := deployment.NewWatcher(deployQueue, log, cfg.Runtime.DeploymentDir, cfg.Runtime.RootPath)
	if err != nil {
		log.Fatal("failed to start deployment watcher", loggerPkg.Error(err))
	}
	go watcher.Run(ctx)

	worker := agent.New(deployQueue, registry, executor, collector, kvClient, authzEngine, agent.BaseEnv{
		ThingName:      identity.ThingName,
		Region:         cfg.Identity.Region,
		RootCAPath:     identity.RootCAPath,
		NucleusVersion: cfg.Runtime.NucleusVersion,
		IPCSocketPath:  corebus.IPCSocketPath(cfg.Runtime.SocketDir),
	}, log)
	go worker.Run(ctx)

	publisher := fleetstatus.New(fleetstatus.Identity{
		GGCVersion:   cfg.Runtime.NucleusVersion,
		Platform:     "linux",
		Architecture: "amd64",
		Runtime:      "aws_nucleus_lite",
		ThingName:    identity.ThingName,
	}, kvClient, registry, cloudAdapter{cloudSession}, collector, log)
	if err := publisher.Publish(ctx, fleetstatus.TriggerNucleusLaunch); err != nil {
		log.Warn("initial fleet status publish failed", loggerPkg.Error(err))
	}
	go publisher.RunCadence(ctx)

	if cfg.Identity.RoleAlias != "" {
		fetcher, err := tes.NewHTTPFetcher(tes.RoleAliasConfig{
			ThingName:       identity.ThingName,
			RoleAlias:       cfg.Identity.RoleAlias,
			CredEndpoint:    cfg.Identity.CredEndpoint,
			RootCAPath:      identity.RootCAPath,
			CertificatePath: identity.CertificatePath,
			PrivateKeyPath:  identity.PrivateKeyPath,
		})
		if err != nil {
			log.Warn("failed to build TES credentials fetcher, token exchange disabled", loggerPkg.Error(err))
		} else {
			cache := tes.NewCache(fetcher, log)
			tesAddr := fmt.Sprintf("%s:%d", cfg.TES.BindHost, cfg.TES.Port)
			tesServer, err := tes.NewServer(tesAddr, cache, log)
			if err != nil {
				log.Warn("failed to start token exchange service", loggerPkg.Error(err))
			} else {
				go func() {
					if err := tesServer.Serve(ctx); err != nil {
						log.Error("token exchange service stopped", loggerPkg.Error(err))
					}
				}()
			}
		}
	}

	var debugServer *debugapi.Server
	if cfg.Debug.Enabled {
		debugServer = debugapi.NewServer(cfg.Debug, registry, collector, version, buildDate, log)
		go func() {
			if err := debugServer.Start(); err != nil {
				log.Error("debug API server stopped", loggerPkg.Error(err))
			}
		}()
	}

	stopCh := setupSignalHandler()
	<-stopCh

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if debugServer != nil {
		if err := debugServer.Stop(shutdownCtx); err != nil {
			log.Warn("error stopping debug API server", loggerPkg.Error(err))
		}
	}
	if cloudSession != nil {
		cloudSession.Close()
	}
	deployment.DumpState(cfg.Runtime.RootPath, deployQueue, log)

	log.Info("shutdown complete")
}

// resolveIdentity bootstraps the device's thing identity, falling back to
// the statically configured one when no provisioner is wired (fleet
// provisioning's HTTPS exchange is out of scope; see DESIGN.md).
func resolveIdentity(ctx context.Context, cfg *config.Config, kvClient kv.Client, log loggerPkg.Logger) bootstrap.Identity {
	resolver := bootstrap.NewResolver(kvClient, unsupportedProvisioner{}, log)
	identity, err := resolver.Resolve(ctx, defaultProvisioningTemplate)
	if err == nil {
		return identity
	}
	log.Warn("falling back to statically configured identity", loggerPkg.Error(err))
	return bootstrap.Identity{
		ThingName:       cfg.Identity.ThingName,
		CertificatePath: cfg.Identity.CertificateFile,
		PrivateKeyPath:  cfg.Identity.PrivateKeyFile,
		RootCAPath:      cfg.Identity.RootCAPath,
	}
}

// unsupportedProvisioner satisfies bootstrap.Provisioner without
// performing the fleet-provisioning HTTPS exchange, which is treated
// here as an external black box out of scope for this module.
type unsupportedProvisioner struct{}

func (unsupportedProvisioner) Provision(ctx context.Context, templateName string) (bootstrap.Identity, error) {
	return bootstrap.Identity{}, fmt.Errorf("fleet provisioning is not implemented; configure identity.* statically")
}

// cloudAdapter adapts a possibly-nil *mqttsession.Session to the narrower
// CloudSession/MQTTPublisher interfaces the IPC broker and fleet status
// publisher depend on, so the agent still runs (minus cloud connectivity)
// when no data endpoint is configured.
type cloudAdapter struct {
	session *mqttsession.Session
}

func (c cloudAdapter) Publish(topic string, qos byte, payload []byte) error {
	if c.session == nil {
		return fmt.Errorf("no MQTT session configured")
	}
	return c.session.Publish(topic, qos, payload)
}

func (c cloudAdapter) Subscribe(filter string, handler func(topic string, payload []byte)) (func(), error) {
	if c.session == nil {
		return func() {}, fmt.Errorf("no MQTT session configured")
	}
	return c.session.Subscribe(filter, handler)
}

// dialConfigClient connects to the in-process gg_config core-bus server,
// retrying briefly since the server goroutine may not have bound its
// listener yet.
func dialConfigClient(table *corebus.AddressTable, log loggerPkg.Logger) (*corebus.Client, error) {
	var lastErr error
	for i := 0; i < 20; i++ {
		client, err := corebus.Dial(table, corebus.AddressConfig)
		if err == nil {
			return client, nil
		}
		lastErr = err
		log.Debug("config core-bus not ready yet, retrying", loggerPkg.Int("attempt", i+1), loggerPkg.Error(err))
		time.Sleep(50 * time.Millisecond)
	}
	return nil, lastErr
}

// setupSignalHandler returns a channel that receives once on SIGINT or
// SIGTERM, for the main goroutine to block on before starting an orderly
// shutdown.
func setupSignalHandler() chan os.Signal {
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	return stopCh
}
