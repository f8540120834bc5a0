// Package agent implements the deployment worker goroutine: it drains
// internal/deployment's queue, resolves each deployment's recipe, and
// drives the component through internal/lifecycle's state machine and
// phase executor.
package agent

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/edgecore/edgeagentd/internal/authz"
	"github.com/edgecore/edgeagentd/internal/config/kv"
	"github.com/edgecore/edgeagentd/internal/deployment"
	"github.com/edgecore/edgeagentd/internal/lifecycle"
	"github.com/edgecore/edgeagentd/internal/metrics"
	"github.com/edgecore/edgeagentd/internal/recipe"
	"github.com/edgecore/edgeagentd/internal/value"
	"github.com/edgecore/edgeagentd/pkg/logger"
)

// pollInterval is how often the worker checks the queue for new work. The
// worker has no other wake-up: deployments queued by the fsnotify watcher
// and anything offered directly (e.g. IoT jobs) are picked up on this tick.
const pollInterval = 500 * time.Millisecond

// BaseEnv supplies the environment fields common to every component on
// this device (identity, socket path), merged with per-deployment values
// by the worker before each phase runs.
type BaseEnv struct {
	ThingName      string
	Region         string
	RootCAPath     string
	NucleusVersion string
	IPCSocketPath  string
}

// Worker drains a deployment.Queue, running each offered deployment's
// recipe through the component lifecycle.
type Worker struct {
	queue    *deployment.Queue
	registry *lifecycle.Registry
	executor *lifecycle.Executor
	metrics  metrics.Collector
	config   kv.Client
	authz    *authz.Engine
	env      BaseEnv
	log      logger.Logger

	mu       sync.Mutex
	machines map[string]*lifecycle.Machine
}

// New creates a Worker. config and authzEngine may be nil, in which case a
// deployed component's default configuration is never published to the
// config store and its accessControl entries are never compiled — useful
// for tests that only exercise the lifecycle FSM.
func New(queue *deployment.Queue, registry *lifecycle.Registry, executor *lifecycle.Executor, collector metrics.Collector, configClient kv.Client, authzEngine *authz.Engine, env BaseEnv, log logger.Logger) *Worker {
	return &Worker{
		queue:    queue,
		registry: registry,
		executor: executor,
		metrics:  collector,
		config:   configClient,
		authz:    authzEngine,
		env:      env,
		log:      log,
		machines: make(map[string]*lifecycle.Machine),
	}
}

// Run blocks, processing deployments until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				d, ok := w.queue.Poll()
				if !ok {
					break
				}
				w.process(ctx, d)
			}
		}
	}
}

// process runs one dequeued deployment to completion. Poll has already
// removed d from the queue, so the outcome is only observable through the
// component's lifecycle.Registry entry and logs/metrics; there is nothing
// left in the queue to update.
func (w *Worker) process(ctx context.Context, d deployment.Deployment) {
	if d.IsCancelled {
		w.log.Info("skipping cancelled deployment", logger.String("deploymentId", d.ID))
		return
	}

	r, err := loadRecipeFromDir(d.RecipeDir)
	if err != nil {
		w.log.Warn("failed to load recipe for deployment", logger.String("deploymentId", d.ID), logger.Error(err))
		return
	}

	lc, err := r.SelectManifest(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		w.log.Warn("no manifest matched this platform", logger.String("component", r.ComponentName), logger.Error(err))
		return
	}

	machine := w.machineFor(r.ComponentName)
	machine.Init()

	w.publishDefaultConfiguration(ctx, r)
	w.compileAccessControl(r)

	workDir := d.ArtifactsDir
	if workDir == "" {
		workDir = d.RecipeDir
	}

	envCtx := lifecycle.EnvContext{
		ThingName:      w.env.ThingName,
		Region:         w.env.Region,
		RootCAPath:     w.env.RootCAPath,
		NucleusVersion: w.env.NucleusVersion,
		IPCSocketPath:  w.env.IPCSocketPath,
	}

	machine.Update(lifecycle.UpdateStart, lc.Install != nil)
	if lc.Install != nil {
		if !w.runPhase(ctx, machine, r.ComponentName, "install", lc.Install, workDir, envCtx, machine.InstallSucceeded, machine.InstallFailed) {
			return
		}
	}

	machine.DepsReady()
	phaseName, phase, ok := lc.RunPhase()
	if !ok {
		w.log.Info("component has no startup or run phase, considering it running", logger.String("component", r.ComponentName))
		return
	}

	w.runPhase(ctx, machine, r.ComponentName, phaseName, phase, workDir, envCtx, machine.StartupSucceeded, machine.StartupFailed)
}

// machineFor returns the Machine tracking component, registering a fresh
// one the first time this component is seen. The worker keeps its own
// handle alongside the registry's, since Registry exposes status lookups
// but not the *Machine itself.
func (w *Worker) machineFor(component string) *lifecycle.Machine {
	w.mu.Lock()
	defer w.mu.Unlock()

	if m, ok := w.machines[component]; ok {
		return m
	}
	m := lifecycle.NewMachine()
	w.machines[component] = m
	w.registry.Register(component, m)
	return m
}

func (w *Worker) runPhase(ctx context.Context, machine *lifecycle.Machine, component, phaseName string, phase *recipe.Phase, workDir string, env lifecycle.EnvContext, onSuccess func(), onFailure func() bool) bool {
	start := time.Now()
	res := w.executor.RunPhase(ctx, phaseName, phase, workDir, env)
	if w.metrics != nil {
		w.metrics.RecordPhaseDuration(component, phaseName, res.Err == nil, time.Since(start))
	}

	before := machine.State()
	if res.Err != nil && !res.Skipped {
		onFailure()
		w.recordTransition(component, before, machine.State())
		w.log.Warn("lifecycle phase failed", logger.String("component", component), logger.String("phase", phaseName), logger.Error(res.Err))
		return false
	}
	onSuccess()
	w.recordTransition(component, before, machine.State())
	return true
}

func (w *Worker) recordTransition(component string, from, to lifecycle.State) {
	if from == to {
		return
	}
	if w.metrics != nil {
		w.metrics.RecordLifecycleTransition(component, string(from), string(to))
	}
}

// publishDefaultConfiguration seeds services/<name>/configuration with the
// recipe's DefaultConfiguration each time a deployment of the component is
// processed.
// Writes use timestamp 0 so that any configuration a user or UpdateConfiguration
// call already wrote at a real timestamp always wins the merge (§3 invariant:
// newer timestamps overwrite, equal overwrite, older are ignored).
func (w *Worker) publishDefaultConfiguration(ctx context.Context, r *recipe.Recipe) {
	if w.config == nil || len(r.ComponentConfiguration.DefaultConfiguration) == 0 {
		return
	}
	keyPath := []string{"services", r.ComponentName, "configuration"}
	v := genericToValue(r.ComponentConfiguration.DefaultConfiguration)
	if err := w.config.Write(ctx, keyPath, v, 0); err != nil {
		w.log.Warn("failed to publish default configuration", logger.String("component", r.ComponentName), logger.Error(err))
	}
}

// compileAccessControl expands the recipe's accessControl configuration
// into authz.Engine policies scoped to this component as principal. See
// DESIGN.md for why destination is collapsed into the operation name.
func (w *Worker) compileAccessControl(r *recipe.Recipe) {
	if w.authz == nil {
		return
	}
	for _, entry := range r.AccessControlPolicies() {
		for _, rawOp := range entry.Operations {
			op := recipe.NormalizeOperation(rawOp)
			resourceType := ""
			if recipe.IsMQTTStyleOperation(op) {
				resourceType = "MQTT"
			}
			err := w.authz.AddPolicy(op, authz.Policy{
				PolicyID:          entry.PolicyID,
				PolicyDescription: entry.Description,
				Principals:        []string{r.ComponentName},
				Operations:        []string{op},
				Resources:         entry.Resources,
				ResourceType:      resourceType,
			})
			if err != nil {
				w.log.Warn("failed to compile accessControl policy", logger.String("component", r.ComponentName), logger.String("policyId", entry.PolicyID), logger.Error(err))
			}
		}
	}
}

// genericToValue converts a plain JSON-ish tree (as decoded from YAML/JSON
// recipe documents) into a value.Value, mirroring the same conversion
// duplicated at every config-tree boundary (internal/config/kv,
// internal/config/store, internal/ipc).
func genericToValue(g interface{}) *value.Value {
	switch t := g.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.BoolValue(t)
	case int:
		return value.IntValue(int64(t))
	case int64:
		return value.IntValue(t)
	case float64:
		if t == float64(int64(t)) {
			return value.IntValue(int64(t))
		}
		return value.FloatValue(t)
	case string:
		return value.StringValue(t)
	case []interface{}:
		items := make([]*value.Value, len(t))
		for i, item := range t {
			items[i] = genericToValue(item)
		}
		return value.ListValue(items)
	case map[string]interface{}:
		m := value.NewMap()
		for k, v := range t {
			m.Set(k, genericToValue(v))
		}
		return value.MapValue(m)
	default:
		return value.Null()
	}
}

// loadRecipeFromDir finds the single recipe document (.yaml or .yml) in
// dir and loads it.
func loadRecipeFromDir(dir string) (*recipe.Recipe, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		matches, err = filepath.Glob(filepath.Join(dir, "*.yml"))
		if err != nil {
			return nil, err
		}
	}
	if len(matches) == 0 {
		return nil, errNoRecipeFile(dir)
	}
	return recipe.Load(matches[0])
}
