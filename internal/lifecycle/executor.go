package lifecycle

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
	"github.com/edgecore/edgeagentd/internal/recipe"
)

// KillGracePeriod is the extra time given to a phase process between a
// graceful stop signal and a forced kill, once its timeout has elapsed
//.
const KillGracePeriod = 5 * time.Second

// EnvContext carries the per-component environment values the executor
// augments every phase's environment with.
type EnvContext struct {
	SVCUID                        string
	AuthorizationToken             string
	CredentialsFullURI             string
	ThingName                      string
	Region                         string
	RootCAPath                     string
	NucleusVersion                 string
	IPCSocketPath                  string
}

// Env renders the base environment variable set for a phase process. Any
// field left empty is omitted rather than exported as an empty string.
func (c EnvContext) Env() []string {
	var env []string
	add := func(key, val string) {
		if val != "" {
			env = append(env, key+"="+val)
		}
	}
	add("AWS_GG_NUCLEUS_DOMAIN_SOCKET_FILEPATH_FOR_COMPONENT", c.IPCSocketPath)
	add("SVCUID", c.SVCUID)
	add("AWS_CONTAINER_AUTHORIZATION_TOKEN", c.AuthorizationToken)
	add("AWS_CONTAINER_CREDENTIALS_FULL_URI", c.CredentialsFullURI)
	add("AWS_IOT_THING_NAME", c.ThingName)
	add("AWS_REGION", c.Region)
	add("AWS_DEFAULT_REGION", c.Region)
	add("GG_ROOT_CA_PATH", c.RootCAPath)
	add("GGC_VERSION", c.NucleusVersion)
	return env
}

// PhaseResult is the outcome of one phase execution.
type PhaseResult struct {
	Skipped  bool
	TimedOut bool
	Killed   bool
	Stdout   string
	Stderr   string
	Err      error
}

// Executor runs recipe phase scripts as shell subprocesses.
type Executor struct {
	// GlobalSetEnv is applied before a phase's own SetEnv, which wins on
	// conflict.
	GlobalSetEnv map[string]string
}

// RunPhase executes phase under workDir with phaseName identifying it for
// timeout-default purposes. env supplies the component's
// base environment (SVCUID, credentials, and so on).
func (e *Executor) RunPhase(ctx context.Context, phaseName string, phase *recipe.Phase, workDir string, env EnvContext) PhaseResult {
	if phase == nil {
		return PhaseResult{Skipped: true}
	}
	if phase.SkipIf != "" && recipe.ShouldSkip(phase.SkipIf) {
		return PhaseResult{Skipped: true}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if secs, ok := phase.TimeoutSeconds(phaseName); ok {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	cmd := exec.Command("/bin/sh", "-c", phase.Script)
	cmd.Dir = workDir
	cmd.Env = append(append([]string{}, os.Environ()...), buildEnv(e.GlobalSetEnv, phase.SetEnv, env)...)
	// Run the phase script in its own process group so a timeout can signal
	// the whole tree (shell + any children it spawned) instead of just the
	// shell itself.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return PhaseResult{Err: apierrors.WrapKind(err, apierrors.ErrFailure, "start phase %s", phaseName)}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return PhaseResult{Stdout: stdout.String(), Stderr: stderr.String(), Err: wrapExitErr(phaseName, err)}
	case <-runCtx.Done():
		return e.killAfterTimeout(cmd, done, phaseName, &stdout, &stderr)
	}
}

// killAfterTimeout sends a graceful stop signal to the phase's whole
// process group, waits up to KillGracePeriod, then force-kills the group.
func (e *Executor) killAfterTimeout(cmd *exec.Cmd, done chan error, phaseName string, stdout, stderr *bytes.Buffer) PhaseResult {
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)

	select {
	case <-done:
		return PhaseResult{TimedOut: true, Stdout: stdout.String(), Stderr: stderr.String(),
			Err: apierrors.WrapKind(fmt.Errorf("phase %s timed out", phaseName), apierrors.ErrFailure, "phase timeout")}
	case <-time.After(KillGracePeriod):
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-done
		return PhaseResult{TimedOut: true, Killed: true, Stdout: stdout.String(), Stderr: stderr.String(),
			Err: apierrors.WrapKind(fmt.Errorf("phase %s killed after timeout", phaseName), apierrors.ErrFailure, "phase timeout")}
	}
}

func buildEnv(global, phaseSpecific map[string]string, base EnvContext) []string {
	merged := make(map[string]string, len(global)+len(phaseSpecific))
	for k, v := range global {
		merged[k] = v
	}
	for k, v := range phaseSpecific {
		merged[k] = v
	}
	env := base.Env()
	for k, v := range merged {
		env = append(env, k+"="+v)
	}
	return env
}

func wrapExitErr(phaseName string, err error) error {
	if err == nil {
		return nil
	}
	return apierrors.WrapKind(err, apierrors.ErrFailure, "phase %s exited with error", phaseName)
}
