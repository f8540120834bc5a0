package lifecycle

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecore/edgeagentd/internal/recipe"
)

func TestRunPhaseSucceeds(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	e := &Executor{}
	phase := &recipe.Phase{Script: "echo hello"}
	res := e.RunPhase(context.Background(), "install", phase, t.TempDir(), EnvContext{})
	require.NoError(t, res.Err)
	assert.Equal(t, "hello\n", res.Stdout)
}

func TestRunPhaseSkipped(t *testing.T) {
	e := &Executor{}
	phase := &recipe.Phase{Script: "echo should-not-run", SkipIf: "exists /"}
	res := e.RunPhase(context.Background(), "install", phase, t.TempDir(), EnvContext{})
	assert.True(t, res.Skipped)
}

func TestRunPhaseNilIsSkipped(t *testing.T) {
	e := &Executor{}
	res := e.RunPhase(context.Background(), "install", nil, t.TempDir(), EnvContext{})
	assert.True(t, res.Skipped)
}

func TestRunPhaseFailureIsReported(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	e := &Executor{}
	phase := &recipe.Phase{Script: "exit 1"}
	res := e.RunPhase(context.Background(), "install", phase, t.TempDir(), EnvContext{})
	assert.Error(t, res.Err)
}

func TestRunPhaseTimeoutKillsProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	timeout := 1
	e := &Executor{}
	phase := &recipe.Phase{Script: "trap '' TERM; sleep 30", Timeout: &timeout}
	start := time.Now()
	res := e.RunPhase(context.Background(), "install", phase, t.TempDir(), EnvContext{})
	elapsed := time.Since(start)

	assert.True(t, res.TimedOut)
	assert.Error(t, res.Err)
	assert.Less(t, elapsed, 20*time.Second)
}

func TestEnvContextOmitsEmptyFields(t *testing.T) {
	env := EnvContext{SVCUID: "abc"}.Env()
	assert.Contains(t, env, "SVCUID=abc")
	for _, e := range env {
		assert.NotContains(t, e, "AWS_REGION=")
	}
}

func TestPhaseSetEnvOverridesGlobal(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	e := &Executor{GlobalSetEnv: map[string]string{"FOO": "global"}}
	phase := &recipe.Phase{Script: "echo $FOO", SetEnv: map[string]string{"FOO": "phase"}}
	res := e.RunPhase(context.Background(), "install", phase, t.TempDir(), EnvContext{})
	require.NoError(t, res.Err)
	assert.Equal(t, "phase\n", res.Stdout)
}
