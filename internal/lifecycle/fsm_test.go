package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInitialToNewToInstalling(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, StateInitial, m.State())
	m.Init()
	assert.Equal(t, StateNew, m.State())
	m.Update(UpdateStart, true)
	assert.Equal(t, StateInstalling, m.State())
}

func TestNewToInstalledWhenNoInstallPhase(t *testing.T) {
	m := NewMachine()
	m.Init()
	m.Update(UpdateStart, false)
	assert.Equal(t, StateInstalled, m.State())
}

func TestFullHappyPathToFinished(t *testing.T) {
	m := NewMachine()
	m.Init()
	m.Update(UpdateStart, true)
	m.InstallSucceeded()
	assert.Equal(t, StateInstalled, m.State())
	m.DepsReady()
	assert.Equal(t, StateStartup, m.State())
	m.StartupSucceeded()
	assert.Equal(t, StateRunning, m.State())
	m.Update(UpdateStop, false)
	assert.Equal(t, StateStopping, m.State())
	m.StopSucceeded()
	assert.Equal(t, StateFinished, m.State())
}

func TestRepeatedInstallFailuresGoBroken(t *testing.T) {
	now := time.Now()
	m := NewMachineWithClock(func() time.Time { return now })
	m.Init()
	m.Update(UpdateStart, true)

	broken := m.InstallFailed()
	assert.False(t, broken)
	assert.Equal(t, StateInstalling, m.State())

	broken = m.InstallFailed()
	assert.False(t, broken)

	broken = m.InstallFailed()
	assert.True(t, broken)
	assert.Equal(t, StateBroken, m.State())
}

func TestErrorWindowExpiresOldFailures(t *testing.T) {
	now := time.Now()
	m := NewMachineWithClock(func() time.Time { return now })
	m.Init()
	m.Update(UpdateStart, true)

	m.InstallFailed()
	m.InstallFailed()
	now = now.Add(DefaultErrorRateWindow + time.Second)
	broken := m.InstallFailed()
	assert.False(t, broken, "failures outside the window should not count")
}

func TestStartupFailureReturnsToInstalled(t *testing.T) {
	m := NewMachine()
	m.Init()
	m.Update(UpdateStart, true)
	m.InstallSucceeded()
	m.DepsReady()
	broken := m.StartupFailed()
	assert.False(t, broken)
	assert.Equal(t, StateInstalled, m.State())
}

func TestReportCollapsesInternalStates(t *testing.T) {
	assert.Equal(t, ReportNew, Report(StateNew))
	assert.Equal(t, ReportInstalled, Report(StateInstalling))
	assert.Equal(t, ReportRunning, Report(StateStartup))
	assert.Equal(t, ReportFinished, Report(StateKill))
	assert.Equal(t, ReportBroken, Report(StateBroken))
	assert.Equal(t, ReportUnknown, Report(StateInactive))
}
