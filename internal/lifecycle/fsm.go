// Package lifecycle implements the per-component state machine, dependency
// ordering, and phase-script execution.
package lifecycle

import (
	"sync"
	"time"
)

// State is one node of the per-component FSM.
type State string

const (
	StateInitial         State = "INITIAL"
	StateNew             State = "NEW"
	StateInstalling      State = "INSTALLING"
	StateInstalled       State = "INSTALLED"
	StateStartup         State = "STARTUP"
	StateRunning         State = "RUNNING"
	StateStopping        State = "STOPPING"
	StateKill            State = "KILL"
	StateKillWStopError  State = "KILL_WITH_STOP_ERROR"
	StateFinished        State = "FINISHED"
	StateBroken          State = "BROKEN"
	StateInactive        State = "INACTIVE"
)

// ReportableState is the public health-reporting state returned by
// retrieve_component_status, collapsing the internal
// transitional states into the reported vocabulary.
type ReportableState string

const (
	ReportNew       ReportableState = "NEW"
	ReportInstalled ReportableState = "INSTALLED"
	ReportRunning   ReportableState = "RUNNING"
	ReportStopping  ReportableState = "STOPPING"
	ReportFinished  ReportableState = "FINISHED"
	ReportBroken    ReportableState = "BROKEN"
	ReportUnknown   ReportableState = "UNKNOWN"
)

// Report collapses an internal State into the public reporting vocabulary.
func Report(s State) ReportableState {
	switch s {
	case StateInitial, StateNew:
		return ReportNew
	case StateInstalling, StateInstalled:
		return ReportInstalled
	case StateStartup, StateRunning:
		return ReportRunning
	case StateStopping:
		return ReportStopping
	case StateKill, StateKillWStopError, StateFinished:
		return ReportFinished
	case StateBroken:
		return ReportBroken
	default:
		return ReportUnknown
	}
}

// UpdateKind is the caller-requested deployment action driving a
// transition out of a stable state.
type UpdateKind string

const (
	UpdateStart     UpdateKind = "start"
	UpdateStop      UpdateKind = "stop"
	UpdateRestart   UpdateKind = "restart"
	UpdateReinstall UpdateKind = "reinstall"
)

// DefaultErrorRateCount and DefaultErrorRateWindow are the default error
// budget: K=3 failures within W=3600s transitions a component to Broken.
const (
	DefaultErrorRateCount  = 3
	DefaultErrorRateWindow = 3600 * time.Second
)

// MinRetryDelay is the minimum inter-attempt delay after a failed phase
//.
const MinRetryDelay = 1 * time.Second

// errorWindow is a sliding window of failure timestamps for one phase,
// used to decide when a component has gone Broken.
type errorWindow struct {
	mu         sync.Mutex
	failures   []time.Time
	count      int
	window     time.Duration
	nowFunc    func() time.Time
}

func newErrorWindow(count int, window time.Duration, nowFunc func() time.Time) *errorWindow {
	if count <= 0 {
		count = DefaultErrorRateCount
	}
	if window <= 0 {
		window = DefaultErrorRateWindow
	}
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &errorWindow{count: count, window: window, nowFunc: nowFunc}
}

// RecordFailure appends a failure at the current time and reports whether
// the component has now exceeded the configured error rate.
func (w *errorWindow) RecordFailure() (broken bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.nowFunc()
	cutoff := now.Add(-w.window)
	kept := w.failures[:0]
	for _, t := range w.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	w.failures = kept

	return len(w.failures) >= w.count
}

// Machine is one component's state machine instance.
type Machine struct {
	mu    sync.Mutex
	state State

	errWindows map[string]*errorWindow // phase name -> window
	nowFunc    func() time.Time
}

// NewMachine creates a Machine in StateInitial.
func NewMachine() *Machine {
	return &Machine{state: StateInitial, errWindows: make(map[string]*errorWindow), nowFunc: time.Now}
}

// NewMachineWithClock creates a Machine using nowFunc as its clock,
// letting tests control error-rate window timing deterministically.
func NewMachineWithClock(nowFunc func() time.Time) *Machine {
	return &Machine{state: StateInitial, errWindows: make(map[string]*errorWindow), nowFunc: nowFunc}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) setState(s State) {
	m.state = s
}

// Init transitions Initial -> New.
func (m *Machine) Init() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateInitial {
		m.setState(StateNew)
	}
}

// Update applies a caller-requested update given whether the component
// defines an install phase. From New/Finished it moves to Installing (if
// install is defined) or directly to Installed.
func (m *Machine) Update(kind UpdateKind, hasInstallPhase bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateNew, StateFinished:
		if kind == UpdateStart || kind == UpdateRestart || kind == UpdateReinstall {
			if hasInstallPhase {
				m.setState(StateInstalling)
			} else {
				m.setState(StateInstalled)
			}
		}
	case StateRunning:
		if kind == UpdateStop {
			m.setState(StateStopping)
		}
	}
}

// InstallSucceeded transitions Installing -> Installed.
func (m *Machine) InstallSucceeded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateInstalling {
		m.setState(StateInstalled)
	}
}

// InstallFailed records a failure in the install phase's error window and
// transitions to Broken if the error rate is exceeded, otherwise stays in
// Installing for retry.
func (m *Machine) InstallFailed() (broken bool) {
	return m.phaseFailed("install", StateInstalling)
}

// DepsReady transitions Installed -> Startup.
func (m *Machine) DepsReady() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateInstalled {
		m.setState(StateStartup)
	}
}

// StartupSucceeded transitions Startup -> Running.
func (m *Machine) StartupSucceeded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateStartup {
		m.setState(StateRunning)
	}
}

// StartupFailed records a failure in the startup phase's error window and
// transitions to Broken if the error rate is exceeded, otherwise back to
// Installed for retry.
func (m *Machine) StartupFailed() (broken bool) {
	return m.phaseFailed("startup", StateInstalled)
}

func (m *Machine) phaseFailed(phase string, retryState State) (broken bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.errWindows[phase]
	if !ok {
		w = newErrorWindow(DefaultErrorRateCount, DefaultErrorRateWindow, m.nowFunc)
		m.errWindows[phase] = w
	}
	if w.RecordFailure() {
		m.setState(StateBroken)
		return true
	}
	m.setState(retryState)
	return false
}

// StopSucceeded transitions Stopping -> Kill -> Finished.
func (m *Machine) StopSucceeded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateStopping {
		m.setState(StateKill)
		m.setState(StateFinished)
	}
}

// StopFailed transitions Stopping -> KillWStopError, then to Broken if the
// shutdown phase's error rate is exceeded, otherwise Finished.
func (m *Machine) StopFailed() (broken bool) {
	m.mu.Lock()
	if m.state == StateStopping {
		m.setState(StateKillWStopError)
	}
	m.mu.Unlock()
	return m.phaseFailed("shutdown", StateFinished)
}

// Deactivate marks a component Inactive: its dependencies could not be
// resolved, or it sits on a dependency cycle.
func (m *Machine) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setState(StateInactive)
}
