package growthbook

import (
	"sync"

	"github.com/google/uuid"
)

// GlobalState holds the process-wide singletons every Repository shares:
// the output logger and a per-process session ID, generated once at package
// init. The session ID is not attached to log lines or metric tags.
//
// Using the package-level variable directly would race; every access goes
// through the accessors below.
type GlobalState struct {
	logger    *OutputLogger
	sessionID string
	mu        sync.RWMutex
}

var global GlobalState

// Logger returns the current global output logger. It is never nil: package
// init installs a logger with zero-value options and no observability
// client, and InitializeGlobalOutputLogger only ever replaces it, so
// Logger() is always safe to call.
func (g *GlobalState) Logger() *OutputLogger {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.logger
}

// SessionID returns the process-wide session identifier.
func (g *GlobalState) SessionID() string {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.sessionID
}

// InitializeGlobalOutputLogger installs a new output logger, replacing any
// previously configured one and any observability client it held.
func InitializeGlobalOutputLogger(options OutputLoggerOptions, obs ObservabilityClient) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.logger = &OutputLogger{
		options:             options,
		observabilityClient: obs,
	}
}

func init() {
	global.mu.Lock()
	global.logger = &OutputLogger{}
	global.sessionID = uuid.NewString()
	global.mu.Unlock()
}

// Logger is the package-level accessor every component uses to reach the
// current output logger without threading it through every call.
func Logger() *OutputLogger {
	return global.Logger()
}
