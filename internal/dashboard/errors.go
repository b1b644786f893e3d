package dashboard

import "errors"

// Domain-specific errors for dashboard operations.
var (
	// ErrBridgeDisabled is returned by bridge controls when the bridge is off in config.
	ErrBridgeDisabled = errors.New("dashboard: event bridge disabled")

	// ErrRealtimeDisabled means the registry reports its event feed is off.
	ErrRealtimeDisabled = errors.New("dashboard: realtime events disabled by registry")

	// ErrNoRegistry is returned by registry-backed operations without a client.
	ErrNoRegistry = errors.New("dashboard: registry client not configured")

	// ErrNoSessionStore is returned by login operations without a session store.
	ErrNoSessionStore = errors.New("dashboard: session store not configured")

	// ErrNoCredentials means no registry credentials are configured for re-login.
	ErrNoCredentials = errors.New("dashboard: no registry credentials configured")
)
