// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/dslhost/internal/adapters/config"
	_ "go.trai.ch/dslhost/internal/adapters/logger"
	_ "go.trai.ch/dslhost/internal/adapters/telemetry"
	_ "go.trai.ch/dslhost/internal/adapters/watcher"
	// Register app nodes.
	_ "go.trai.ch/dslhost/internal/app"
)
