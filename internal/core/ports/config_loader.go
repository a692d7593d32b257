package ports

import "go.trai.ch/dslhost/internal/core/domain"

// ConfigLoader defines the interface for loading the host configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load walks up from cwd looking for the configuration file.
	// A missing file yields the default configuration.
	Load(cwd string) (*domain.Config, error)
}
