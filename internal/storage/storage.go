package storage

import (
	"goldref/internal/config"
	"goldref/internal/domain"
)

// Storage persists and loads the last capture or verification run (e.g. for the report viewer).
type Storage interface {
	Save(run *domain.RunOutput) error
	Load() (*domain.RunOutput, error)
	// SaveOutput writes the full output (e.g. after marking failures resolved).
	SaveOutput(run *domain.RunOutput) error
}

// JSONStorage stores runs in a JSON file under the configured output path.
type JSONStorage struct {
	cfg *config.Config
}

// NewJSONStorage returns a Storage that reads/writes the config's output JSON path.
func NewJSONStorage(cfg *config.Config) *JSONStorage {
	return &JSONStorage{cfg: cfg}
}
