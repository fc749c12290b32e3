package domain

import (
	"context"
)

// NotePredictor classifies free-text clinical notes
type NotePredictor interface {
	Predict(ctx context.Context, text string) (Prediction, error)
}

// DischargeFetcher retrieves a patient's most recent discharge summary.
// A missing document is reported as a ServiceError of KindNotFound.
type DischargeFetcher interface {
	FetchDischargeSummary(ctx context.Context, patientID string) (*DischargeSummary, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetModelConfig() *ModelConfig
	GetDocumentStoreConfig() *DocumentStoreConfig
	GetDatabaseConfig() *DatabaseConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
