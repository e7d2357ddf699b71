package configtypes

// ConfigManager provides read-only access to the worker configuration.
// Implementations must be safe for concurrent use.
type ConfigManager interface {
	GetConfig() *WorkerConfig
}
