package utils

// EmptyString represents a reusable empty string constant.
const EmptyString = ""

const (
	// ConfigFileName is the name of the local configuration file.
	ConfigFileName = ".contextkit.yaml"
	// GlobalConfigDirectoryName is the directory under the user's home holding global state.
	GlobalConfigDirectoryName = ".contextkit"
	// GlobalConfigFileName is the name of the configuration file inside GlobalConfigDirectoryName.
	GlobalConfigFileName = "config.yaml"
	// StateFileName is the name of the persisted key-value file inside GlobalConfigDirectoryName.
	StateFileName = "state.json"

	// DefaultConcurrency bounds in-flight filesystem operations.
	DefaultConcurrency = 16
	// MaxFileSizeBytes is the largest file whose content is copied.
	MaxFileSizeBytes = 2 * 1024 * 1024
	// BytesPerToken is the divisor of the byte-based token estimate.
	BytesPerToken = 4

	// LoggerInitializationFailedMessageFormat is used when the logger cannot be built.
	LoggerInitializationFailedMessageFormat = "failed to initialize logger: %w"
	// ApplicationExecutionFailedMessage prefixes fatal command errors.
	ApplicationExecutionFailedMessage = "application execution failed"
)
