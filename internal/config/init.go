package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/temirov/contextkit/internal/utils"
)

// InitTarget identifies where configuration should be initialized.
type InitTarget string

const (
	// InitTargetLocal writes ./.contextkit.yaml in the working directory.
	InitTargetLocal InitTarget = "local"
	// InitTargetGlobal writes ~/.contextkit/config.yaml.
	InitTargetGlobal InitTarget = "global"

	configurationTemplateFormat = `workspace:
  respect_gitignore: true
  lazy: true
  concurrency: %d
  watch: false
copy:
  include_prompt: true
  include_saved_prompts: true
  include_files: true
  max_file_size: %d
  clipboard: true
storage:
  path: ~/%s/%s
logging:
  level: %s
`
	configurationFileMode      = 0o600
	configurationDirectoryMode = 0o755

	errorWorkingDirectoryFormat = "determine working directory for configuration: %w"
	errorHomeDirectoryFormat    = "resolve home directory for configuration: %w"
	errorCreateDirectoryFormat  = "create configuration directory %s: %w"
	errorUnsupportedTarget      = "unsupported init target %q"
	errorWriteFormat            = "write configuration to %s: %w"
)

// ErrConfigurationExists is returned when the target file exists and Force is not set.
var ErrConfigurationExists = errors.New("configuration file already exists")

// InitOptions controls how configuration initialization behaves.
type InitOptions struct {
	Target           InitTarget
	Force            bool
	WorkingDirectory string
}

// DefaultTemplate renders the configuration file written by InitializeConfiguration.
func DefaultTemplate() string {
	return fmt.Sprintf(configurationTemplateFormat,
		utils.DefaultConcurrency,
		utils.MaxFileSizeBytes,
		utils.GlobalConfigDirectoryName, utils.StateFileName,
		utils.DefaultLogLevel)
}

// InitializeConfiguration writes DefaultTemplate to the requested target and returns its path.
func InitializeConfiguration(options InitOptions) (string, error) {
	destinationPath, err := initDestination(options)
	if err != nil {
		return "", err
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if options.Force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	file, err := os.OpenFile(destinationPath, flags, configurationFileMode)
	if errors.Is(err, os.ErrExist) {
		return "", fmt.Errorf("%w: %s", ErrConfigurationExists, destinationPath)
	}
	if err != nil {
		return "", fmt.Errorf(errorWriteFormat, destinationPath, err)
	}
	if _, err := file.WriteString(DefaultTemplate()); err != nil {
		file.Close()
		return "", fmt.Errorf(errorWriteFormat, destinationPath, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf(errorWriteFormat, destinationPath, err)
	}
	return destinationPath, nil
}

func initDestination(options InitOptions) (string, error) {
	switch options.Target {
	case InitTargetLocal, "":
		workingDirectory := options.WorkingDirectory
		if workingDirectory == "" {
			current, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf(errorWorkingDirectoryFormat, err)
			}
			workingDirectory = current
		}
		return filepath.Join(workingDirectory, utils.ConfigFileName), nil
	case InitTargetGlobal:
		homeDirectory, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf(errorHomeDirectoryFormat, err)
		}
		configurationDirectory := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName)
		if err := os.MkdirAll(configurationDirectory, configurationDirectoryMode); err != nil {
			return "", fmt.Errorf(errorCreateDirectoryFormat, configurationDirectory, err)
		}
		return filepath.Join(configurationDirectory, utils.GlobalConfigFileName), nil
	default:
		return "", fmt.Errorf(errorUnsupportedTarget, options.Target)
	}
}
