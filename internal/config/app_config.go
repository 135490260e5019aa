// Package config loads contextkit configuration from the global and local YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/temirov/contextkit/internal/utils"
)

const homeDirectoryPrefix = "~"

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration mirrors the configuration file. Unset values stay nil so that
// a local file only overrides what it names.
type ApplicationConfiguration struct {
	Workspace WorkspaceConfiguration `mapstructure:"workspace"`
	Copy      CopyConfiguration      `mapstructure:"copy"`
	Tokens    TokenConfiguration     `mapstructure:"tokens"`
	Storage   StorageConfiguration   `mapstructure:"storage"`
	Logging   LoggingConfiguration   `mapstructure:"logging"`
}

// WorkspaceConfiguration controls tree loading.
type WorkspaceConfiguration struct {
	RespectGitignore *bool `mapstructure:"respect_gitignore"`
	Lazy             *bool `mapstructure:"lazy"`
	Concurrency      *int  `mapstructure:"concurrency"`
	Watch            *bool `mapstructure:"watch"`
}

// CopyConfiguration holds the session defaults of a copy.
type CopyConfiguration struct {
	IncludePrompt       *bool  `mapstructure:"include_prompt"`
	IncludeSavedPrompts *bool  `mapstructure:"include_saved_prompts"`
	IncludeFiles        *bool  `mapstructure:"include_files"`
	MaxFileSize         *int64 `mapstructure:"max_file_size"`
	Clipboard           *bool  `mapstructure:"clipboard"`
}

// TokenConfiguration controls exact token counting.
type TokenConfiguration struct {
	Model string `mapstructure:"model"`
}

// StorageConfiguration locates the persisted key-value file.
type StorageConfiguration struct {
	Path string `mapstructure:"path"`
}

// LoggingConfiguration controls the application logger.
type LoggingConfiguration struct {
	Level string `mapstructure:"level"`
}

// Settings is the configuration with every default applied.
type Settings struct {
	RespectGitignore    bool
	Lazy                bool
	Concurrency         int
	Watch               bool
	IncludePrompt       bool
	IncludeSavedPrompts bool
	IncludeFiles        bool
	MaxFileSize         int64
	Clipboard           bool
	TokenModel          string
	StoragePath         string
	LogLevel            string
}

// LoadApplicationConfiguration loads configuration from global and local files.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.GlobalConfigFileName)
		globalConfig, loadErr := loadConfigurationFromPath(globalPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath, resolveErr := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveErr != nil {
		return ApplicationConfiguration{}, resolveErr
	}
	if localPath != "" {
		localConfig, loadErr := loadConfigurationFromPath(localPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(localConfig)
	}
	return merged, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath, nil
		}
		if workingDirectory == "" {
			absolute, err := filepath.Abs(explicitPath)
			if err != nil {
				return "", fmt.Errorf("resolve configuration path %s: %w", explicitPath, err)
			}
			return absolute, nil
		}
		return filepath.Join(workingDirectory, explicitPath), nil
	}
	if workingDirectory == "" {
		return "", nil
	}
	return filepath.Join(workingDirectory, utils.ConfigFileName), nil
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	if path == "" {
		return ApplicationConfiguration{}, nil
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	reader.SetConfigType("yaml")
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return config, nil
}

// Merge overlays override onto the receiver returning the combined configuration.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	result.Workspace = result.Workspace.merge(override.Workspace)
	result.Copy = result.Copy.merge(override.Copy)
	if override.Tokens.Model != "" {
		result.Tokens.Model = override.Tokens.Model
	}
	if override.Storage.Path != "" {
		result.Storage.Path = override.Storage.Path
	}
	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	return result
}

func (config WorkspaceConfiguration) merge(override WorkspaceConfiguration) WorkspaceConfiguration {
	result := config
	if override.RespectGitignore != nil {
		result.RespectGitignore = cloneBool(override.RespectGitignore)
	}
	if override.Lazy != nil {
		result.Lazy = cloneBool(override.Lazy)
	}
	if override.Concurrency != nil {
		result.Concurrency = cloneInt(override.Concurrency)
	}
	if override.Watch != nil {
		result.Watch = cloneBool(override.Watch)
	}
	return result
}

func (config CopyConfiguration) merge(override CopyConfiguration) CopyConfiguration {
	result := config
	if override.IncludePrompt != nil {
		result.IncludePrompt = cloneBool(override.IncludePrompt)
	}
	if override.IncludeSavedPrompts != nil {
		result.IncludeSavedPrompts = cloneBool(override.IncludeSavedPrompts)
	}
	if override.IncludeFiles != nil {
		result.IncludeFiles = cloneBool(override.IncludeFiles)
	}
	if override.MaxFileSize != nil {
		size := *override.MaxFileSize
		result.MaxFileSize = &size
	}
	if override.Clipboard != nil {
		result.Clipboard = cloneBool(override.Clipboard)
	}
	return result
}

// Settings applies defaults to every unset value. An unset storage path resolves under
// the home directory; it stays empty when no home directory is available.
func (config ApplicationConfiguration) Settings() Settings {
	settings := Settings{
		RespectGitignore:    boolOrDefault(config.Workspace.RespectGitignore, true),
		Lazy:                boolOrDefault(config.Workspace.Lazy, true),
		Concurrency:         utils.DefaultConcurrency,
		Watch:               boolOrDefault(config.Workspace.Watch, false),
		IncludePrompt:       boolOrDefault(config.Copy.IncludePrompt, true),
		IncludeSavedPrompts: boolOrDefault(config.Copy.IncludeSavedPrompts, true),
		IncludeFiles:        boolOrDefault(config.Copy.IncludeFiles, true),
		MaxFileSize:         utils.MaxFileSizeBytes,
		Clipboard:           boolOrDefault(config.Copy.Clipboard, true),
		TokenModel:          config.Tokens.Model,
		StoragePath:         expandHome(config.Storage.Path),
		LogLevel:            config.Logging.Level,
	}
	if config.Workspace.Concurrency != nil && *config.Workspace.Concurrency > 0 {
		settings.Concurrency = *config.Workspace.Concurrency
	}
	if config.Copy.MaxFileSize != nil && *config.Copy.MaxFileSize > 0 {
		settings.MaxFileSize = *config.Copy.MaxFileSize
	}
	if settings.StoragePath == "" {
		if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
			settings.StoragePath = filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.StateFileName)
		}
	}
	if settings.LogLevel == "" {
		settings.LogLevel = utils.DefaultLogLevel
	}
	return settings
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, homeDirectoryPrefix) {
		return path
	}
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDirectory, strings.TrimPrefix(path, homeDirectoryPrefix))
}

func boolOrDefault(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
