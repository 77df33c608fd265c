/*
Copyright © 2025 The Forge Authors
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/forgeproj/forge/internal/logger"
	"github.com/forgeproj/forge/types"
)

const (
	configName = ".forge"
	envPrefix  = "FORGE"
)

// GlobalAppConfig holds the global application configuration instance.
var GlobalAppConfig types.AppConfig

var validate = validator.New()

// InitConfig reads in the config file and matching environment variables.
func InitConfig() {
	// A .env file is optional; missing is fine.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix) // e.g. FORGE_VERBOSE, FORGE_LLM_APIKEY
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfgFileFlag := viper.GetString("config")
	rootDir := viper.GetString("project.rootDir")
	if rootDir == "" {
		rootDir = ".forge"
	}

	if cfgFileFlag != "" {
		viper.SetConfigFile(cfgFileFlag)
	} else if _, err := os.Stat(rootDir); !os.IsNotExist(err) {
		// Project-local config takes precedence: ./.forge/.forge.yaml
		viper.AddConfigPath(rootDir)
		viper.SetConfigName(configName)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(configName)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if cfgFileFlag != "" {
				fmt.Fprintln(os.Stderr, "Error: specified config file not found:", cfgFileFlag)
			}
		} else {
			fmt.Fprintln(os.Stderr, "Error reading config file:", viper.ConfigFileUsed(), "-", err)
		}
	} else if viper.GetBool("verbose") {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	viper.SetDefault("project.rootDir", ".forge")

	viper.SetDefault("store.backend", "sqlite")
	viper.SetDefault("store.format", "json")

	viper.SetDefault("api.requestTimeoutSeconds", 30)

	viper.SetDefault("llm.provider", "google")
	viper.SetDefault("llm.preset", "fast")
	viper.SetDefault("llm.requestTimeoutSeconds", 120)

	viper.SetDefault("editor.autosaveDelayMs", 1000)

	if err := viper.Unmarshal(&GlobalAppConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling config: %s\n", err)
		os.Exit(1)
	}
	if GlobalAppConfig.Project.RootDir == "" {
		GlobalAppConfig.Project.RootDir = viper.GetString("project.rootDir")
	}

	if err := validate.Struct(&GlobalAppConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation error: %s\n", err)
		os.Exit(1)
	}

	setupLogging()
	logger.SetBasePath(GlobalAppConfig.Project.RootDir)
}

func setupLogging() {
	level := slog.LevelWarn
	if GlobalAppConfig.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// GetConfig returns a pointer to the global types.AppConfig instance.
func GetConfig() *types.AppConfig {
	return &GlobalAppConfig
}

// SetActiveProject persists the active project ID in the configuration so
// subsequent commands do not have to re-select it.
func SetActiveProject(projectID, name string) error {
	GlobalAppConfig.Project.ID = projectID
	GlobalAppConfig.Project.Name = name
	viper.Set("project.id", projectID)
	viper.Set("project.name", name)

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		dir := GlobalAppConfig.Project.RootDir
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		configFile = filepath.Join(dir, configName+".yaml")
		viper.SetConfigFile(configFile)
	}
	return viper.WriteConfig()
}
