package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/infigaming-com/go-authredis/config"
)

var (
	configPath string
	namespace  string
	envFile    string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "authredisd",
		Short:         "Redis backed session and authorization service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if envFile == "" {
				return nil
			}
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("failed to load env file: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML, JSON or .properties config file")
	root.PersistentFlags().StringVar(&namespace, "namespace", config.DefaultNamespace, "property namespace")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file loaded before the environment overlay")

	root.AddCommand(newServeCommand(), newConfigCommand(), newHashPasswordCommand())
	return root
}

// loadProperties reads the config file, if any, and overlays the
// environment.
func loadProperties(path, ns string) (map[string]string, error) {
	props := map[string]string{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		props, err = config.ParseProperties(filepath.Ext(path), data)
		if err != nil {
			return nil, err
		}
	}
	return config.ApplyEnv(ns, props, os.Environ()), nil
}

func loadConfig(path, ns string) (*config.Config, map[string]string, error) {
	props, err := loadProperties(path, ns)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.FromProperties(ns, props)
	if err != nil {
		return nil, nil, err
	}
	return cfg, props, nil
}
