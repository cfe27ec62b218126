// Package main is the entry point for strategosd, the orchestration engine
// daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	viperlib "github.com/spf13/viper"

	"github.com/strategos/strategos/internal/config"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config

	viper = viperlib.New()
)

var rootCmd = &cobra.Command{
	Use:     "strategosd",
	Short:   "Strategos worker orchestration engine daemon",
	Long:    `strategosd spawns, monitors, and retires multiplexer-backed AI CLI workers for a project tree.`,
	Version: version,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .strategos/config.yaml)")
	rootCmd.PersistentFlags().String("thea-root", "", "project root boundary (default: current directory)")
	rootCmd.PersistentFlags().String("persist-dir", "", "directory for workers.json, checkpoints, and bulldoze state")
	rootCmd.PersistentFlags().String("health-addr", "", "address to serve the liveness endpoint on (empty disables it)")
	rootCmd.PersistentFlags().Bool("tracing", true, "export lifecycle/control spans to stdout")

	_ = viper.BindPFlag("thea_root", rootCmd.PersistentFlags().Lookup("thea-root"))
	_ = viper.BindPFlag("persist_dir", rootCmd.PersistentFlags().Lookup("persist-dir"))
	_ = viper.BindPFlag("health_addr", rootCmd.PersistentFlags().Lookup("health-addr"))
	_ = viper.BindPFlag("tracing_enabled", rootCmd.PersistentFlags().Lookup("tracing"))
}

func initConfig() {
	if cfgFile == "" {
		if _, err := os.Stat(".strategos/config.yaml"); err == nil {
			cfgFile = ".strategos/config.yaml"
		}
	}

	loaded, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "strategosd: loading config: %v\n", err)
		loaded = config.Defaults()
	}
	cfg = loaded

	viper.SetEnvPrefix("STRATEGOS")
	viper.AutomaticEnv()
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		_ = viper.ReadInConfig()
	}

	if v := viper.GetString("thea_root"); v != "" {
		cfg.TheaRoot = v
	}
	if v := viper.GetString("persist_dir"); v != "" {
		cfg.PersistDir = v
	}
	if v := viper.GetString("health_addr"); v != "" {
		cfg.HealthAddr = v
	}
	if rootCmd.PersistentFlags().Changed("tracing") {
		cfg.TracingEnabled = viper.GetBool("tracing_enabled")
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
