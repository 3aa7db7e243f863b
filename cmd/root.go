package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/adaptiveedge/forge/internal/oracle"
	"github.com/adaptiveedge/forge/internal/output"
	"github.com/adaptiveedge/forge/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool

	buildVersion string
	buildCommit  string
	buildDate    string
)

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "Forge - multi-agent brief approval and build pipeline",
	Long: `forge takes short work briefs through an agent pipeline:
a panel of evaluators deliberates and votes on each brief, an architect
plans the approved ones, a critic reviews the plan, and a builder ships
the result as a pull request.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/forge/config.yaml)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("forge %s (commit %s, built %s)\n", buildVersion, buildCommit, buildDate)
	},
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "forge")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("FORGE")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "forge")

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "forge.db"))
	viper.SetDefault("oracle.backend", "cli")
	viper.SetDefault("oracle.claude_binary", "claude")
	viper.SetDefault("oracle.call_timeout", "10m")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	viper.SetDefault("pipeline.evaluator_model", "haiku")
	viper.SetDefault("pipeline.planner_model", "sonnet")
	viper.SetDefault("pipeline.builder_model", "sonnet")
	viper.SetDefault("pipeline.repo_base_path", "/var/www")
	viper.SetDefault("pipeline.history_limit", 20)
	viper.SetDefault("orchestrator.poll_interval", "10s")
	viper.SetDefault("api.port", 8080)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Initialize store lazily — only when commands actually need it.
	// This allows config/version commands to run without a db.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// newOracle builds the agent backend from config: the claude CLI by
// default, or the Anthropic API when oracle.backend is "api".
func newOracle() (oracle.Oracle, error) {
	timeout := viper.GetDuration("oracle.call_timeout")
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	switch backend := viper.GetString("oracle.backend"); backend {
	case "cli", "":
		cli := oracle.NewCLI(viper.GetString("pipeline.planner_model"))
		cli.Binary = viper.GetString("oracle.claude_binary")
		cli.DefaultTimeout = timeout
		return cli, nil
	case "api":
		apiKey := viper.GetString("anthropic.api_key")
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("oracle.backend is \"api\" but no API key is configured (set FORGE_ANTHROPIC_API_KEY or ANTHROPIC_API_KEY)")
		}
		return oracle.NewAnthropic(apiKey, viper.GetString("anthropic.model")), nil
	default:
		return nil, fmt.Errorf("unknown oracle backend %q (expected cli or api)", backend)
	}
}
