package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/plagiscan/internal/model"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "plagiscan",
	Short: "plagiscan - heuristic web plagiarism checks",
	Long: `plagiscan checks a text for wording that also appears on the public web.

It selects representative sentences, searches the web for each one,
fetches the top results and compares their sentences lexically.

A match is evidence of overlapping wording, not proof of copying.
Common phrases, quotations and shared sources can match legitimately.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "plagiscan %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.plagiscan/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// configDir returns ~/.plagiscan
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".plagiscan"), nil
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(dir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	if err := registerDefaults(viper.GetViper(), model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	// PLAGISCAN_DETECTION_MIN_SIMILARITY overrides detection.min_similarity
	viper.SetEnvPrefix("PLAGISCAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// registerDefaults teaches viper every config key so environment
// variables are honored for keys absent from the config file
func registerDefaults(v *viper.Viper, cfg *model.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}

	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, val := range node {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := val.(map[string]any); ok {
				walk(key, child)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)

	// Keys omitted from YAML output
	for _, key := range []string{"llm.api_key", "llm.provider", "llm.model", "llm.base_url",
		"store.path", "cache.disk_dir", "output.events_log",
		"http.http_proxy", "http.https_proxy", "http.no_proxy"} {
		if !v.IsSet(key) {
			v.SetDefault(key, "")
		}
	}
	return nil
}

// loadConfig decodes defaults, config file and environment into a Config.
// Provider API keys fall back to the conventional environment variables.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Store.Path == "" {
		if dir, err := configDir(); err == nil {
			cfg.Store.Path = filepath.Join(dir, "runs.db")
		}
	}

	applyProviderEnv(&cfg.LLM)
	return cfg, nil
}

// applyProviderEnv fills provider credentials from the environment
func applyProviderEnv(llmCfg *model.LLMConfig) {
	switch strings.ToLower(llmCfg.Provider) {
	case "openai":
		if llmCfg.APIKey == "" {
			llmCfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if llmCfg.APIKey == "" {
			llmCfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "ollama":
		if llmCfg.BaseURL == "" {
			llmCfg.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	}
}

// requireProviderKey reports a missing API key before any work starts
func requireProviderKey(llmCfg model.LLMConfig) error {
	switch strings.ToLower(llmCfg.Provider) {
	case "openai":
		if llmCfg.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		if llmCfg.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	}
	return nil
}
