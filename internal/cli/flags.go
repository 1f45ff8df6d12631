package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/plagiscan/internal/model"
)

// checkFlags are shared by check and batch
type checkFlags struct {
	minSimilarity  float64
	maxSentences   int
	requestTimeout time.Duration
	noCache        bool
	cacheDir       string
	noFooter       bool
	noStore        bool
	noRobots       bool
	storePath      string
	eventsLog      string
	httpProxy      string
	httpsProxy     string
	llmEnabled     bool
	llmProvider    string
	llmModel       string
}

func addCheckFlags(cmd *cobra.Command, f *checkFlags) {
	fs := cmd.Flags()

	// Detection flags
	fs.Float64Var(&f.minSimilarity, "min-similarity", 0.5, "minimum similarity (0-1) for a sentence to count as matched")
	fs.IntVar(&f.maxSentences, "max-sentences", 5, "maximum sentences searched per document")

	// HTTP flags
	fs.DurationVar(&f.requestTimeout, "request-timeout", 12*time.Second, "timeout for each search or page request")
	fs.BoolVar(&f.noCache, "no-cache", false, "disable the page cache (force fresh fetches)")
	fs.StringVar(&f.cacheDir, "cache-dir", "", "persist fetched pages under this directory")
	fs.BoolVar(&f.noRobots, "no-robots", false, "do not consult robots.txt before fetching pages")
	fs.StringVar(&f.httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	fs.StringVar(&f.httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")

	// Output flags
	fs.BoolVar(&f.noFooter, "no-footer", false, "disable footer in Markdown reports")
	fs.BoolVar(&f.noStore, "no-store", false, "do not record the run in the run store")
	fs.StringVar(&f.storePath, "store", "", "run store path (default: $HOME/.plagiscan/runs.db)")
	fs.StringVar(&f.eventsLog, "events-log", "", "append structured events as JSON lines to this file")

	// LLM flags
	fs.BoolVar(&f.llmEnabled, "llm", false, "enable LLM narrative generation")
	fs.StringVar(&f.llmProvider, "llm-provider", "openai", "LLM provider (openai, anthropic, ollama)")
	fs.StringVar(&f.llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
}

// apply overrides cfg with the flags the user actually set
func (f *checkFlags) apply(cmd *cobra.Command, cfg *model.Config) {
	changed := cmd.Flags().Changed

	if changed("min-similarity") {
		cfg.Detection.MinSimilarity = f.minSimilarity
	}
	if changed("max-sentences") {
		cfg.Detection.MaxSentencesChecked = f.maxSentences
	}
	if changed("request-timeout") {
		cfg.HTTP.Timeout = f.requestTimeout
	}
	if f.noCache {
		cfg.Cache.Enabled = false
	}
	if changed("cache-dir") {
		cfg.Cache.DiskDir = f.cacheDir
	}
	if f.noRobots {
		cfg.Fetch.RespectRobots = false
	}
	if changed("http-proxy") {
		cfg.HTTP.HTTPProxy = f.httpProxy
	}
	if changed("https-proxy") {
		cfg.HTTP.HTTPSProxy = f.httpsProxy
	}
	if f.noFooter {
		cfg.Output.IncludeFooter = false
	}
	if changed("store") {
		cfg.Store.Path = f.storePath
	}
	if changed("events-log") {
		cfg.Output.EventsLog = f.eventsLog
	}
	if f.llmEnabled {
		cfg.LLM.Provider = f.llmProvider
		cfg.LLM.Model = f.llmModel
		applyProviderEnv(&cfg.LLM)
	}
	cfg.Output.Verbose = cfg.Output.Verbose || verbose
}
