package model

import "time"

// Config holds the complete plagiscan configuration
type Config struct {
	HTTP      HTTPConfig      `yaml:"http" mapstructure:"http"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Pacing    PacingConfig    `yaml:"pacing" mapstructure:"pacing"`
	Detection DetectionConfig `yaml:"detection" mapstructure:"detection"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
}

// HTTPConfig configures every outbound request
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgents   []string      `yaml:"user_agents" mapstructure:"user_agents"` // Identity pool, one picked per request
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxRedirects int           `yaml:"max_redirects" mapstructure:"max_redirects"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// SearchConfig configures web search discovery
type SearchConfig struct {
	Endpoint    string   `yaml:"endpoint" mapstructure:"endpoint"`         // e.g. https://www.google.com/search
	QueryParam  string   `yaml:"query_param" mapstructure:"query_param"`   // Query string parameter name
	MaxResults  int      `yaml:"max_results" mapstructure:"max_results"`   // Candidates kept per query
	Strategies  []string `yaml:"strategies" mapstructure:"strategies"`     // Extraction strategies in priority order
	ExtraParams []string `yaml:"extra_params" mapstructure:"extra_params"` // key=value pairs appended to every query
}

// FetchConfig configures source page fetching
type FetchConfig struct {
	RespectRobots     bool    `yaml:"respect_robots" mapstructure:"respect_robots"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // Per source domain
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// PacingConfig configures delays between outbound calls
type PacingConfig struct {
	QueryDelayMin     time.Duration `yaml:"query_delay_min" mapstructure:"query_delay_min"`
	QueryDelayMax     time.Duration `yaml:"query_delay_max" mapstructure:"query_delay_max"`
	CandidateDelay    time.Duration `yaml:"candidate_delay" mapstructure:"candidate_delay"`
	RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown" mapstructure:"rate_limit_cooldown"`
}

// DetectionConfig configures sentence selection and matching
type DetectionConfig struct {
	MinWords            int     `yaml:"min_words" mapstructure:"min_words"`
	MinSimilarity       float64 `yaml:"min_similarity" mapstructure:"min_similarity"`
	MaxSentencesChecked int     `yaml:"max_sentences_checked" mapstructure:"max_sentences_checked"`
	PreferredMinWords   int     `yaml:"preferred_min_words" mapstructure:"preferred_min_words"`
	PreferredMaxWords   int     `yaml:"preferred_max_words" mapstructure:"preferred_max_words"`
	MinPreferred        int     `yaml:"min_preferred" mapstructure:"min_preferred"`           // Below this, fall back to raw sentences
	FallbackSentences   int     `yaml:"fallback_sentences" mapstructure:"fallback_sentences"` // Raw sentences taken on fallback
	MaxSourceSentences  int     `yaml:"max_source_sentences" mapstructure:"max_source_sentences"`
	MinInputChars       int     `yaml:"min_input_chars" mapstructure:"min_input_chars"`
}

// CacheConfig configures the fetched page cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskDir   string        `yaml:"disk_dir,omitempty" mapstructure:"disk_dir"` // Empty disables the disk layer
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// StoreConfig configures run persistence
type StoreConfig struct {
	Path string `yaml:"path,omitempty" mapstructure:"path"` // SQLite file, empty disables persistence
}

// LLMConfig configures the optional narrative summary
type LLMConfig struct {
	Provider  string `yaml:"provider,omitempty" mapstructure:"provider"`
	Model     string `yaml:"model,omitempty" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OutputConfig configures report rendering
type OutputConfig struct {
	Verbose       bool   `yaml:"verbose" mapstructure:"verbose"`
	Format        string `yaml:"format" mapstructure:"format"` // text, json, yaml, md
	IncludeFooter bool   `yaml:"include_footer" mapstructure:"include_footer"`
	EventsLog     string `yaml:"events_log,omitempty" mapstructure:"events_log"` // JSONL event file
}

// DefaultUserAgents is the identity pool used when none is configured
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	agents := make([]string, len(DefaultUserAgents))
	copy(agents, DefaultUserAgents)

	return &Config{
		HTTP: HTTPConfig{
			Timeout:      12 * time.Second,
			UserAgents:   agents,
			MaxBodyBytes: 2_000_000,
			MaxRedirects: 3,
		},
		Search: SearchConfig{
			Endpoint:    "https://www.google.com/search",
			QueryParam:  "q",
			MaxResults:  5,
			Strategies:  []string{"result-block", "generic-block", "heading-anchor"},
			ExtraParams: []string{"hl=en"},
		},
		Fetch: FetchConfig{
			RespectRobots:     true,
			RequestsPerSecond: 1,
			BurstSize:         2,
		},
		Pacing: PacingConfig{
			QueryDelayMin:     3 * time.Second,
			QueryDelayMax:     6 * time.Second,
			CandidateDelay:    1 * time.Second,
			RateLimitCooldown: 60 * time.Second,
		},
		Detection: DetectionConfig{
			MinWords:            4,
			MinSimilarity:       0.5,
			MaxSentencesChecked: 5,
			PreferredMinWords:   8,
			PreferredMaxWords:   25,
			MinPreferred:        3,
			FallbackSentences:   5,
			MaxSourceSentences:  100,
			MinInputChars:       20,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 800,
		},
		Output: OutputConfig{
			Format:        "text",
			IncludeFooter: true,
		},
	}
}
