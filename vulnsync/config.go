package vulnsync

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	DefaultFeedBaseURL       = "https://services.nvd.nist.gov/rest/json"
	DefaultRequestDelaySecs  = 6
	DefaultAnnouncementURL   = "https://lore.kernel.org/linux-cve-announce"
	DefaultAnnouncementLimit = 100
)

type Config struct {
	DBPath    string     `toml:"db_path"`
	Feed      FeedConfig `toml:"feed"`
	Announce  AnnounceConfig
	Rewriters []Rewriter
}

// FeedConfig configures the CPE/CVE feed client. With an API key configured
// the feed allows a much higher request rate.
type FeedConfig struct {
	BaseURL          string `toml:"base_url"`
	APIKey           string `toml:"api_key"`
	RequestDelaySecs int    `toml:"request_delay"`
}

type AnnounceConfig struct {
	BaseURL string `toml:"base_url"`
	Limit   int
}

// Rewriter is a config-driven rule that normalizes CPE name fields during
// import. Predicate and RewriteRule are expr programs evaluated against the
// decomposed name.
type Rewriter struct {
	Field       string
	Predicate   string
	RewriteRule string `toml:"rewrite_rule"`
}

func ParseConfig(config io.Reader) (c Config, err error) {
	tomlData, err := io.ReadAll(config)
	if err != nil {
		return c, fmt.Errorf("could not read config file: %w", err)
	}
	_, err = toml.Decode(string(tomlData), &c)
	if err != nil {
		return c, fmt.Errorf("could not decode toml: %w", err)
	}
	c.applyDefaults()
	return c, nil
}

func ParseConfigFromFile(path string) (c Config, err error) {
	f, err := os.Open(path)
	if err != nil {
		return c, fmt.Errorf("could not open config file: %w", err)
	}
	defer f.Close()

	return ParseConfig(f)
}

func (c *Config) applyDefaults() {
	if c.Feed.BaseURL == "" {
		c.Feed.BaseURL = DefaultFeedBaseURL
	}
	if c.Feed.RequestDelaySecs == 0 {
		c.Feed.RequestDelaySecs = DefaultRequestDelaySecs
	}
	if c.Announce.BaseURL == "" {
		c.Announce.BaseURL = DefaultAnnouncementURL
	}
	if c.Announce.Limit == 0 {
		c.Announce.Limit = DefaultAnnouncementLimit
	}
}
