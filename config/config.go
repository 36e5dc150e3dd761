package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP       HTTPConfig
	Scheduler  SchedulerConfig
	Archive    ArchiveConfig
	S3         S3Config
	Log        LogConfig
	ReportsDir string
	DBPath     string
	SitesDir   string
	Sites      map[string]*SiteConfig
}

type HTTPConfig struct {
	ProxyURL  string
	Timeout   time.Duration
	UserAgent string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

// ArchiveConfig points at the optional Postgres offer archive.
type ArchiveConfig struct {
	DBURL string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for DO Spaces, R2, etc.
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

type LogConfig struct {
	File     string
	Level    string
	MaxBytes int64
}

// SiteConfig describes one classifieds site: where the crawl starts and how
// its pages are read.
type SiteConfig struct {
	ID              string    `yaml:"id"`
	Name            string    `yaml:"name"`
	Handler         string    `yaml:"handler"`
	BaseURL         string    `yaml:"base_url"`
	DealerListTitle string    `yaml:"dealer_list_title"`
	PriceSuffix     string    `yaml:"price_suffix"`
	PageLevelPrice  bool      `yaml:"page_level_price"`
	Selectors       Selectors `yaml:"selectors"`
}

type Selectors struct {
	Pagination     string `yaml:"pagination"`
	PaginationItem string `yaml:"pagination_item"`
	DealerEntry    string `yaml:"dealer_entry"`
	SellerLink     string `yaml:"seller_link"`
	DealerTitle    string `yaml:"dealer_title"`
	OfferLink      string `yaml:"offer_link"`
	OfferItem      string `yaml:"offer_item"`
	OfferPrice     string `yaml:"offer_price"`
}

const (
	HandlerHTTP    = "http"
	HandlerBrowser = "browser"
)

const (
	defaultSiteID  = "otomoto"
	defaultBaseURL = "https://www.otomoto.pl/osobowe/poznan/?search%5Bdist%5D=50"
)

// DefaultSite is the otomoto.pl dealer crawl around Poznań.
func DefaultSite() *SiteConfig {
	site := &SiteConfig{
		ID:              defaultSiteID,
		Name:            "otomoto.pl",
		Handler:         HandlerHTTP,
		BaseURL:         defaultBaseURL,
		DealerListTitle: "Car dealers located in 50km radius from Poznań:",
	}
	site.applyDefaults()
	return site
}

func (s *SiteConfig) applyDefaults() {
	if s.Handler == "" {
		s.Handler = HandlerHTTP
	}
	if s.Name == "" {
		s.Name = s.ID
	}
	if s.PriceSuffix == "" {
		s.PriceSuffix = " PLN"
	}
	if s.DealerListTitle == "" {
		s.DealerListTitle = fmt.Sprintf("Car dealers found on %s:", s.Name)
	}

	sel := &s.Selectors
	setDefault(&sel.Pagination, "ul.om-pager")
	setDefault(&sel.PaginationItem, `li:not([class]), li[class=""]`)
	setDefault(&sel.DealerEntry, "article.has-feature-shop")
	setDefault(&sel.SellerLink, "a.offer-item__link-seller")
	setDefault(&sel.DealerTitle, "div.dealer-title")
	setDefault(&sel.OfferLink, "a.offer-title__link")
	setDefault(&sel.OfferItem, "article.offer-item")
	setDefault(&sel.OfferPrice, "span.offer-price__number")
}

func (s *SiteConfig) validate() error {
	if s.ID == "" {
		return fmt.Errorf("site config: missing id")
	}
	if s.BaseURL == "" {
		return fmt.Errorf("site %s: missing base_url", s.ID)
	}
	switch s.Handler {
	case HandlerHTTP, HandlerBrowser:
	default:
		return fmt.Errorf("site %s: unknown handler %q", s.ID, s.Handler)
	}
	return nil
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTP: HTTPConfig{
			ProxyURL:  os.Getenv("HTTP_PROXY_URL"),
			Timeout:   getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
			UserAgent: getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		},
		Scheduler: SchedulerConfig{
			Cron:     os.Getenv("SCRAPE_CRON"),
			Interval: getEnvDuration("SCRAPE_INTERVAL", 0),
		},
		Archive: ArchiveConfig{
			DBURL: os.Getenv("ARCHIVE_DB_URL"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "eu-central-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			Prefix:          getEnv("S3_PREFIX", "crawl_reports"),
		},
		Log: LogConfig{
			File:     getEnv("LOG_FILE", "crawler.log"),
			Level:    getEnv("LOG_LEVEL", "info"),
			MaxBytes: int64(getEnvInt("LOG_MAX_BYTES", 2*1024*1024)),
		},
		ReportsDir: getEnv("REPORTS_DIR", "crawl_reports"),
		DBPath:     getEnv("DB_PATH", "crawler.db"),
		SitesDir:   getEnv("SITES_DIR", filepath.Join("config", "sites")),
		Sites:      make(map[string]*SiteConfig),
	}

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}
	if len(cfg.Sites) == 0 {
		site := DefaultSite()
		cfg.Sites[site.ID] = site
	}

	return cfg, nil
}

func (c *Config) loadSiteConfigs() error {
	entries, err := os.ReadDir(c.SitesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		site, err := LoadSite(filepath.Join(c.SitesDir, entry.Name()))
		if err != nil {
			return err
		}
		if _, dup := c.Sites[site.ID]; dup {
			return fmt.Errorf("duplicate site id %q in %s", site.ID, entry.Name())
		}
		c.Sites[site.ID] = site
	}

	return nil
}

// LoadSite reads a single site YAML file and fills in default selectors.
func LoadSite(path string) (*SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var site SiteConfig
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	site.applyDefaults()
	if err := site.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &site, nil
}

// SiteIDs returns the configured site ids in a stable order.
func (c *Config) SiteIDs() []string {
	ids := make([]string, 0, len(c.Sites))
	for id := range c.Sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func setDefault(field *string, val string) {
	if strings.TrimSpace(*field) == "" {
		*field = val
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
