package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultLocation = "New Delhi, Delhi"

// Locator resolves a client IP into a "city, region" string. It never
// fails: unknown addresses map to the configured default.
type Locator interface {
	Locate(ctx context.Context, ip string) string
}

// Static always answers with the same location.
type Static string

func (s Static) Locate(context.Context, string) string {
	return string(s)
}

type Config struct {
	BaseURL   string        `yaml:"base_url"`
	Default   string        `yaml:"default"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cache_size"`
}

// IPAPI looks addresses up through the ip-api.com JSON endpoint.
type IPAPI struct {
	baseURL  string
	fallback string
	client   *http.Client
	cache    *lru.Cache[string, string]
	logger   *slog.Logger
}

func NewIPAPI(config Config, logger *slog.Logger) *IPAPI {
	if config.BaseURL == "" {
		config.BaseURL = "http://ip-api.com/json/"
	}
	if config.Default == "" {
		config.Default = DefaultLocation
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Second
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, _ := lru.New[string, string](config.CacheSize)

	return &IPAPI{
		baseURL:  strings.TrimSuffix(config.BaseURL, "/") + "/",
		fallback: config.Default,
		client:   &http.Client{Timeout: config.Timeout},
		cache:    cache,
		logger:   logger.With("component", "geo"),
	}
}

type ipAPIResponse struct {
	Status     string `json:"status"`
	City       string `json:"city"`
	RegionName string `json:"regionName"`
}

func (l *IPAPI) Locate(ctx context.Context, ip string) string {
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil || addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() {
		return l.fallback
	}
	key := addr.String()

	if loc, ok := l.cache.Get(key); ok {
		return loc
	}

	loc, err := l.lookup(ctx, key)
	if err != nil {
		l.logger.Debug("geolocation failed, using default", "ip", key, "err", err)
		return l.fallback
	}
	l.cache.Add(key, loc)
	return loc
}

func (l *IPAPI) lookup(ctx context.Context, ip string) (string, error) {
	endpoint := l.baseURL + url.PathEscape(ip) + "?fields=status,city,regionName"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if body.Status != "success" || body.City == "" {
		return "", fmt.Errorf("lookup unsuccessful: %s", body.Status)
	}

	if body.RegionName == "" {
		return body.City, nil
	}
	return body.City + ", " + body.RegionName, nil
}
