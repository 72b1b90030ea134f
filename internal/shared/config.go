package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Config struct {
	AppEnv           string
	HTTPAddr         string
	MetricsAddr      string
	MySQLDSN         string
	RedisAddr        string
	RedisDB          int
	RedisPass        string
	SupplierBase     string
	SupplierKey      string
	Workers          int
	ImportItemIDs    []int64
	CacheTTL         time.Duration
	MarkupCeilingPct decimal.Decimal
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:           env("APP_ENV", "prod"),
		HTTPAddr:         env("HTTP_ADDR", ":8080"),
		MetricsAddr:      env("METRICS_ADDR", ":9100"),
		MySQLDSN:         env("MYSQL_DSN", "root:root@tcp(localhost:3306)/tripquote?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:        env("REDIS_ADDR", "localhost:6379"),
		RedisPass:        env("REDIS_PASSWORD", ""),
		SupplierBase:     env("SUPPLIER_BASE_URL", "https://content.supplier.example/v1"),
		SupplierKey:      env("SUPPLIER_API_KEY", ""),
		Workers:          atoi("IMPORT_WORKERS", 8),
		ImportItemIDs:    ids(env("IMPORT_ITEM_IDS", "")),
		CacheTTL:         time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		MarkupCeilingPct: pct("MARKUP_CEILING_PCT", "50"),
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// pct falls back to def when the env value is not a decimal.
func pct(k, def string) decimal.Decimal {
	v := env(k, def)
	d, err := decimal.NewFromString(v)
	if err != nil {
		log.Warn().Str("key", k).Str("value", v).Msg("invalid percent config, using default")
		d, _ = decimal.NewFromString(def)
	}
	return d
}

// ids parses a comma-separated id list, skipping anything non-numeric.
func ids(v string) []int64 {
	if v == "" {
		return nil
	}
	var out []int64
	for _, part := range strings.Split(v, ",") {
		if n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
			out = append(out, n)
		}
	}
	return out
}
