package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type API struct {
	Listen string
	// AllowedOrigins feeds the CORS layer; "*" opens the API up for
	// local development.
	AllowedOrigins []string
}

type Storage struct {
	// Path is the pebble database directory for custody state.
	Path string
}

type Fees struct {
	InputFeePPM      uint64
	OutputFeePPM     uint64
	ProtocolSharePPM uint64
	ReferralCapPPM   uint64
	// DiscountUnit is the held-balance amount that buys full fee
	// discount; 0 disables the ramp.
	DiscountUnit uint64
}

type Log struct {
	Path  string
	Level string
}

type Config struct {
	API     API
	Storage Storage
	Fees    Fees
	Log     Log
}

func Default() Config {
	return Config{
		API: API{
			Listen:         ":8080",
			AllowedOrigins: []string{"*"},
		},
		Storage: Storage{Path: "data/custody"},
		Fees: Fees{
			InputFeePPM:      1_000,
			OutputFeePPM:     2_000,
			ProtocolSharePPM: 200_000,
			ReferralCapPPM:   50_000,
			DiscountUnit:     1_000_000_000,
		},
		Log: Log{Path: "logs/venue.log", Level: "info"},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("API_LISTEN"); v != "" {
		cfg.API.Listen = v
	}
	if v := os.Getenv("API_ALLOWED_ORIGINS"); v != "" {
		cfg.API.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("LOG_PATH"); v != "" {
		cfg.Log.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	parseU64(&cfg.Fees.InputFeePPM, "FEE_INPUT_PPM")
	parseU64(&cfg.Fees.OutputFeePPM, "FEE_OUTPUT_PPM")
	parseU64(&cfg.Fees.ProtocolSharePPM, "FEE_PROTOCOL_SHARE_PPM")
	parseU64(&cfg.Fees.ReferralCapPPM, "FEE_REFERRAL_CAP_PPM")
	parseU64(&cfg.Fees.DiscountUnit, "FEE_DISCOUNT_UNIT")

	return cfg
}

func parseU64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
