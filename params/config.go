package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type Engine struct {
	Admin            common.Address
	AssetRef         string
	MaxOrdersPerUser uint64
	StartHeight      uint64
}

type Node struct {
	ListenAddr string
	DataDir    string // empty means in-memory state, no persistence
	LogFile    string
	// TickInterval is how often the node advances the logical clock.
	TickInterval time.Duration
	// Extra identities pre-registered and funded at boot, for devnet use.
	DevUsers []common.Address
	// Devnet funding per user, in currency and quota units.
	DevCurrency uint64
	DevQuota    uint64
}

type Gateways struct {
	MaxTradeValue   uint64 // compliance ceiling on amount x price; 0 = unlimited
	OracleThreshold uint64
	OracleDefault   uint64
}

type Config struct {
	Engine   Engine
	Node     Node
	Gateways Gateways
}

func Default() Config {
	return Config{
		Engine: Engine{
			AssetRef:         "QUOTA",
			MaxOrdersPerUser: 50,
		},
		Node: Node{
			ListenAddr:   ":8080",
			TickInterval: time.Second,
			DataDir:      "data/quotadex",
			LogFile:      "data/node.log",
			DevCurrency:  1_000_000,
			DevQuota:     10_000,
		},
		Gateways: Gateways{
			OracleDefault:   1,
			OracleThreshold: 1,
		},
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

	if v := os.Getenv("ADMIN_ADDRESS"); common.IsHexAddress(v) {
		cfg.Engine.Admin = common.HexToAddress(v)
	}
	if v := os.Getenv("ASSET_REF"); v != "" {
		cfg.Engine.AssetRef = v
	}
	if v := os.Getenv("MAX_ORDERS_PER_USER"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
			cfg.Engine.MaxOrdersPerUser = n
		}
	}
	if v := os.Getenv("START_HEIGHT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Engine.StartHeight = n
		}
	}

	if v := os.Getenv("LISTEN"); v != "" {
		cfg.Node.ListenAddr = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}
	if v := os.Getenv("TICK_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Node.TickInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("DEV_USERS"); v != "" {
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if common.IsHexAddress(s) {
				cfg.Node.DevUsers = append(cfg.Node.DevUsers, common.HexToAddress(s))
			}
		}
	}
	if v := os.Getenv("DEV_CURRENCY"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Node.DevCurrency = n
		}
	}
	if v := os.Getenv("DEV_QUOTA"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Node.DevQuota = n
		}
	}

	if v := os.Getenv("MAX_TRADE_VALUE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Gateways.MaxTradeValue = n
		}
	}
	if v := os.Getenv("ORACLE_THRESHOLD"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Gateways.OracleThreshold = n
		}
	}
	if v := os.Getenv("ORACLE_DEFAULT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Gateways.OracleDefault = n
		}
	}

	return cfg
}
