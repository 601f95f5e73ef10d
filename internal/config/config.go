// Package config loads harness settings from a .env file and the process
// environment. Variables already set in the environment win over the file.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// ErrMissing is wrapped when a required variable is empty.
var ErrMissing = errors.New("missing required variable")

// ErrInvalid is wrapped when a variable cannot be parsed.
var ErrInvalid = errors.New("invalid variable")

// DefaultGasLimit is used when GAS_LIMIT is unset.
const DefaultGasLimit uint64 = 2_000_000

// Config holds every setting the commands read.
type Config struct {
	RPCURL     string
	WSURL      string
	PrivateKey string
	ChainID    *big.Int // nil means query the node

	Token        common.Address
	Pair         common.Address
	Stable       common.Address
	Router       common.Address
	PairDatafeed common.Address

	Name   string
	Symbol string

	GasLimit uint64

	PostgresDSN   string
	ClickhouseDSN string
}

// Load reads envFile when it exists, then the environment.
// An empty envFile means ".env".
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		RPCURL:        strings.TrimSpace(getenv("RPC_URL")),
		WSURL:         strings.TrimSpace(getenv("WS_URL")),
		PrivateKey:    strings.TrimSpace(getenv("PRIVATE_KEY")),
		Name:          getenv("NAME"),
		Symbol:        getenv("SYMBOL"),
		GasLimit:      DefaultGasLimit,
		PostgresDSN:   getenv("POSTGRES_DSN"),
		ClickhouseDSN: getenv("CLICKHOUSE_DSN"),
	}
	if cfg.RPCURL == "" {
		cfg.RPCURL = "http://127.0.0.1:8545"
	}

	var err error
	addresses := []struct {
		key string
		dst *common.Address
	}{
		{"TOKEN", &cfg.Token},
		{"PAIR", &cfg.Pair},
		{"STABLE", &cfg.Stable},
		{"ROUTER", &cfg.Router},
		{"PAIR_DATAFEED", &cfg.PairDatafeed},
	}
	for _, a := range addresses {
		if *a.dst, err = parseAddress(a.key, getenv(a.key)); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(getenv("CHAIN_ID")); v != "" {
		id, ok := new(big.Int).SetString(v, 10)
		if !ok || id.Sign() <= 0 {
			return nil, fmt.Errorf("%w: CHAIN_ID=%q", ErrInvalid, v)
		}
		cfg.ChainID = id
	}

	if v := strings.TrimSpace(getenv("GAS_LIMIT")); v != "" {
		limit, err := strconv.ParseUint(v, 10, 64)
		if err != nil || limit == 0 {
			return nil, fmt.Errorf("%w: GAS_LIMIT=%q", ErrInvalid, v)
		}
		cfg.GasLimit = limit
	}

	return cfg, nil
}

func parseAddress(key, v string) (common.Address, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("%w: %s=%q is not an address", ErrInvalid, key, v)
	}
	return common.HexToAddress(v), nil
}

// RequireScenario checks the settings needed to run the scenario.
func (c *Config) RequireScenario() error {
	return require(
		check{"PRIVATE_KEY", c.PrivateKey != ""},
		check{"TOKEN", c.Token != (common.Address{})},
		check{"PAIR", c.Pair != (common.Address{})},
		check{"ROUTER", c.Router != (common.Address{})},
		check{"PAIR_DATAFEED", c.PairDatafeed != (common.Address{})},
	)
}

// RequireDeploy checks the settings needed to deploy the token.
func (c *Config) RequireDeploy() error {
	return require(
		check{"PRIVATE_KEY", c.PrivateKey != ""},
		check{"NAME", c.Name != ""},
		check{"SYMBOL", c.Symbol != ""},
		check{"PAIR", c.Pair != (common.Address{})},
		check{"STABLE", c.Stable != (common.Address{})},
		check{"ROUTER", c.Router != (common.Address{})},
	)
}

type check struct {
	key string
	ok  bool
}

func require(checks ...check) error {
	var missing []string
	for _, c := range checks {
		if !c.ok {
			missing = append(missing, c.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}
