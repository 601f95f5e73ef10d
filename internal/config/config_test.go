package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.RPCURL != "http://127.0.0.1:8545" {
		t.Errorf("RPCURL = %q", cfg.RPCURL)
	}
	if cfg.GasLimit != DefaultGasLimit {
		t.Errorf("GasLimit = %d", cfg.GasLimit)
	}
	if cfg.ChainID != nil {
		t.Errorf("ChainID = %v, want nil", cfg.ChainID)
	}
}

func TestFromEnv_Values(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"RPC_URL":       "http://node:8545",
		"CHAIN_ID":      "1337",
		"TOKEN":         "0x00000000000000000000000000000000000000a1",
		"PAIR":          " 0x00000000000000000000000000000000000000a2 ",
		"PAIR_DATAFEED": "0x00000000000000000000000000000000000000a5",
		"GAS_LIMIT":     "3000000",
		"NAME":          "Fee Token",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.ChainID.Int64() != 1337 {
		t.Errorf("ChainID = %v", cfg.ChainID)
	}
	if cfg.Pair != common.HexToAddress("0xa2") {
		t.Errorf("Pair = %s", cfg.Pair.Hex())
	}
	if cfg.GasLimit != 3_000_000 {
		t.Errorf("GasLimit = %d", cfg.GasLimit)
	}
	if cfg.Name != "Fee Token" {
		t.Errorf("Name = %q", cfg.Name)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []map[string]string{
		{"TOKEN": "not-an-address"},
		{"CHAIN_ID": "abc"},
		{"CHAIN_ID": "-1"},
		{"GAS_LIMIT": "0"},
		{"GAS_LIMIT": "lots"},
	}
	for _, env := range tests {
		if _, err := FromEnv(envMap(env)); !errors.Is(err, ErrInvalid) {
			t.Errorf("FromEnv(%v) error = %v, want ErrInvalid", env, err)
		}
	}
}

func TestRequireScenario(t *testing.T) {
	cfg, _ := FromEnv(envMap(map[string]string{
		"PRIVATE_KEY": "0x01",
		"TOKEN":       "0x00000000000000000000000000000000000000a1",
	}))
	err := cfg.RequireScenario()
	if !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
	want := "missing required variable: PAIR, ROUTER, PAIR_DATAFEED"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestRequireDeploy(t *testing.T) {
	cfg, _ := FromEnv(envMap(map[string]string{
		"PRIVATE_KEY": "0x01",
		"NAME":        "Fee Token",
		"SYMBOL":      "FEE",
		"PAIR":        "0x00000000000000000000000000000000000000a2",
		"STABLE":      "0x00000000000000000000000000000000000000a6",
		"ROUTER":      "0x00000000000000000000000000000000000000a3",
	}))
	if err := cfg.RequireDeploy(); err != nil {
		t.Errorf("RequireDeploy: %v", err)
	}
}

func TestLoad_EnvFileDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "SYMBOL=FILE\nNAME=FromFile\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SYMBOL", "ENV")
	t.Setenv("NAME", "")
	os.Unsetenv("NAME")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Symbol != "ENV" {
		t.Errorf("Symbol = %q, want ENV", cfg.Symbol)
	}
	if cfg.Name != "FromFile" {
		t.Errorf("Name = %q, want FromFile", cfg.Name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}
}
