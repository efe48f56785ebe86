package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimal = `
gasReference:
  mode: fixed
  fixedX96: "79228162514264337593543950336"
sources:
  - kind: static
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.App.LogLevel != "info" {
		t.Errorf("LogLevel = %v, want info", cfg.App.LogLevel)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %v, want :8080", cfg.Server.Addr)
	}
	if cfg.Aggregator.Timeout != 100*time.Second {
		t.Errorf("Aggregator.Timeout = %v, want %v", cfg.Aggregator.Timeout, 100*time.Second)
	}
	if cfg.Server.WriteTimeout != 105*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want %v", cfg.Server.WriteTimeout, 105*time.Second)
	}
	if cfg.Tokens.ChainID != 1 || cfg.Tokens.TTL != time.Hour {
		t.Errorf("Tokens = %+v, want chain 1 and 1h ttl", cfg.Tokens)
	}
	if got := cfg.SourceNames(); len(got) != 1 || got[0] != "static" {
		t.Errorf("SourceNames() = %v, want [static]", got)
	}
	if cfg.Sources[0].ChainID != 1 {
		t.Errorf("Sources[0].ChainID = %v, want 1", cfg.Sources[0].ChainID)
	}
	if cfg.Feed.QueueSize != 256 {
		t.Errorf("Feed.QueueSize = %v, want 256", cfg.Feed.QueueSize)
	}
}

func TestLoad_Full(t *testing.T) {
	t.Setenv("TEST_ZEROEX_KEY", "zx-key")
	t.Setenv("TEST_RPC_URL", "https://rpc.example")

	cfg, err := Load(writeConfig(t, `
app:
  logLevel: debug
aggregator:
  timeout: 20s
  takerAddress: "0x1111111111111111111111111111111111111111"
tokens:
  chainId: 8453
gasReference:
  rpcUrlEnv: TEST_RPC_URL
  wrappedNative: "0x4200000000000000000000000000000000000006"
sources:
  - kind: zeroex
    apiKeyEnv: TEST_ZEROEX_KEY
  - kind: odos
    name: odos-split-2
    params:
      maxSplit: "2"
feed:
  enabled: true
  url: ws://localhost:9000/feed
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.GasReference.Mode != GasModeOracle {
		t.Errorf("GasReference.Mode = %v, want %v", cfg.GasReference.Mode, GasModeOracle)
	}
	if cfg.GasReference.RPCURL != "https://rpc.example" {
		t.Errorf("RPCURL = %v, want value from env", cfg.GasReference.RPCURL)
	}
	if cfg.Sources[0].APIKey != "zx-key" {
		t.Errorf("Sources[0].APIKey = %v, want zx-key", cfg.Sources[0].APIKey)
	}
	if cfg.Sources[1].ChainID != 8453 {
		t.Errorf("Sources[1].ChainID = %v, want 8453", cfg.Sources[1].ChainID)
	}
	if cfg.Sources[1].Params["maxSplit"] != "2" {
		t.Errorf("Sources[1].Params = %v", cfg.Sources[1].Params)
	}
	if cfg.Server.WriteTimeout != 25*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want %v", cfg.Server.WriteTimeout, 25*time.Second)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no sources", "gasReference: {mode: fixed, fixedX96: \"0\"}\n", "at least one source"},
		{"duplicate names", minimal + "  - kind: static\n", "duplicate source name"},
		{"missing kind", "gasReference: {mode: fixed, fixedX96: \"0\"}\nsources:\n  - name: x\n", "kind is required"},
		{"oracle without rpc", "sources:\n  - kind: static\n", "rpcUrl is required"},
		{"unknown gas mode", "gasReference: {mode: magic}\nsources:\n  - kind: static\n", "not one of oracle, fixed"},
		{"bad log level", minimal + "app:\n  logLevel: loud\n", "logLevel"},
		{"feed without url", minimal + "feed:\n  enabled: true\n", "feed.url"},
		{"unset env", minimal + "simulation:\n  apiKeyEnv: TEST_UNSET_SIM_KEY\n", "TEST_UNSET_SIM_KEY"},
		{"bad yaml", "sources: [", "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to contain %q", err, tt.want)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestSecret(t *testing.T) {
	t.Setenv("TEST_SECRET", " from-env ")

	if got, _ := secret(" inline ", "TEST_SECRET"); got != "inline" {
		t.Errorf("secret() = %q, want inline value", got)
	}
	if got, _ := secret("", "TEST_SECRET"); got != "from-env" {
		t.Errorf("secret() = %q, want env value", got)
	}
	if got, err := secret("", ""); got != "" || err != nil {
		t.Errorf("secret() = %q, %v, want empty", got, err)
	}
}
