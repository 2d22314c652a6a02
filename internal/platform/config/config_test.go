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
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Ethereum.ChainID != 1 {
		t.Errorf("chain id: got %d", cfg.Ethereum.ChainID)
	}
	if len(cfg.Ethereum.RPCEndpoints) != 1 {
		t.Errorf("default rpc endpoints: got %d", len(cfg.Ethereum.RPCEndpoints))
	}
	if cfg.Routing.Debounce != 500*time.Millisecond {
		t.Errorf("debounce: got %v", cfg.Routing.Debounce)
	}
	if cfg.Trading.Slippage().String() != "0.5" {
		t.Errorf("slippage: got %s", cfg.Trading.Slippage())
	}
	if cfg.Redis.Enabled {
		t.Error("redis should be off by default")
	}
	if cfg.Cache.TokenTTL != 24*time.Hour {
		t.Errorf("token ttl: got %v", cfg.Cache.TokenTTL)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
ethereum:
  chain_id: 42161
  rpc_endpoints:
    - url: http://localhost:8545
      weight: 2
    - url: http://localhost:8546
      weight: 1
routing:
  base_url: http://localhost:9000/v1
  timeout: 3s
trading:
  slippage_percent: "1.25"
observability:
  logging:
    level: debug
    format: json
`)

	t.Setenv("CLMM_ROUTING_DEBOUNCE", "250ms")
	t.Setenv("CLMM_REDIS_ENABLED", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Ethereum.ChainID != 42161 {
		t.Errorf("chain id: got %d", cfg.Ethereum.ChainID)
	}
	if len(cfg.Ethereum.RPCEndpoints) != 2 || cfg.Ethereum.RPCEndpoints[0].Weight != 2 {
		t.Errorf("rpc endpoints: got %+v", cfg.Ethereum.RPCEndpoints)
	}
	if cfg.Routing.Timeout != 3*time.Second {
		t.Errorf("timeout: got %v", cfg.Routing.Timeout)
	}
	if cfg.Routing.Debounce != 250*time.Millisecond {
		t.Errorf("env debounce override: got %v", cfg.Routing.Debounce)
	}
	if !cfg.Redis.Enabled {
		t.Error("env redis override not applied")
	}
	if cfg.Trading.Slippage().String() != "1.25" {
		t.Errorf("slippage: got %s", cfg.Trading.Slippage())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "slippage not a number",
			body:    "trading:\n  slippage_percent: lots\n",
			wantErr: "invalid slippage percent",
		},
		{
			name:    "slippage above 100",
			body:    "trading:\n  slippage_percent: \"150\"\n",
			wantErr: "slippage percent must be within",
		},
		{
			name:    "bad log level",
			body:    "observability:\n  logging:\n    level: loud\n",
			wantErr: "invalid log level",
		},
		{
			name:    "bad routing url",
			body:    "routing:\n  base_url: not a url\n",
			wantErr: "invalid routing base url",
		},
		{
			name:    "empty endpoint url",
			body:    "ethereum:\n  rpc_endpoints:\n    - weight: 1\n",
			wantErr: "rpc endpoint url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}
