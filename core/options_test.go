package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mapRawLoader struct {
	values map[string]any
	err    error
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if l.err != nil {
		return nil, l.err
	}
	return StaticRawConfigLoader{Values: l.values}.LoadRaw(context.Background())
}

func TestResolveConfig_LayersDefaultsLoadedAndRuntime(t *testing.T) {
	loader := mapRawLoader{values: map[string]any{
		"trello": map[string]any{
			"api_key":      "loaded-key",
			"redirect_uri": "https://links.example/auth/callback",
			"app_name":     "Loaded App",
		},
		"handshake": map[string]any{
			"sweep_interval": 30 * time.Second,
		},
	}}
	runtime := Config{Trello: TrelloConfig{AppName: "Runtime App"}}

	cfg, err := ResolveConfig(context.Background(), NewCfgxConfigProvider(loader), GoOptionsResolver{}, runtime)
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if cfg.Trello.APIKey != "loaded-key" {
		t.Fatalf("expected loaded api key, got %q", cfg.Trello.APIKey)
	}
	if cfg.Trello.AppName != "Runtime App" {
		t.Fatalf("expected runtime app name to win, got %q", cfg.Trello.AppName)
	}
	if cfg.Handshake.SweepInterval != 30*time.Second {
		t.Fatalf("expected loaded sweep interval, got %s", cfg.Handshake.SweepInterval)
	}
	if cfg.Handshake.TTL != DefaultHandshakeTTL {
		t.Fatalf("expected default ttl, got %s", cfg.Handshake.TTL)
	}
	if cfg.Trello.VerifyTimeout != DefaultVerifyTimeout {
		t.Fatalf("expected default verify timeout, got %s", cfg.Trello.VerifyTimeout)
	}
	if cfg.ServiceName != "trellolink" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
}

func TestResolveConfig_ValidatesMergedResult(t *testing.T) {
	if _, err := ResolveConfig(context.Background(), nil, nil, Config{}); err == nil {
		t.Fatalf("expected validation error without trello api key")
	}
}

func TestResolveConfig_PropagatesLoaderErrors(t *testing.T) {
	sentinel := errors.New("env unreadable")
	_, err := ResolveConfig(context.Background(), NewCfgxConfigProvider(mapRawLoader{err: sentinel}), nil, testConfig())
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func TestConfigToLayerMap_SkipsZeroValues(t *testing.T) {
	layer := ConfigToLayerMap(Config{Server: ServerConfig{Addr: ":8080"}}, false)
	if _, ok := layer["trello"]; ok {
		t.Fatalf("expected empty trello section to be omitted")
	}
	server, ok := layer["server"].(map[string]any)
	if !ok || server["addr"] != ":8080" {
		t.Fatalf("expected server addr, got %#v", layer["server"])
	}
	if _, ok := server["rate_limit_per_minute"]; ok {
		t.Fatalf("expected zero rate limit to be omitted")
	}

	full := ConfigToLayerMap(DefaultConfig(), true)
	handshake := full["handshake"].(map[string]any)
	if handshake["ttl"] != DefaultHandshakeTTL {
		t.Fatalf("expected default ttl in defaults layer, got %#v", handshake["ttl"])
	}
}
