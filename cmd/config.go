package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/go-cvm-attestation/client"
	"github.com/google/go-cvm-attestation/evidence"
	"github.com/google/go-cvm-attestation/verifier"
)

// Config is the JSON configuration file of cvmattest.
type Config struct {
	AttestationProvider string          `json:"attestation_provider"`
	AttestationURL      string          `json:"attestation_url"`
	APIKey              string          `json:"api_key"`
	Claims              json.RawMessage `json:"claims,omitempty"`
}

type providerConfig struct {
	isolation evidence.IsolationType
	verifier  verifier.Verifier
}

// Unknown providers map to the undefined isolation type and verifier, which
// client.New rejects.
var providers = map[string]providerConfig{
	"maa_tdx": {evidence.IsolationTDX, verifier.MAA},
	"maa_snp": {evidence.IsolationSEVSNP, verifier.MAA},
	"ita":     {evidence.IsolationTDX, verifier.ITA},
}

func providerNames() string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// LoadConfig reads a config file. An empty path gives an empty Config.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Params converts the config to client parameters.
func (c *Config) Params() (client.Params, error) {
	p := providers[c.AttestationProvider]
	params := client.Params{
		Endpoint:      c.AttestationURL,
		Verifier:      p.verifier,
		IsolationType: p.isolation,
		APIKey:        c.APIKey,
	}
	if len(c.Claims) > 0 && !bytes.Equal(c.Claims, []byte("null")) {
		var claims bytes.Buffer
		if err := json.Compact(&claims, c.Claims); err != nil {
			return client.Params{}, fmt.Errorf("invalid claims: %w", err)
		}
		params.Claims = claims.Bytes()
	}
	return params, nil
}

// loadParams reads --config and applies the flag overrides.
func loadParams() (client.Params, error) {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return client.Params{}, err
	}
	if provider != "" {
		cfg.AttestationProvider = provider
	}
	if endpoint != "" {
		cfg.AttestationURL = endpoint
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	fmt.Fprintf(debugOutput(), "Attestation provider is %q, endpoint is %q\n", cfg.AttestationProvider, cfg.AttestationURL)
	return cfg.Params()
}
