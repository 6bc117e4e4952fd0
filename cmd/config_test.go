package cmd

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cvm-attestation/client"
	"github.com/google/go-cvm-attestation/evidence"
	"github.com/google/go-cvm-attestation/verifier"
)

func TestConfigParams(t *testing.T) {
	for _, tc := range []struct {
		provider string
		want     client.Params
	}{
		{"maa_tdx", client.Params{Endpoint: "https://e", Verifier: verifier.MAA, IsolationType: evidence.IsolationTDX, APIKey: "k"}},
		{"maa_snp", client.Params{Endpoint: "https://e", Verifier: verifier.MAA, IsolationType: evidence.IsolationSEVSNP, APIKey: "k"}},
		{"ita", client.Params{Endpoint: "https://e", Verifier: verifier.ITA, IsolationType: evidence.IsolationTDX, APIKey: "k"}},
		{"gca", client.Params{Endpoint: "https://e", Verifier: verifier.Undefined, IsolationType: evidence.IsolationUndefined, APIKey: "k"}},
	} {
		t.Run(tc.provider, func(t *testing.T) {
			cfg := &Config{AttestationProvider: tc.provider, AttestationURL: "https://e", APIKey: "k"}
			got, err := cfg.Params()
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Params() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := makeTempFile(t, []byte(`{
  "attestation_provider": "maa_snp",
  "attestation_url": "https://sharedweu.weu.attest.azure.net/attest/SevSnpVm?api-version=2022-08-01",
  "api_key": "",
  "claims": {
    "user-claims": {"nonce": "1234"}
  }
}`))
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	params, err := cfg.Params()
	if err != nil {
		t.Fatal(err)
	}
	want := client.Params{
		Endpoint:      "https://sharedweu.weu.attest.azure.net/attest/SevSnpVm?api-version=2022-08-01",
		Verifier:      verifier.MAA,
		IsolationType: evidence.IsolationSEVSNP,
		Claims:        []byte(`{"user-claims":{"nonce":"1234"}}`),
	}
	if diff := cmp.Diff(want, params); diff != "" {
		t.Errorf("Params() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		path string
	}{
		{"missing file", "/nonexistent/config.json"},
		{"not JSON", makeTempFile(t, []byte("attestation_provider: ita"))},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(tc.path); err == nil {
				t.Error("LoadConfig() succeeded, want error")
			}
		})
	}
}

func TestLoadParamsOverrides(t *testing.T) {
	defer resetFlags()
	configFile = makeTempFile(t, []byte(`{"attestation_provider": "maa_tdx", "attestation_url": "https://config", "api_key": ""}`))
	provider = "ita"
	apiKey = "flag-key"

	params, err := loadParams()
	if err != nil {
		t.Fatal(err)
	}
	want := client.Params{
		Endpoint:      "https://config",
		Verifier:      verifier.ITA,
		IsolationType: evidence.IsolationTDX,
		APIKey:        "flag-key",
	}
	if diff := cmp.Diff(want, params); diff != "" {
		t.Errorf("loadParams() mismatch (-want +got):\n%s", diff)
	}
}
