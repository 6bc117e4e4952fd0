package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/go-cvm-attestation/client"
	"github.com/google/go-cvm-attestation/internal/osinfo"
	"github.com/google/go-cvm-attestation/server"
	"github.com/google/go-cvm-attestation/tpm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var addr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve attestation over HTTP",
	Long: `Start an HTTP server exposing
  POST /api/attest_platform       {"token": ...}
  POST /api/attest_guest          {"token": ...}
  POST /api/generate_hw_evidence  {"hardware_evidence": ..., "runtime_data": ...}
  GET  /metrics                   Prometheus metrics

The TPM is opened for every request and the configuration is the same as for
the attest command. Failures return {"error": ...} with HTTP 500, or 403 when
the token could not be unsealed or authenticated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		params, err := loadParams()
		if err != nil {
			return err
		}
		if !params.IsolationType.Valid() || !params.Verifier.Valid() {
			return fmt.Errorf("unknown attestation provider, want one of %s", providerNames())
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		srv := server.New(func(context.Context) (server.Session, error) {
			return newSession(params)
		}, &server.Opts{Logger: log, Registry: registry})

		log.Infof("Starting attestation server on %s", addr)
		return srv.ListenAndServe(ctx, addr)
	},
}

type session struct {
	*client.Client
	tpm *tpm.TPM
}

func (s session) Close() error {
	return s.tpm.Close()
}

func newSession(params client.Params) (server.Session, error) {
	t, err := openTpm()
	if err != nil {
		return nil, err
	}
	c, err := newClient(params, t)
	if err != nil {
		return nil, errors.Join(err, t.Close())
	}
	return session{Client: c, tpm: t}, nil
}

func init() {
	RootCmd.AddCommand(serveCmd)
	addConfigFlags(serveCmd)
	serveCmd.PersistentFlags().StringVar(&addr, "addr", ":5000", "address to listen on")
	serveCmd.PersistentFlags().StringVar(&eventLog, "event-log", osinfo.DefaultEventLogPath,
		"path to the TCG event log (Linux only)")
}
