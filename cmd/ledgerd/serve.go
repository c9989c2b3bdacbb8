package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Caqil/harn-ledger/pkg/api"
	"github.com/Caqil/harn-ledger/pkg/audit"
	"github.com/Caqil/harn-ledger/pkg/config"
	"github.com/Caqil/harn-ledger/pkg/logger"
	"github.com/Caqil/harn-ledger/pkg/metrics"
	"github.com/Caqil/harn-ledger/pkg/node"
)

const (
	configKey   = "config"
	listenKey   = "listen"
	dataDirKey  = "data-dir"
	auditLogKey = "audit-log"
	logLevelKey = "log-level"
	prettyKey   = "pretty"
	requireKey  = "require-primary"
	noLimitKey  = "no-rate-limit"
	tlsCertKey  = "tls-cert"
	tlsKeyKey   = "tls-key"
	clientCAKey = "tls-client-ca"
)

func addServeFlags(flags *pflag.FlagSet) {
	flags.String(configKey, "", "YAML cluster file (defaults to the built-in four node cluster)")
	flags.String(listenKey, "", "HTTP listen address")
	flags.String(dataDirKey, "", "directory for node_<x>.json ledgers (empty keeps ledgers in memory)")
	flags.String(auditLogKey, "", "append consensus audit events to this file")
	flags.String(logLevelKey, "", "log level: debug, info, warn, error")
	flags.Bool(prettyKey, false, "human readable console logs")
	flags.Bool(requireKey, false, "reject submissions sent to a non-primary replica")
	flags.Bool(noLimitKey, false, "disable per-client rate limiting")
	flags.String(tlsCertKey, "", "TLS certificate file")
	flags.String(tlsKeyKey, "", "TLS private key file")
	flags.String(clientCAKey, "", "CA file for client certificate verification")
}

// loadConfig reads the config file and applies flag overrides
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	path, _ := flags.GetString(configKey)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if flags.Changed(listenKey) {
		cfg.Listen, _ = flags.GetString(listenKey)
	}
	if flags.Changed(dataDirKey) {
		cfg.DataDir, _ = flags.GetString(dataDirKey)
	}
	if flags.Changed(auditLogKey) {
		cfg.AuditLog, _ = flags.GetString(auditLogKey)
	}
	if flags.Changed(logLevelKey) {
		cfg.Log.Level, _ = flags.GetString(logLevelKey)
	}
	if flags.Changed(prettyKey) {
		cfg.Log.Pretty, _ = flags.GetBool(prettyKey)
	}
	if flags.Changed(requireKey) {
		cfg.RequirePrimary, _ = flags.GetBool(requireKey)
	}
	if off, _ := flags.GetBool(noLimitKey); off {
		cfg.RateLimit.Enabled = false
	}
	if flags.Changed(tlsCertKey) {
		cfg.TLS.CertFile, _ = flags.GetString(tlsCertKey)
	}
	if flags.Changed(tlsKeyKey) {
		cfg.TLS.KeyFile, _ = flags.GetString(tlsKeyKey)
	}
	if flags.Changed(clientCAKey) {
		cfg.TLS.ClientCAFile, _ = flags.GetString(clientCAKey)
	}

	return cfg, cfg.Validate()
}

func serveCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the cluster and serve the HTTP API",
		RunE:  serveFunc,
	}
	addServeFlags(c.Flags())
	return c
}

func serveFunc(c *cobra.Command, _ []string) error {
	cfg, err := loadConfig(c.Flags())
	if err != nil {
		return err
	}

	logger.SetGlobalLogger(logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Output: os.Stderr,
		Pretty: cfg.Log.Pretty,
	}))
	log := logger.Component("ledgerd")

	m, err := metrics.New()
	if err != nil {
		return err
	}

	auditLog, err := audit.New(cfg.AuditLog)
	if err != nil {
		return err
	}
	defer auditLog.Close()

	n, err := node.Build(cfg, node.Options{
		Metrics: m,
		Audit:   auditLog,
		Logger:  logger.Component("pbft"),
	})
	if err != nil {
		return err
	}
	defer n.Close()

	apiCfg := api.Config{
		Engine:      n.Engine,
		Coordinator: n.Coordinator,
		Officer:     n.Officer,
		RandomVals:  n.RandomVals,
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     m,
		Audit:       auditLog,
		Logger:      logger.Component("api"),
	}
	if cfg.RateLimit.Enabled {
		apiCfg.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		apiCfg.Burst = cfg.RateLimit.Burst
	}
	srv, err := api.New(apiCfg)
	if err != nil {
		return err
	}

	var tlsParams *api.TLSParams
	if cfg.TLS.Enabled() {
		tlsParams = &api.TLSParams{
			CertFile:     cfg.TLS.CertFile,
			KeyFile:      cfg.TLS.KeyFile,
			ClientCAFile: cfg.TLS.ClientCAFile,
		}
	}

	g, ctx := errgroup.WithContext(c.Context())
	g.Go(func() error {
		return n.Engine.Run(ctx, cfg.ReconcileInterval)
	})
	g.Go(func() error {
		return srv.ListenAndServe(ctx, cfg.Listen, tlsParams)
	})
	if auditLog.Enabled() {
		g.Go(func() error {
			rotateOnHangup(ctx, auditLog, log)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.ErrorEvent().Err(err).Msg("ledgerd stopped")
		return err
	}
	log.Info("ledgerd stopped")
	return nil
}

// rotateOnHangup reopens the audit log on SIGHUP
func rotateOnHangup(ctx context.Context, a *audit.Logger, log *logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := a.Rotate(); err != nil {
				log.ErrorEvent().Err(err).Msg("audit log rotation failed")
				continue
			}
			log.Info("audit log rotated")
		}
	}
}
