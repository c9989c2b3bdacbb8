package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Caqil/harn-ledger/pkg/api"
)

const (
	certOutKey  = "cert"
	keyOutKey   = "key"
	hostsKey    = "hosts"
	validForKey = "valid-for"
)

func certCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "cert",
		Short: "Write a self-signed TLS certificate for local use",
		RunE:  certFunc,
	}
	flags := c.Flags()
	flags.String(certOutKey, "cert.pem", "certificate output path")
	flags.String(keyOutKey, "key.pem", "private key output path")
	flags.StringSlice(hostsKey, nil, "additional DNS names or IPs")
	flags.Duration(validForKey, 365*24*time.Hour, "certificate lifetime")
	return c
}

func certFunc(c *cobra.Command, _ []string) error {
	flags := c.Flags()
	certPath, _ := flags.GetString(certOutKey)
	keyPath, _ := flags.GetString(keyOutKey)
	hosts, _ := flags.GetStringSlice(hostsKey)
	validFor, _ := flags.GetDuration(validForKey)

	if err := api.GenerateSelfSignedCert(certPath, keyPath, hosts, validFor); err != nil {
		return err
	}
	fmt.Fprintf(c.ErrOrStderr(), "wrote %s and %s (self-signed, development only)\n", certPath, keyPath)
	return nil
}
