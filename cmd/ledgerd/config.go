package main

import (
	"github.com/spf13/cobra"

	"github.com/Caqil/harn-ledger/pkg/logger"
)

func configCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Print the effective cluster file",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig(c.Flags())
			if err != nil {
				return err
			}
			if cfg.StorePassphrase != "" {
				cfg.StorePassphrase = logger.RedactSecret(cfg.StorePassphrase)
			}
			out, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = c.OutOrStdout().Write(out)
			return err
		},
	}
	addServeFlags(c.Flags())
	return c
}
