package main

import (
	"fmt"
	"math/big"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Caqil/harn-ledger/pkg/config"
	"github.com/Caqil/harn-ledger/pkg/crypto/rand"
	"github.com/Caqil/harn-ledger/pkg/keygen"
)

const (
	nameKey     = "name"
	bitsKey     = "bits"
	identityKey = "identity"
)

func keygenCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a node key block for the cluster file",
		RunE:  keygenFunc,
	}
	flags := c.Flags()
	flags.String(nameKey, "E", "node name")
	flags.Int(bitsKey, 1024, "modulus size in bits")
	flags.Int64(identityKey, 0, "public identity (required, must be greater than 1)")
	return c
}

func keygenFunc(c *cobra.Command, _ []string) error {
	flags := c.Flags()
	name, _ := flags.GetString(nameKey)
	bits, _ := flags.GetInt(bitsKey)
	identity, _ := flags.GetInt64(identityKey)
	if identity < 2 {
		return fmt.Errorf("--%s must be greater than 1", identityKey)
	}

	kp, err := keygen.Generate(name, bits, nil)
	if err != nil {
		return err
	}
	defer kp.Zero()

	randomVal, err := rand.GenerateRandomUnit(kp.N)
	if err != nil {
		return err
	}

	spec := config.SpecFor(kp, big.NewInt(identity), randomVal)
	out, err := yaml.Marshal([]config.NodeSpec{spec})
	if err != nil {
		return err
	}
	_, err = c.OutOrStdout().Write(out)
	return err
}
