package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Caqil/harn-ledger/pkg/api"
	"github.com/Caqil/harn-ledger/pkg/client"
	"github.com/Caqil/harn-ledger/pkg/render"
)

const (
	nodeKey        = "node"
	itemKey        = "item"
	quantityKey    = "quantity"
	priceKey       = "price"
	recordKey      = "record"
	waitKey        = "wait"
	intervalKey    = "interval"
	exponentialKey = "exponential"
	maxAttemptsKey = "max-attempts"
	maxWaitKey     = "max-wait"
	viewKey        = "view"
	allKey         = "all"
	restoreKey     = "restore"
	decryptKey     = "decrypt"
	signersKey     = "signers"
)

// record joins the item fields the way the browser form does
func record(node, item, quantity, price string) string {
	return node + ":" + item + ":" + quantity + ":" + price
}

func submitCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "submit",
		Short: "Submit an inventory record and show the consensus trace",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			flags := c.Flags()
			node, _ := flags.GetString(nodeKey)
			rec, _ := flags.GetString(recordKey)
			if rec == "" {
				item, _ := flags.GetString(itemKey)
				if item == "" {
					return fmt.Errorf("--%s or --%s is required", itemKey, recordKey)
				}
				quantity, _ := flags.GetString(quantityKey)
				price, _ := flags.GetString(priceKey)
				rec = record(node, item, quantity, price)
			}

			wait, _ := flags.GetBool(waitKey)
			if !wait {
				res, err := e.client.Submit(c.Context(), node, rec)
				if err != nil {
					return err
				}
				return render.Submit(c.OutOrStdout(), e.format, res, res.ConsensusReached)
			}

			cfg := client.DefaultPollConfig()
			cfg.Interval, _ = flags.GetDuration(intervalKey)
			cfg.Exponential, _ = flags.GetBool(exponentialKey)
			cfg.MaxAttempts, _ = flags.GetUint(maxAttemptsKey)
			cfg.MaxElapsed, _ = flags.GetDuration(maxWaitKey)
			if cfg.MaxInterval < cfg.Interval {
				cfg.MaxInterval = cfg.Interval
			}

			out, err := e.client.SubmitAndWait(c.Context(), node, rec, cfg)
			if out != nil && out.Submit != nil {
				if rerr := render.Submit(c.OutOrStdout(), e.format, out.Submit, out.Committed()); rerr != nil {
					return rerr
				}
			}
			return err
		},
	}
	flags := c.Flags()
	flags.String(nodeKey, "A", "replica receiving the record")
	flags.String(itemKey, "", "item id")
	flags.String(quantityKey, "", "quantity")
	flags.String(priceKey, "", "price")
	flags.String(recordKey, "", "raw record string, overrides the item fields")
	flags.Bool(waitKey, false, "poll until the record commits")
	flags.Duration(intervalKey, time.Second, "poll interval")
	flags.Bool(exponentialKey, false, "grow the poll interval exponentially")
	flags.Uint(maxAttemptsKey, 60, "maximum polls (0 for no limit)")
	flags.Duration(maxWaitKey, time.Minute, "maximum time to wait (0 for no limit)")
	return c
}

func statusCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "status [sequence]",
		Short: "Show cluster status, or the state of one sequence",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				st, err := e.client.SystemStatus(c.Context())
				if err != nil {
					return err
				}
				return render.SystemStatus(c.OutOrStdout(), e.format, st)
			}

			seq, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid sequence %q", args[0])
			}
			view, _ := c.Flags().GetUint64(viewKey)
			node, _ := c.Flags().GetString(nodeKey)
			st, err := e.client.Status(c.Context(), seq, view, node)
			if err != nil {
				return err
			}
			return render.Status(c.OutOrStdout(), e.format, st)
		},
	}
	c.Flags().Uint64(viewKey, 0, "view the sequence was proposed in")
	c.Flags().String(nodeKey, "", "ask one replica's ledger")
	return c
}

func viewChangeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view-change <node> <view>",
		Short: "Move the cluster to a new view led by node",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			view, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid view %q", args[1])
			}
			res, err := e.client.ViewChange(c.Context(), args[0], view)
			if err != nil {
				return err
			}
			return render.ViewChange(c.OutOrStdout(), e.format, res)
		},
	}
}

func faultCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "fault <node>",
		Short: "Silence a replica, or restore it with --restore",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			restore, _ := c.Flags().GetBool(restoreKey)
			res, err := e.client.SetFaulty(c.Context(), args[0], !restore)
			if err != nil {
				return err
			}
			return render.Fault(c.OutOrStdout(), e.format, res)
		},
	}
	c.Flags().Bool(restoreKey, false, "bring the replica back")
	return c
}

func queryCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "query [item]",
		Short: "List a replica's records, optionally for one item",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			var item string
			if len(args) == 1 {
				item = args[0]
			}

			if all, _ := c.Flags().GetBool(allKey); all {
				results, err := e.client.QueryAll(c.Context(), nil, item)
				if err != nil {
					return err
				}
				return render.Query(c.OutOrStdout(), e.format, results...)
			}

			node, _ := c.Flags().GetString(nodeKey)
			res, err := e.client.Query(c.Context(), node, item)
			if err != nil {
				return err
			}
			return render.Query(c.OutOrStdout(), e.format, res)
		},
	}
	c.Flags().String(nodeKey, "A", "replica to query")
	c.Flags().Bool(allKey, false, "query every replica")
	return c
}

func verifyQueryCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "verify-query <item>",
		Short: "Request a multi-signed query sealed for the procurement officer",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			res, err := e.client.VerifyQuery(c.Context(), args[0])
			if err != nil {
				return err
			}
			if open, _ := c.Flags().GetBool(decryptKey); !open {
				return render.VerifyQuery(c.OutOrStdout(), e.format, res)
			}

			dec, err := e.client.Decrypt(c.Context(), res.EncryptedResponse)
			if err != nil {
				return err
			}
			return render.Decrypt(c.OutOrStdout(), e.format, dec)
		},
	}
	c.Flags().Bool(decryptKey, false, "open the sealed response as the officer")
	return c
}

func decryptCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <token>",
		Short: "Open a sealed response as the procurement officer",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			res, err := e.client.Decrypt(c.Context(), args[0])
			if err != nil {
				return err
			}
			return render.Decrypt(c.OutOrStdout(), e.format, res)
		},
	}
}

func nodeInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "node-info",
		Short: "Show PKG parameters and signer identities",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			info, err := e.client.NodeInfo(c.Context())
			if err != nil {
				return err
			}
			return render.NodeInfo(c.OutOrStdout(), e.format, info)
		},
	}
}

func signCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "sign <node> <message>",
		Short: "Show one signer's Harn share",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			signers, _ := c.Flags().GetStringSlice(signersKey)
			res, err := e.client.Sign(c.Context(), api.SignRequest{NodeID: args[0], Message: args[1], Signers: signers})
			if err != nil {
				return err
			}
			return render.Sign(c.OutOrStdout(), e.format, res)
		},
	}
	c.Flags().StringSlice(signersKey, nil, "session signers (default: every node)")
	return c
}

func multiSignCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "multisign <message>",
		Short: "Run a Harn signing session",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			signers, _ := c.Flags().GetStringSlice(signersKey)
			res, err := e.client.MultiSign(c.Context(), args[0], signers)
			if err != nil {
				return err
			}
			return render.MultiSign(c.OutOrStdout(), e.format, res)
		},
	}
	c.Flags().StringSlice(signersKey, nil, "session signers (default: every node)")
	return c
}

func walkthroughCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "walkthrough <message>",
		Short: "Show every value computed while signing message",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			signers, _ := c.Flags().GetStringSlice(signersKey)
			res, err := e.client.Walkthrough(c.Context(), args[0], signers)
			if err != nil {
				return err
			}
			return render.Walkthrough(c.OutOrStdout(), e.format, res)
		},
	}
	c.Flags().StringSlice(signersKey, nil, "session signers (default: every node)")
	return c
}
