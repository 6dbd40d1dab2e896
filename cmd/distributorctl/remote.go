package main

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/feed"
	"y8u-distributor/internal/merkle"
)

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func tgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tge",
		Short: "Start vesting (owner only, once)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(true)
			if err != nil {
				return err
			}
			ts, err := c.SetTGE(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tge: %d\n", ts)
			return nil
		},
	}
}

// rootCommandFor builds "root", which sets a sale pool's Merkle root.
func rootCommandFor() *cobra.Command {
	return &cobra.Command{
		Use:   "root <pool> <root|tree.json>",
		Short: "Set a sale pool's Merkle root (owner only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := domain.ParsePool(args[0])
			if err != nil {
				return err
			}
			root, err := merkle.ParseHash(args[1])
			if err != nil {
				tree, treeErr := loadTreeFile(args[1])
				if treeErr != nil {
					return fmt.Errorf("%s is neither a root nor a tree file: %w", args[1], treeErr)
				}
				root = tree.Root()
			}

			c, err := newClient(true)
			if err != nil {
				return err
			}
			if err := c.SetRoot(cmd.Context(), pool, root); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s root: %s\n", pool, root.Hex())
			return nil
		},
	}
}

func claimCommand() *cobra.Command {
	var treePath string
	cmd := &cobra.Command{
		Use:   "claim <pool>",
		Short: "Claim a pool; sale pools need --tree to derive the signer's proof",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := domain.ParsePool(args[0])
			if err != nil {
				return err
			}
			key, err := loadKey()
			if err != nil {
				return err
			}
			c, err := newClient(true)
			if err != nil {
				return err
			}

			var rec *domain.ClaimRecord
			if pool.IsSale() {
				if treePath == "" {
					return fmt.Errorf("%s is a sale pool: --tree is required", pool)
				}
				tree, err := loadTreeFile(treePath)
				if err != nil {
					return err
				}
				alloc, proof, err := tree.Proof(crypto.PubkeyToAddress(key.PublicKey))
				if err != nil {
					return err
				}
				rec, err = c.ClaimSale(cmd.Context(), pool, alloc.Amount, proof)
				if err != nil {
					return err
				}
			} else {
				rec, err = c.ClaimPool(cmd.Context(), pool)
				if err != nil {
					return err
				}
			}
			return printJSON(cmd, feed.EventFromRecord(rec))
		},
	}
	cmd.Flags().StringVar(&treePath, "tree", "", "tree dump holding the signer's allocation")
	return cmd
}

func claimedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "claimed <pool>",
		Short: "Print a pool's claimed total",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := domain.ParsePool(args[0])
			if err != nil {
				return err
			}
			c, err := newClient(false)
			if err != nil {
				return err
			}
			total, err := c.TotalClaimed(cmd.Context(), pool)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s claimed: %s\n", pool, domain.FormatTokens(total))
			return nil
		},
	}
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the distributor status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(false)
			if err != nil {
				return err
			}
			st, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		},
	}
}

func auditCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Check the ledger against the claim history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(false)
			if err != nil {
				return err
			}
			report, err := c.Audit(cmd.Context())
			if err != nil {
				return err
			}
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if report.DivergentPools > 0 {
				return fmt.Errorf("%d of %d pools diverge from claim history", report.DivergentPools, report.TotalPools)
			}
			return nil
		},
	}
}
