package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/merkle"
)

// proofOutput is printed by "merkle proof".
type proofOutput struct {
	Root       string   `json:"root"`
	Account    string   `json:"account"`
	Allocation string   `json:"allocation"`
	Proof      []string `json:"proof"`
}

func merkleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merkle",
		Short: "Build Merkle trees and proofs for sale pools",
	}
	cmd.AddCommand(merkleBuildCommand())
	cmd.AddCommand(merkleProofCommand())
	cmd.AddCommand(merkleVerifyCommand())
	return cmd
}

func merkleBuildCommand() *cobra.Command {
	var (
		out       string
		baseUnits bool
	)
	cmd := &cobra.Command{
		Use:   "build <allocations.csv>",
		Short: "Build a tree from address,amount rows and print its root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			allocs, err := readAllocations(f, baseUnits)
			if err != nil {
				return err
			}
			tree, err := merkle.Build(allocs)
			if err != nil {
				return err
			}

			if out != "" {
				data, err := json.MarshalIndent(tree, "", "  ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "root:        %s\n", tree.Root().Hex())
			fmt.Fprintf(cmd.OutOrStdout(), "accounts:    %d\n", tree.Len())
			fmt.Fprintf(cmd.OutOrStdout(), "total:       %s\n", domain.FormatTokens(tree.Total()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the tree dump (standard-v1 JSON) to this file")
	cmd.Flags().BoolVar(&baseUnits, "base-units", false, "amounts are base units instead of decimal tokens")
	return cmd
}

func merkleProofCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "proof <tree.json> <address>",
		Short: "Print the allocation and proof of an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadTreeFile(args[0])
			if err != nil {
				return err
			}
			if !common.IsHexAddress(args[1]) {
				return fmt.Errorf("invalid address %q", args[1])
			}
			alloc, proof, err := tree.Proof(common.HexToAddress(args[1]))
			if err != nil {
				return err
			}

			out := proofOutput{
				Root:       tree.Root().Hex(),
				Account:    alloc.Account.Hex(),
				Allocation: alloc.Amount.String(),
				Proof:      make([]string, len(proof)),
			}
			for i, h := range proof {
				out.Proof[i] = h.Hex()
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func merkleVerifyCommand() *cobra.Command {
	var (
		root       string
		account    string
		allocation string
		proof      []string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check an allocation proof against a root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := merkle.ParseHash(root)
			if err != nil {
				return err
			}
			if !common.IsHexAddress(account) {
				return fmt.Errorf("invalid account %q", account)
			}
			amount, err := domain.ParseAmount(allocation)
			if err != nil {
				return err
			}
			hashes, err := merkle.ParseProof(proof)
			if err != nil {
				return err
			}

			if !merkle.VerifyAllocation(r, common.HexToAddress(account), amount, hashes) {
				return domain.ErrInvalidProof
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "Merkle root")
	cmd.Flags().StringVar(&account, "account", "", "account address")
	cmd.Flags().StringVar(&allocation, "allocation", "", "allocation in base units")
	cmd.Flags().StringSliceVar(&proof, "proof", nil, "comma-separated proof hashes")
	cmd.MarkFlagRequired("root")
	cmd.MarkFlagRequired("account")
	cmd.MarkFlagRequired("allocation")
	return cmd
}

// readAllocations parses "address,amount" rows. A header row and blank
// lines are skipped.
func readAllocations(r io.Reader, baseUnits bool) ([]merkle.Allocation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var allocs []merkle.Allocation
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		addr, amount := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
		if row == 1 && strings.EqualFold(addr, "address") {
			continue
		}
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("row %d: invalid address %q", row, addr)
		}

		parse := domain.ParseTokens
		if baseUnits {
			parse = domain.ParseAmount
		}
		n, err := parse(amount)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		allocs = append(allocs, merkle.Allocation{Account: common.HexToAddress(addr), Amount: n})
	}
	return allocs, nil
}

func loadTreeFile(path string) (*merkle.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return merkle.LoadTree(data)
}
