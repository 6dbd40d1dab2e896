// Package main is the operator CLI: Merkle tree tooling, schedule reports,
// simulations, and a client for a running distributord.
package main

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"y8u-distributor/internal/api"
	"y8u-distributor/internal/config"
)

const programName = "distributorctl"

var globalFlags = struct {
	endpoint string
	key      string
	envFile  string
}{}

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Operate the Y8U token distributor",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(globalFlags.envFile); err != nil {
				return err
			}
			if globalFlags.endpoint == "" {
				globalFlags.endpoint = os.Getenv("DISTRIBUTOR_ENDPOINT")
			}
			if globalFlags.endpoint == "" {
				globalFlags.endpoint = "http://localhost:8080"
			}
			if globalFlags.key == "" {
				globalFlags.key = os.Getenv("DISTRIBUTOR_KEY")
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.endpoint, "endpoint", "", "distributord base URL (env DISTRIBUTOR_ENDPOINT)")
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.key, "key", "", "hex private key used to sign requests (env DISTRIBUTOR_KEY)")
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.envFile, "env-file", ".env", "dotenv file to load")

	// Subcommands
	rootCmd.AddCommand(merkleCommand())
	rootCmd.AddCommand(scheduleCommand())
	rootCmd.AddCommand(simulateCommand())
	rootCmd.AddCommand(tgeCommand())
	rootCmd.AddCommand(rootCommandFor())
	rootCmd.AddCommand(claimCommand())
	rootCmd.AddCommand(claimedCommand())
	rootCmd.AddCommand(statusCommand())
	rootCmd.AddCommand(auditCommand())
	rootCmd.AddCommand(watchCommand())

	return rootCmd
}

func loadKey() (*ecdsa.PrivateKey, error) {
	if globalFlags.key == "" {
		return nil, errors.New("a signing key is required (--key or DISTRIBUTOR_KEY)")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(globalFlags.key, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse key: %w", err)
	}
	return key, nil
}

func newClient(signed bool) (*api.Client, error) {
	if !signed {
		return api.NewClient(globalFlags.endpoint), nil
	}
	key, err := loadKey()
	if err != nil {
		return nil, err
	}
	return api.NewClient(globalFlags.endpoint, api.WithSigner(key)), nil
}
