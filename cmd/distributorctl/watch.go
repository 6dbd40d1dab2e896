package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/feed"
)

// feedURL converts the HTTP endpoint into the websocket feed URL.
func feedURL(endpoint, pool, account string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/ws/claims"

	q := url.Values{}
	if pool != "" {
		p, err := domain.ParsePool(pool)
		if err != nil {
			return "", err
		}
		q.Set("pool", string(p))
	}
	if account != "" {
		if !common.IsHexAddress(account) {
			return "", fmt.Errorf("invalid account %q", account)
		}
		q.Set("account", account)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func watchCommand() *cobra.Command {
	var (
		pool    string
		account string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream claim events as JSON lines until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, err := feedURL(globalFlags.endpoint, pool, account)
			if err != nil {
				return err
			}

			var logOut io.Writer = io.Discard
			if verbose {
				logOut = os.Stderr
			}
			c, err := feed.Dial(cmd.Context(), endpoint, nil, log.New(logOut, "[watch] ", log.LstdFlags))
			if err != nil {
				return err
			}
			defer c.Close()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			enc := json.NewEncoder(cmd.OutOrStdout())
			for {
				select {
				case ev, ok := <-c.Events():
					if !ok {
						return nil
					}
					if err := enc.Encode(ev); err != nil {
						return err
					}
				case <-sigCh:
					return nil
				case <-cmd.Context().Done():
					return nil
				}
			}
		},
	}
	cmd.Flags().StringVar(&pool, "pool", "", "only events of this pool")
	cmd.Flags().StringVar(&account, "account", "", "only events paid to this account")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log reconnects to stderr")
	return cmd
}
