// internal/cli/query.go
package cli

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tamzrod/status-broker/internal/client"
	"github.com/tamzrod/status-broker/internal/config"
)

func newQueryCmd(env Env) *cobra.Command {
	var (
		host    string
		port    int
		secret  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "query [serviceId]",
		Short: "Ask a running broker for one service, or all of them",
		Long: `Send one request and print the reply as "<status>#<payload>".

Without serviceId the broker answers with every service and the worst state.

Examples:
  statusbrokerd query web01/HTTP --secret s3cret
  statusbrokerd query --host 10.0.0.5          # prompts for the passphrase
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sid string
			if len(args) == 1 {
				sid = args[0]
			}

			if !cmd.Flags().Changed("secret") {
				fmt.Fprint(cmd.ErrOrStderr(), "Passphrase: ")
				b, err := env.ReadPassword()
				fmt.Fprintln(cmd.ErrOrStderr())
				if err != nil {
					return fmt.Errorf("cli: read passphrase: %w", err)
				}
				secret = string(b)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			c, err := client.Dial(ctx, net.JoinHostPort(host, strconv.Itoa(port)), timeout)
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.Query(secret, sid)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.String())
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&host, "host", "127.0.0.1", "broker host")
	fl.IntVarP(&port, "port", "p", config.DefaultPort, "broker port")
	fl.StringVar(&secret, "secret", "", "passphrase (prompted when omitted)")
	fl.DurationVar(&timeout, "timeout", 5*time.Second, "round-trip timeout")

	return cmd
}
