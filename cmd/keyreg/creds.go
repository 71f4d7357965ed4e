package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alex65536/keyreg/internal/regapi"
	"github.com/alex65536/keyreg/internal/util/style"
	"github.com/spf13/cobra"
)

var aCredsServer string

var credsCmd = &cobra.Command{
	Use:   "creds USERNAME",
	Short: "List passkeys registered for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := &style.Writer{Writer: cmd.OutOrStdout(), Color: style.SupportsColor(os.Stdout)}
		ctx, cancel := context.WithTimeout(cmd.Context(), aTimeout)
		defer cancel()
		c := regapi.NewClient(regapi.ClientOptions{Endpoint: aCredsServer}, http.DefaultClient)
		return listCredentials(ctx, w, c, args[0])
	},
}

func init() {
	p := credsCmd.Flags()
	p.StringVarP(&aCredsServer, "server", "s", "http://localhost:8080", "keyreg server endpoint")
	p.DurationVar(&aTimeout, "timeout", 10*time.Second, "timeout for server requests")
}

func listCredentials(ctx context.Context, w *style.Writer, c regapi.API, username string) error {
	creds, err := c.UserCredentials(ctx, username)
	if err != nil {
		if regapi.MatchesStatus(err, http.StatusNotFound) {
			return fmt.Errorf("user %q not found", username)
		}
		return fmt.Errorf("list credentials: %w", err)
	}
	fmt.Fprintf(w, "%v\n", w.With(creds.Username, style.Bold))
	for _, cr := range creds.Credentials {
		transports := "-"
		if len(cr.Transports) != 0 {
			transports = strings.Join(cr.Transports, ",")
		}
		fmt.Fprintf(w, "  %v  %v  %v\n", cr.ID, cr.CreatedAt.Format(time.RFC3339), transports)
	}
	return nil
}
