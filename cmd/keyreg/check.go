package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alex65536/keyreg/internal/regapi"
	"github.com/alex65536/keyreg/internal/userauth"
	"github.com/alex65536/keyreg/internal/util/style"
	"github.com/spf13/cobra"
)

var (
	aNoReserved bool
	aServer     string
	aTimeout    time.Duration
)

var errRejected = errors.New("some names were rejected")

var checkCmd = &cobra.Command{
	Use:   "check NAME...",
	Short: "Check usernames against the registration rules",
	Long: `Checks each username the same way the server does before a passkey ceremony is
started. Without --server the check is offline and only the name rules are applied. With
--server the running instance is also asked whether the name is still free.

Exits with non-zero code if any name is rejected.
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := &style.Writer{Writer: cmd.OutOrStdout(), Color: style.SupportsColor(os.Stdout)}
		var failed int
		if aServer != "" {
			ctx, cancel := context.WithTimeout(cmd.Context(), aTimeout)
			defer cancel()
			c := regapi.NewClient(regapi.ClientOptions{Endpoint: aServer}, http.DefaultClient)
			var err error
			failed, err = checkNamesRemote(ctx, w, c, args)
			if err != nil {
				return err
			}
		} else {
			failed = checkNames(w, args, !aNoReserved)
		}
		if failed != 0 {
			return errRejected
		}
		return nil
	},
}

func init() {
	p := checkCmd.Flags()
	p.BoolVar(&aNoReserved, "no-reserved", false, "do not reject reserved names in offline mode")
	p.StringVarP(&aServer, "server", "s", "", "keyreg server endpoint, e.g. http://localhost:8080")
	p.DurationVar(&aTimeout, "timeout", 10*time.Second, "timeout for server requests")
}

func printFail(w *style.Writer, color int, name, reason string) {
	fmt.Fprintf(w, "%v %q: %v\n", w.With("FAIL", style.Bold, color), name, reason)
}

func printOK(w *style.Writer, name string) {
	fmt.Fprintf(w, "%v %q\n", w.With("OK", style.Bold, style.Green), name)
}

// checkNames prints one line per name and returns the number of rejected names.
func checkNames(w *style.Writer, names []string, withReserved bool) int {
	failed := 0
	for _, name := range names {
		check := userauth.CheckUsername(name)
		switch {
		case !check.OK():
			failed++
			printFail(w, style.Red, name, check.Violation.Message)
		case withReserved && userauth.IsReservedName(name, nil):
			failed++
			printFail(w, style.Yellow, name, userauth.ErrNameReserved.Error())
		default:
			printOK(w, name)
		}
	}
	return failed
}

func checkNamesRemote(ctx context.Context, w *style.Writer, c regapi.API, names []string) (int, error) {
	failed := 0
	for _, name := range names {
		st, err := c.NameStatus(ctx, name)
		if err != nil {
			return failed, fmt.Errorf("check %q: %w", name, err)
		}
		if st.Available {
			printOK(w, name)
			continue
		}
		failed++
		color := style.Red
		if st.Kind == "taken" || st.Kind == "reserved" {
			color = style.Yellow
		}
		reason := st.Message
		if len(st.Suggestions) != 0 {
			reason += " (try: " + strings.Join(st.Suggestions, ", ") + ")"
		}
		printFail(w, color, name, reason)
	}
	return failed, nil
}
