package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/alex65536/keyreg/internal/database"
	"github.com/alex65536/keyreg/internal/passkey"
	"github.com/alex65536/keyreg/internal/userauth"
	"github.com/alex65536/keyreg/internal/util/signal"
	"github.com/alex65536/keyreg/internal/util/slogx"
	"github.com/alex65536/keyreg/internal/webui"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:     "keyreg-server",
	Args:    cobra.ExactArgs(0),
	Version: "indev",
	Short:   "Start keyreg server",
	Long: `keyreg lets users pick a username and register a passkey for it.

This command runs keyreg server.
`,
}

func loadSecrets(path string) (*Secrets, error) {
	rawSecrets, err := os.ReadFile(path)
	if err != nil {
		rawSecrets = nil
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read secrets: %w", err)
		}
	}
	var secrets Secrets
	if err := toml.Unmarshal(rawSecrets, &secrets); err != nil {
		return nil, fmt.Errorf("unmarshal secrets: %w", err)
	}
	secretsChanged, err := secrets.GenerateMissing()
	if err != nil {
		return nil, fmt.Errorf("generate secrets: %w", err)
	}
	if secretsChanged {
		newRawSecrets, err := toml.Marshal(&secrets)
		if err != nil {
			return nil, fmt.Errorf("marshal secrets: %w", err)
		}
		if err := os.WriteFile(path, newRawSecrets, 0600); err != nil {
			return nil, fmt.Errorf("write secrets: %w", err)
		}
	}
	return &secrets, nil
}

func loadOptions(path string, secrets *Secrets) (*Options, error) {
	var opts Options
	if path != "" {
		rawOpts, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read options: %w", err)
		}
		if err := toml.Unmarshal(rawOpts, &opts); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
	}
	if err := opts.MixSecrets(secrets); err != nil {
		return nil, fmt.Errorf("mix secrets into options: %w", err)
	}
	opts.FillDefaults()
	return &opts, nil
}

func run(ctx context.Context, opts *Options) error {
	log, err := slogx.New(os.Stderr, opts.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	db, err := database.New(log, opts.DB)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	userMgr := userauth.NewManager(log, db, opts.Users)
	defer userMgr.Close()
	avail := userauth.NewAvailabilityCache(opts.Availability, userMgr)
	defer avail.Close()
	registrar, err := passkey.New(log, userMgr, opts.Passkey)
	if err != nil {
		return fmt.Errorf("create registrar: %w", err)
	}

	mux := http.NewServeMux()
	if err := webui.Handle(ctx, log, mux, "", webui.Config{
		UserManager:         userMgr,
		Registrar:           registrar,
		Availability:        avail,
		SessionStoreFactory: db,
	}, opts.WebUI); err != nil {
		return fmt.Errorf("handle webui: %w", err)
	}

	servers, err := newServers(ctx, log, opts, mux)
	if err != nil {
		return fmt.Errorf("create servers: %w", err)
	}
	servers.Go()
	defer servers.Shutdown()

	<-ctx.Done()
	return nil
}

func main() {
	p := serverCmd.Flags()
	optsPath := p.StringP(
		"options", "o", "",
		"options file",
	)
	secretsPath := p.StringP(
		"secrets", "s", "",
		"secrets file",
	)
	if err := serverCmd.MarkFlagRequired("secrets"); err != nil {
		panic(err)
	}

	serverCmd.RunE = func(cmd *cobra.Command, _args []string) error {
		secrets, err := loadSecrets(*secretsPath)
		if err != nil {
			return err
		}
		opts, err := loadOptions(*optsPath, secrets)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return run(ctx, opts)
	}

	if err := serverCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
