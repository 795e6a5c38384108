// Command ssofactd serves the ssoFACT relying party handlers and provides a
// few admin commands for the registration API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/newsfactory/ssofact/oidc"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app is shared by the subcommands once the root command loaded the config.
type app struct {
	configPath string
	logLevel   string
	cfg        *Config
	logger     hclog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "ssofactd",
		Short:        "ssoFACT relying party daemon",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(a.configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.LogLevel = a.logLevel
			}
			a.cfg = cfg
			a.logger = hclog.New(&hclog.LoggerOptions{
				Name:   "ssofactd",
				Level:  hclog.LevelFromString(cfg.LogLevel),
				Output: cmd.ErrOrStderr(),
			})
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", DefaultConfigPath, "path of the YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "overrides log_level of the config file")

	root.AddCommand(
		a.serveCmd(),
		a.checkEmailCmd(),
		a.createUserCmd(),
		a.endpointsCmd(),
	)
	return root
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the callback, login, logout and registration handlers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	s, err := newServer(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			a.logger.Error("unable to close the session store", "error", err)
		}
	}()
	h, err := s.routes()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", a.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvCh <- err
		}
		close(srvCh)
	}()

	select {
	case err := <-srvCh:
		return err
	case <-ctx.Done():
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (a *app) checkEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-email <email>",
		Short: "Ask ssoFACT whether an email address is registered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.registrar()
			if err != nil {
				return err
			}
			status, err := r.IsEmailRegistered(cmd.Context(), args[0])
			var vErr *oidc.ValidationError
			switch {
			case errors.As(err, &vErr):
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], strings.Join(vErr.Messages, "; "))
				return err
			case err != nil:
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: not registered (status %d)\n", args[0], status.StatusCode)
			return nil
		},
	}
}

func (a *app) createUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-user <email> <confirmation-url>",
		Short: "Create an ssoFACT account and send its confirmation mail",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.registrar()
			if err != nil {
				return err
			}
			created, err := r.CreateUser(cmd.Context(), args[0], args[1])
			if err != nil {
				for _, v := range oidc.ValidationErrors(err) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", v.Field, strings.Join(v.Messages, "; "))
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s\n", created.UserID)
			printMessages(cmd.OutOrStdout(), created.Messages)
			return nil
		},
	}
}

func (a *app) endpointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints",
		Short: "Print the endpoints derived from the server domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			oc, err := a.cfg.OIDCConfig(a.logger)
			if err != nil {
				return err
			}
			eps, err := oc.Endpoints()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range []struct{ name, url string }{
				{"authorization", eps.Authorization},
				{"token", eps.Token},
				{"userinfo", eps.UserInfo},
				{"end_session", eps.EndSession},
				{"user_create", eps.UserCreate},
				{"is_email_registered", eps.IsEmailRegistered},
				{"password_reset", eps.PasswordReset},
			} {
				fmt.Fprintf(out, "%-20s %s\n", e.name, e.url)
			}
			return nil
		},
	}
}

func (a *app) registrar() (*oidc.Registrar, error) {
	oc, err := a.cfg.OIDCConfig(a.logger)
	if err != nil {
		return nil, err
	}
	return oidc.NewRegistrar(oc)
}

func printMessages(w io.Writer, msgs []string) {
	for _, m := range msgs {
		fmt.Fprintf(w, "  %s\n", m)
	}
}
