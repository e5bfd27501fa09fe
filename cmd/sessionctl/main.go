package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"go-art-session/internal/model"
)

const Version = "0.1.0"

func main() {
	if err := rootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	addr    string
	timeout time.Duration
}

func (g *globalFlags) client() *daemonClient {
	return newDaemonClient(g.addr, g.timeout)
}

func rootCmd(out io.Writer) *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Inspect and drive a running sessiond",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)

	defaultAddr := os.Getenv("SESSIOND_URL")
	if defaultAddr == "" {
		defaultAddr = "http://localhost:8787"
	}
	cmd.PersistentFlags().StringVar(&g.addr, "addr", defaultAddr, "sessiond base URL")
	cmd.PersistentFlags().DurationVar(&g.timeout, "timeout", 30*time.Second, "Request timeout")

	simple := func(use, short, method, path string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				env, err := g.client().call(cmd.Context(), method, path, nil)
				if err != nil {
					return err
				}
				return printEnvelope(cmd.OutOrStdout(), env)
			},
		}
	}

	cmd.AddCommand(
		simple("status", "Show the current session", http.MethodGet, "/session"),
		simple("logout", "End the session", http.MethodPost, "/session/logout"),
		simple("refresh", "Refresh the access token now", http.MethodPost, "/session/refresh"),
		simple("reconcile", "Re-derive the session from stored credentials", http.MethodPost, "/session/reconcile"),
		simple("token", "Print the current bearer token and its expiry", http.MethodGet, "/session/token"),
		loginCmd(g),
		registerCmd(g),
		guardCmd(g),
		watchCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "sessionctl version %s\n", Version)
			},
		},
	)

	return cmd
}

func loginCmd(g *globalFlags) *cobra.Command {
	var req model.LoginRequest

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				req.Password = os.Getenv("SESSIONCTL_PASSWORD")
			}
			env, err := g.client().call(cmd.Context(), http.MethodPost, "/session/login", req)
			if err != nil {
				return err
			}
			return printEnvelope(cmd.OutOrStdout(), env)
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "Account password (or SESSIONCTL_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func registerCmd(g *globalFlags) *cobra.Command {
	var (
		req  model.RegisterRequest
		role string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				req.Password = os.Getenv("SESSIONCTL_PASSWORD")
			}
			if role != "" {
				parsed, ok := model.ParseRole(role)
				if !ok {
					return fmt.Errorf("unknown role %q", role)
				}
				req.Role = parsed
			}
			env, err := g.client().call(cmd.Context(), http.MethodPost, "/session/register", req)
			if err != nil {
				return err
			}
			return printEnvelope(cmd.OutOrStdout(), env)
		},
	}
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&req.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "Account password (or SESSIONCTL_PASSWORD)")
	cmd.Flags().StringVar(&role, "role", "", "CUSTOMER, ARTIST or ADMIN")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func guardCmd(g *globalFlags) *cobra.Command {
	var roles []string

	cmd := &cobra.Command{
		Use:   "guard",
		Short: "Ask whether a route gated on roles may render",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/guard"
			if len(roles) > 0 {
				path += "?roles=" + strings.Join(roles, ",")
			}
			env, err := g.client().call(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			return printEnvelope(cmd.OutOrStdout(), env)
		},
	}
	cmd.Flags().StringSliceVar(&roles, "roles", nil, "Allowed roles")
	return cmd
}

func watchCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream session events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			// No client timeout: it would cut the stream.
			return newDaemonClient(g.addr, 0).watch(ctx, cmd.OutOrStdout())
		},
	}
}

func printEnvelope(out io.Writer, env *envelope) error {
	if env.Notice != "" {
		fmt.Fprintf(out, "notice: %s\n", env.Notice)
	}
	if len(env.Data) == 0 {
		return nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, env.Data, "", "  "); err != nil {
		return err
	}
	pretty.WriteByte('\n')
	_, err := pretty.WriteTo(out)
	return err
}
