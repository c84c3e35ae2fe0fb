package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hubenschmidt/vishing-trainer/internal/api"
)

func newLoginCmd(cfg *config) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if username == "" {
				if username, err = prompt(cmd.OutOrStdout(), in, "Username: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = prompt(cmd.OutOrStdout(), in, "Password: "); err != nil {
					return err
				}
			}

			client := api.NewClient(cfg.apiURL, cfg.apiTimeout)
			token, err := client.Login(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			if err := saveToken(cfg.tokenFile, token); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Logged in as "+username))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (prompted when empty)")
	return cmd
}

func newSignupCmd(cfg *config) *cobra.Command {
	var req api.SignupRequest
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(cfg.apiURL, cfg.apiTimeout)
			if err := client.Signup(cmd.Context(), req); err != nil {
				return fmt.Errorf("signup: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Account created. Run `trainer login -u "+req.Username+"`."))
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.Username, "username", "u", "", "Username (at least 4 characters)")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "Password (at least 6 characters)")
	cmd.Flags().StringVar(&req.Name, "name", "", "Display name")
	cmd.Flags().IntVar(&req.Age, "age", 0, "Age")
	cmd.Flags().StringVar(&req.Gender, "gender", "", "male or female")
	return cmd
}

func newProfileCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the logged-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(cfg)
			if client.Token() == "" {
				return errNotLoggedIn
			}
			p, err := client.Profile(cmd.Context())
			if err != nil {
				return fmt.Errorf("profile: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderProfile(p))
			return nil
		},
	}
}

func prompt(w io.Writer, r *bufio.Reader, label string) (string, error) {
	fmt.Fprint(w, label)
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("%s required", strings.TrimSuffix(label, ": "))
	}
	return line, nil
}

// isTerminal reports whether f looks like an interactive terminal.
func isTerminal(f *os.File) bool {
	st, err := f.Stat()
	return err == nil && st.Mode()&os.ModeCharDevice != 0
}
