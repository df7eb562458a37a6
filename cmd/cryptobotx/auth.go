package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cryptobotx-go/internal/app"
	"cryptobotx-go/internal/auth"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

func loginCmd() *cobra.Command {
	return credentialCmd("login", "Sign in to CryptoBotX", func(a *app.App) func(context.Context, auth.Login) (*auth.Credential, error) {
		return a.Auth.SignIn
	})
}

func signupCmd() *cobra.Command {
	return credentialCmd("signup", "Create a CryptoBotX account", func(a *app.App) func(context.Context, auth.Login) (*auth.Credential, error) {
		return a.Auth.SignUp
	})
}

func credentialCmd(use, short string, flow func(*app.App) func(context.Context, auth.Login) (*auth.Credential, error)) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			in := bufio.NewReader(cmd.InOrStdin())
			if email == "" {
				if email, err = prompt(cmd.OutOrStdout(), in, "Email"); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = readPassword(cmd.OutOrStdout(), cmd.InOrStdin(), in); err != nil {
					return err
				}
			}

			cred, err := flow(a)(cmd.Context(), auth.Login{Email: email, Password: password})
			if err != nil {
				return err
			}
			if err := a.SaveCredential(*cred); err != nil {
				return err
			}

			a.Log.Debug("Session stored", zap.String("user_id", cred.UserID))
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", cred.Email)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (prompted when empty)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Sessions.DeleteAll(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func prompt(w io.Writer, in *bufio.Reader, label string) (string, error) {
	fmt.Fprintf(w, "%s: ", label)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo when stdin is a terminal. Piped input goes
// through the shared line reader.
func readPassword(w io.Writer, r io.Reader, in *bufio.Reader) (string, error) {
	f, ok := r.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return prompt(w, in, "Password")
	}

	fmt.Fprint(w, "Password: ")
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
