package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/warden/pkg/auth"
)

// newUserCommand manages identities directly against the store. Changes are
// audited as system actions.
func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserCreateCommand())
	cmd.AddCommand(newUserPasswdCommand())
	return cmd
}

func newUserCreateCommand() *cobra.Command {
	var username, email, role string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user (password from WARDEN_NEW_USER_PASSWORD or stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			identity, err := a.users.CreateIdentity(cmd.Context(), nil, auth.NewIdentity{
				Username: username,
				Email:    email,
				Password: password,
				Role:     auth.Role(role),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d, role %s)\n", identity.Username, identity.ID, identity.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleStandard), "administrator, standard or viewer")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUserPasswdCommand() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Reset a user's password and revoke their sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			identity, err := a.users.FindByUsername(cmd.Context(), username)
			if err != nil {
				return err
			}
			if err := a.users.SetCredential(cmd.Context(), nil, identity.ID, password); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s\n", identity.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "login name")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

// readPassword prefers the environment so passwords stay out of shell history
func readPassword(in io.Reader) (string, error) {
	if pw := os.Getenv("WARDEN_NEW_USER_PASSWORD"); pw != "" {
		return pw, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("password is required on stdin or in WARDEN_NEW_USER_PASSWORD")
	}
	return line, nil
}
