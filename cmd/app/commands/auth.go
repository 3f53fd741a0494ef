package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Domenick1991/tailorbook/internal/domain"
	"github.com/Domenick1991/tailorbook/internal/session"
	"github.com/spf13/cobra"
)

func newLoginCommand(e *env) *cobra.Command {
	var creds session.Credentials

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if creds.Password == "" {
				creds.Password = readPassword(cmd)
			}
			s, err := e.app.Session.Login(cmd.Context(), creds)
			if err != nil {
				return err
			}
			u, err := e.user(cmd, s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", u.Username, u.Role)
			return nil
		},
	}

	cmd.Flags().StringVarP(&creds.Username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&creds.Password, "password", "p", "", "password (default $TAILORBOOK_PASSWORD or prompt)")
	return cmd
}

func newRegisterCommand(e *env) *cobra.Command {
	var (
		reg      session.Registration
		role     string
		lat, lng float64
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg.Role = domain.Role(strings.ToLower(strings.TrimSpace(role)))
			if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng") {
				reg.Latitude, reg.Longitude = &lat, &lng
			}
			if reg.Password == "" {
				reg.Password = readPassword(cmd)
			}
			s, err := e.app.Session.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			u, err := e.user(cmd, s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s! You are registered as a %s.\n", u.Username, u.Role)
			return nil
		},
	}

	cmd.Flags().StringVarP(&reg.Username, "username", "u", "", "username")
	cmd.Flags().StringVar(&reg.Email, "email", "", "email address")
	cmd.Flags().StringVarP(&reg.Password, "password", "p", "", "password, at least 6 characters")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleCustomer), "customer or tailor")
	cmd.Flags().StringVar(&reg.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&reg.LastName, "last-name", "", "last name")
	cmd.Flags().Float64Var(&lat, "lat", 0, "home latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "home longitude")
	return cmd
}

func newLogoutCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.app.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := e.app.API.Me(cmd.Context())
			if err != nil {
				return err
			}
			return e.print(cmd, u, func(w io.Writer) {
				row(w, "USERNAME", "ROLE", "EMAIL", "NAME")
				row(w, u.Username, u.Role, u.Email, strings.TrimSpace(u.FirstName+" "+u.LastName))
			})
		},
	}
}

func (e *env) user(cmd *cobra.Command, s domain.Session) (*domain.User, error) {
	if s.CurrentUser != nil {
		return s.CurrentUser, nil
	}
	return e.app.API.Me(cmd.Context())
}

func readPassword(cmd *cobra.Command) string {
	if p := os.Getenv("TAILORBOOK_PASSWORD"); p != "" {
		return p
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}
