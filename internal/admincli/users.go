package admincli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/fundkeeper/internal/common"
	"github.com/dmitrijs2005/fundkeeper/internal/logging"
	"github.com/dmitrijs2005/fundkeeper/internal/server/config"
	"github.com/dmitrijs2005/fundkeeper/internal/server/models"
	"github.com/dmitrijs2005/fundkeeper/internal/server/services"
	"github.com/dmitrijs2005/fundkeeper/internal/server/storage"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

func userCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(userCreateCmd(opts))
	cmd.AddCommand(userListCmd(opts))
	return cmd
}

func userCreateCmd(opts *options) *cobra.Command {
	var (
		name  string
		email string
		admin bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account, prompting for its password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := opts.password(cmd.InOrStdin())
			if err != nil {
				return err
			}

			return opts.withStorage(cmd.Context(), func(st *storage.Storage, logger logging.Logger) error {
				cfg := &config.Config{}
				cfg.LoadDefaults()
				svc := services.NewUserService(st.Transactor, st.Manager, logger, cfg)

				u, err := svc.Register(cmd.Context(), services.UserInput{
					Name:     name,
					Email:    email,
					Password: password,
					IsAdmin:  admin,
				})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(opts.out, "created user %s (%s)\n", u.ID, roleOf(u))
				return err
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant administrator rights")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// password reads the new account's password twice from the terminal, or
// once from a line on stdin when it is not a terminal.
func (o *options) password(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && isTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		fmt.Fprint(o.out, "Password: ")
		first, err := readPassword(fd)
		fmt.Fprintln(o.out)
		if err != nil {
			return "", err
		}
		defer common.WipeByteArray(first)
		fmt.Fprint(o.out, "Repeat password: ")
		second, err := readPassword(fd)
		fmt.Fprintln(o.out)
		if err != nil {
			return "", err
		}
		defer common.WipeByteArray(second)
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func userListCmd(opts *options) *cobra.Command {
	var (
		role string
		sort string
		desc bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStorage(cmd.Context(), func(st *storage.Storage, _ logging.Logger) error {
				list, err := st.Manager.Users(st.Transactor.Conn()).List(cmd.Context(), models.UserFilter{
					Role: role,
					Sort: sort,
					Desc: desc,
				})
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(opts.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE")
				for _, u := range list {
					email := ""
					if u.Email != nil {
						email = *u.Email
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Name, email, roleOf(u))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&role, "role", "", `"admin", "user" or empty for both`)
	cmd.Flags().StringVar(&sort, "sort", "name", "name, email, created_at or role")
	cmd.Flags().BoolVar(&desc, "desc", false, "reverse the sort order")

	return cmd
}

func roleOf(u *models.User) string {
	if u.IsAdmin {
		return "admin"
	}
	return "user"
}
