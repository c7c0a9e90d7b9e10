package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"bibliogoya-backend/internal/members"
)

// readPassword masks input on a terminal; piped stdin is read one line at a time.
func (a *app) readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (a *app) membersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "members", Short: "Manage library members"}

	var (
		req      members.CreateMemberRequest
		withPass bool
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if withPass {
				pw, err := a.readPassword(cmd, "Password: ")
				if err != nil {
					return err
				}
				req.Password = &pw
			}
			m, err := a.members.CreateMember(a.ctx(cmd), req)
			if err != nil {
				return err
			}
			return a.render(cmd, m, []string{"ID", "NAME", "EMAIL", "ROLE", "LOGIN"},
				[][]string{{i64(m.ID), m.Name + " " + m.Surname, m.Email, m.Role, yesNo(m.HasLogin)}})
		},
	}
	fl := add.Flags()
	fl.StringVar(&req.Name, "name", "", "given name")
	fl.StringVar(&req.Surname, "surname", "", "surname")
	fl.StringVar(&req.Email, "email", "", "email address")
	fl.StringVar(&req.NationalID, "national-id", "", "national identity document")
	fl.StringVar(&req.Phone, "phone", "", "phone number")
	fl.StringVar(&req.Role, "role", "Member", "Member or Administrator")
	fl.BoolVar(&withPass, "password", false, "prompt for a login password")
	for _, name := range []string{"name", "surname", "email", "national-id"} {
		_ = add.MarkFlagRequired(name)
	}

	var role, q string
	list := &cobra.Command{
		Use:   "list",
		Short: "List members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := members.MemberFilter{Q: q}
			if role != "" {
				f.Role = &role
			}
			res, err := a.members.ListMembers(a.ctx(cmd), f, members.Page{})
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(res.Items))
			for _, m := range res.Items {
				rows = append(rows, []string{i64(m.ID), m.Surname + ", " + m.Name, m.Email, m.Role, yesNo(m.HasLogin)})
			}
			return a.render(cmd, res, []string{"ID", "NAME", "EMAIL", "ROLE", "LOGIN"}, rows)
		},
	}
	list.Flags().StringVar(&role, "role", "", "only this role")
	list.Flags().StringVar(&q, "q", "", "name, surname or email prefix")

	passwd := &cobra.Command{
		Use:   "passwd <member-id>",
		Short: "Set a member's login password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "member-id")
			if err != nil {
				return err
			}
			m, err := a.members.GetMember(a.ctx(cmd), id)
			if err != nil {
				return err
			}
			pw, err := a.readPassword(cmd, fmt.Sprintf("New password for %s %s: ", m.Name, m.Surname))
			if err != nil {
				return err
			}
			if err := a.members.SetPassword(a.ctx(cmd), id, pw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password set for member %d\n", id)
			return nil
		},
	}

	cmd.AddCommand(add, list, passwd)
	return cmd
}
