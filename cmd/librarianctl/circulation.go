package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bibliogoya-backend/internal/lending"
)

func (a *app) borrowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "borrow <book-id> <member-id>",
		Short: "Lend a book to a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, memberID, err := bookAndMember(args)
			if err != nil {
				return err
			}
			res, err := a.lending.AdminCreateLoanDirect(a.ctx(cmd), bookID, memberID)
			if err != nil {
				return err
			}
			l := res.Loan
			return a.render(cmd, res, []string{"LOAN", "BOOK", "MEMBER", "DUE", "RESERVATION"},
				[][]string{{i64(l.LoanID), l.Book.Title, l.Member.Email, day(l.DueDate), string(res.Reservation.Status)}})
		},
	}
}

func (a *app) returnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "return <book-id> <member-id>",
		Short: "Record a returned book",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, memberID, err := bookAndMember(args)
			if err != nil {
				return err
			}
			res, err := a.lending.Return(a.ctx(cmd), bookID, memberID)
			if err != nil {
				return err
			}
			return a.render(cmd, res, []string{"BOOK", "MEMBER", "LOANED", "RETURNED"},
				[][]string{{i64(res.BookID), i64(res.MemberID), day(res.LoanDate), day(res.ReturnedAt)}})
		},
	}
}

func bookAndMember(args []string) (int64, int64, error) {
	bookID, err := parseID(args[0], "book-id")
	if err != nil {
		return 0, 0, err
	}
	memberID, err := parseID(args[1], "member-id")
	if err != nil {
		return 0, 0, err
	}
	return bookID, memberID, nil
}

func (a *app) loansCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "loans", Short: "Inspect and correct live loans"}

	var member int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List live loans with their owners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				loans []lending.LoanResponse
				err   error
			)
			if member > 0 {
				loans, err = a.lending.ListLoansForMember(a.ctx(cmd), member)
			} else {
				loans, err = a.lending.ListAllLoansWithOwners(a.ctx(cmd))
			}
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(loans))
			for _, l := range loans {
				rows = append(rows, []string{
					i64(l.LoanID), i64(l.Book.ID), l.Book.Title,
					i64(l.Member.ID), l.Member.Name + " " + l.Member.Surname,
					day(l.LoanDate), day(l.DueDate),
				})
			}
			return a.render(cmd, loans, []string{"LOAN", "BOOK", "TITLE", "MEMBER", "NAME", "LOANED", "DUE"}, rows)
		},
	}
	list.Flags().Int64Var(&member, "member", 0, "only loans of this member")

	del := &cobra.Command{
		Use:   "delete <loan-id>",
		Short: "Delete a loan record (the book stays unavailable)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "loan-id")
			if err != nil {
				return err
			}
			if err := a.lending.DeleteLoan(a.ctx(cmd), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loan %d deleted; run 'librarianctl doctor' to review availability\n", id)
			return nil
		},
	}

	cmd.AddCommand(list, del)
	return cmd
}

func (a *app) reservationsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "reservations", Short: "Inspect and update reservations"}

	var (
		member int64
		status string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List reservations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := lending.ReservationFilter{}
			if member > 0 {
				f.MemberID = &member
			}
			if status != "" {
				st, err := lending.ParseReservationStatus(status)
				if err != nil {
					return err
				}
				f.Status = &st
			}
			res, err := a.lending.ListReservations(a.ctx(cmd), f, lending.Page{})
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(res.Items))
			for _, r := range res.Items {
				rows = append(rows, []string{
					i64(r.ReservationID), r.Book.Title, r.Member.Name + " " + r.Member.Surname,
					day(r.ReservedAt), string(r.Status),
				})
			}
			return a.render(cmd, res, []string{"ID", "TITLE", "MEMBER", "RESERVED", "STATUS"}, rows)
		},
	}
	list.Flags().Int64Var(&member, "member", 0, "only reservations of this member")
	list.Flags().StringVar(&status, "status", "", "Pending, Completed or Cancelled")

	set := &cobra.Command{
		Use:   "set-status <reservation-id> <status>",
		Short: "Change a reservation's status (loans are not touched)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "reservation-id")
			if err != nil {
				return err
			}
			st, err := lending.ParseReservationStatus(args[1])
			if err != nil {
				return err
			}
			r, err := a.lending.EditReservationStatus(a.ctx(cmd), id, st)
			if err != nil {
				return err
			}
			return a.render(cmd, r, []string{"ID", "TITLE", "STATUS"},
				[][]string{{i64(r.ReservationID), r.Book.Title, string(r.Status)}})
		},
	}

	cmd.AddCommand(list, set)
	return cmd
}

func (a *app) doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report books whose availability disagrees with their loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vs, err := a.lending.CheckInvariant(a.ctx(cmd))
			if err != nil {
				return err
			}
			if len(vs) == 0 && a.output == "text" {
				fmt.Fprintln(cmd.OutOrStdout(), "ok: every book's availability matches its loans")
				return nil
			}
			rows := make([][]string, 0, len(vs))
			for _, v := range vs {
				rows = append(rows, []string{i64(v.BookID), yesNo(v.Available), fmt.Sprint(v.LiveLoans)})
			}
			if err := a.render(cmd, vs, []string{"BOOK", "AVAILABLE", "LIVE LOANS"}, rows); err != nil {
				return err
			}
			if len(vs) > 0 {
				return fmt.Errorf("%d book(s) out of sync", len(vs))
			}
			return nil
		},
	}
}
