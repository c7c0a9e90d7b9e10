package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bibliogoya-backend/internal/catalog"
	"bibliogoya-backend/internal/lending"
)

func (a *app) booksCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "books", Short: "Browse and load the catalog"}

	var filter string
	list := &cobra.Command{
		Use:   "list",
		Short: "List books by availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			av, err := lending.ParseAvailability(filter)
			if err != nil {
				return err
			}
			books, err := a.lending.ListBooks(a.ctx(cmd), av, lending.Page{})
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(books))
			for _, b := range books {
				rows = append(rows, []string{i64(b.ID), b.Title, b.Author, b.Genre, yesNo(b.Available)})
			}
			return a.render(cmd, books, []string{"ID", "TITLE", "AUTHOR", "GENRE", "AVAILABLE"}, rows)
		},
	}
	list.Flags().StringVar(&filter, "filter", "all", "all, available or unavailable")

	var importEnc string
	imp := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Bulk add books from a title,author,genre,published_on CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			res, err := a.catalog.ImportCSV(a.ctx(cmd), raw, importEnc)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(res.Results))
			for _, r := range res.Results {
				id, msg := "-", "ok"
				if r.BookID != nil {
					id = i64(*r.BookID)
				}
				if r.Error != nil {
					msg = *r.Error
				}
				rows = append(rows, []string{fmt.Sprint(r.Row), id, msg})
			}
			if err := a.render(cmd, res, []string{"ROW", "BOOK", "RESULT"}, rows); err != nil {
				return err
			}
			if a.output == "text" {
				fmt.Fprintf(cmd.OutOrStdout(), "%d imported, %d rejected (%s)\n", res.OkCount, res.NgCount, res.Encoding)
			}
			return nil
		},
	}
	imp.Flags().StringVar(&importEnc, "encoding", "", "force input encoding (utf-8, utf-16, windows-1252, shift_jis)")

	var exportEnc string
	exp := &cobra.Command{
		Use:   "export",
		Short: "Write the catalog as CSV to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.catalog.ExportCSV(a.ctx(cmd), cmd.OutOrStdout(), exportEnc)
		},
	}
	exp.Flags().StringVar(&exportEnc, "encoding", catalog.EncUTF8, "output encoding")

	cmd.AddCommand(list, imp, exp)
	return cmd
}
