package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/maraudr/console/internal/assocapi"
	"github.com/maraudr/console/internal/config"
	"github.com/maraudr/console/internal/export"
	"github.com/maraudr/console/internal/model"
	"github.com/maraudr/console/internal/stockapi"
)

// itemsFlags select the backend credentials and association for the items
// commands. Without a token, the email is signed in with MARAUDR_PASSWORD.
type itemsFlags struct {
	token       string
	email       string
	association string
}

func newItemsCmd(cfg *config.Config) *cobra.Command {
	var f itemsFlags

	cmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect an association's stock from the terminal",
	}
	cmd.PersistentFlags().StringVar(&f.token, "token", os.Getenv(config.EnvPrefix+"_TOKEN"), "backend bearer token")
	cmd.PersistentFlags().StringVar(&f.email, "email", "", "sign in with this email instead of a token")
	cmd.PersistentFlags().StringVar(&f.association, "association", "", "association id (default: first membership)")

	cmd.AddCommand(newItemsListCmd(cfg, &f), newItemsExportCmd(cfg, &f))
	return cmd
}

// stockClient signs in when needed and resolves the association.
func stockClient(cmd *cobra.Command, cfg *config.Config, f *itemsFlags) (*stockapi.Client, model.Association, error) {
	ctx := cmd.Context()

	directory, err := assocapi.New(assocapi.Options{BaseURL: cfg.Association.BaseURL, Timeout: cfg.Association.Timeout})
	if err != nil {
		return nil, model.Association{}, err
	}

	token := f.token
	if token == "" {
		if f.email == "" {
			return nil, model.Association{}, errors.New("--token or --email required")
		}
		password := os.Getenv(config.EnvPrefix + "_PASSWORD")
		if password == "" {
			return nil, model.Association{}, errors.New(config.EnvPrefix + "_PASSWORD must be set with --email")
		}
		if token, err = directory.Login(ctx, f.email, password); err != nil {
			return nil, model.Association{}, err
		}
	}

	memberships, err := directory.Memberships(ctx, token)
	if err != nil {
		return nil, model.Association{}, err
	}
	association, err := pickAssociation(memberships, f.association)
	if err != nil {
		return nil, model.Association{}, err
	}

	routes, err := stockapi.NewRoutes(cfg.Stock.Origin, cfg.StockProfile())
	if err != nil {
		return nil, model.Association{}, err
	}
	client, err := stockapi.New(stockapi.Options{
		Routes:        routes,
		Tokens:        stockapi.StaticToken(token),
		QuantityRoute: cfg.QuantityRoute(),
		Timeout:       cfg.Stock.Timeout,
	})
	return client, association, err
}

func pickAssociation(memberships []model.Association, id string) (model.Association, error) {
	if len(memberships) == 0 {
		return model.Association{}, errors.New("the account is not a member of any association")
	}
	if id == "" {
		return memberships[0], nil
	}
	for _, a := range memberships {
		if a.ID == id {
			return a, nil
		}
	}
	return model.Association{}, fmt.Errorf("not a member of association %q", id)
}

func newItemsListCmd(cfg *config.Config, f *itemsFlags) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the items of the association's stock",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, association, err := stockClient(cmd, cfg, f)
			if err != nil {
				return err
			}

			var filter stockapi.ItemFilter
			if category != "" {
				c, ok := model.ParseCategory(category)
				if !ok {
					return fmt.Errorf("unknown category %q", category)
				}
				filter.Category = &c
			}

			items, err := client.ListItems(cmd.Context(), association.ID, filter)
			if err != nil {
				return err
			}
			return printItems(cmd, association, items)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list this category (name or number)")
	return cmd
}

func printItems(cmd *cobra.Command, association model.Association, items []model.StockItem) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d items\n\n", association.Name, len(items))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCATEGORY\tQUANTITY\tBARCODE\tENTERED")
	total := 0
	for _, it := range items {
		entered := "-"
		if !it.EntryDate.IsZero() {
			entered = humanize.Time(it.EntryDate)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.Name, it.Category, humanize.Comma(int64(it.Quantity)), it.BarCode, entered)
		total += it.Quantity
	}
	fmt.Fprintf(tw, "\t\t%s\t\t\n", humanize.Comma(int64(total)))
	return tw.Flush()
}

func newItemsExportCmd(cfg *config.Config, f *itemsFlags) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the association's stock as a spreadsheet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, association, err := stockClient(cmd, cfg, f)
			if err != nil {
				return err
			}
			items, err := client.ListItems(cmd.Context(), association.ID, stockapi.ItemFilter{})
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := export.WriteItems(&buf, items); err != nil {
				return err
			}
			if out == "" {
				out = export.Filename(association.Name, time.Now())
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d items to %s (%s)\n", len(items), out, humanize.Bytes(uint64(buf.Len())))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default <association>-<date>.xlsx)")
	return cmd
}
