package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Sternrassler/storefront-client/pkg/cart"
	"github.com/Sternrassler/storefront-client/pkg/client"
	"github.com/Sternrassler/storefront-client/pkg/filter"
	"github.com/Sternrassler/storefront-client/pkg/metrics"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// runFunc is a command body that gets an opened app.
type runFunc func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error

func newRootCmd() *cobra.Command {
	v := newViper()
	var configFile string

	root := &cobra.Command{
		Use:   "storefront",
		Short: "Browse the storefront catalog and manage the cart",
		Long: `storefront talks to the storefront REST API. It lists categories,
filters products locally with the category's filter definitions, and
reads or changes the cart of the session given by api.session_cookie.

Configuration is read from ./storefront.yaml (optional), STOREFRONT_*
environment variables and flags, flags winning.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./storefront.yaml)")
	flags.String("api-url", "", "API base URL")
	flags.String("store", "", "session store backend: memory, sqlite or redis")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("metrics-addr", "", "metrics listen address for watch")

	// withApp resolves configuration at run time so flags are parsed.
	withApp := func(run runFunc) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(v, cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, s)
			if err != nil {
				return err
			}
			defer a.close()
			return run(ctx, a, cmd, args)
		}
	}

	root.AddCommand(
		newVersionCmd(),
		newCategoriesCmd(withApp),
		newFiltersCmd(withApp),
		newProductsCmd(withApp),
		newProductCmd(withApp),
		newCartCmd(withApp),
		newWhoamiCmd(withApp),
		newOrdersCmd(withApp),
		newLogoutCmd(withApp),
		newWarmCmd(withApp),
		newWatchCmd(withApp),
	)
	return root
}

type appWrapper func(runFunc) func(*cobra.Command, []string) error

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "storefront v%s\n", version)
		},
	}
}

func newCategoriesCmd(withApp appWrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List product categories",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			categories, err := a.sf.Categories(ctx)
			if err != nil {
				return userError(err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSLUG")
			for _, c := range categories {
				name := c.Name
				if c.Demo {
					name += " (demo)"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, name, c.Slug)
			}
			return w.Flush()
		}),
	}
}

func newFiltersCmd(withApp appWrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "filters <category-id>",
		Short: "Show the normalized filters of a category",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			id, err := parseID("category id", args[0])
			if err != nil {
				return err
			}

			result, err := a.sf.GetFilterSpecs(ctx, id)
			if err != nil {
				return userError(err)
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tKIND\tVALUE\tDEFAULT")
			for _, spec := range result.Specs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", spec.ID, spec.Name, spec.Kind, spec.RawValue, spec.DefaultValue)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			for _, diag := range result.Diagnostics {
				fmt.Fprintf(out, "skipped: %s\n", diag)
			}
			return nil
		}),
	}
}

func newProductsCmd(withApp appWrapper) *cobra.Command {
	var selections []string

	cmd := &cobra.Command{
		Use:   "products <category-id>",
		Short: "List the products of a category, filtered locally",
		Long: `List the products of a category. Each --filter ID=VALUE selects a
filter value; VALUE is interpreted by the filter kind:

  checkbox  true or false
  options   comma separated options, e.g. 3=red,blue
  range     LO..HI, either side may be empty, e.g. 1=100..999
  text      free text`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			id, err := parseID("category id", args[0])
			if err != nil {
				return err
			}

			view, err := a.sf.OpenCategory(ctx, id)
			if err != nil {
				return userError(err)
			}

			for _, entry := range selections {
				specID, value, err := parseSelection(view.Specs(), entry)
				if err != nil {
					return err
				}
				view.Set(specID, value)
			}

			out := cmd.OutOrStdout()
			for _, label := range view.Labels() {
				fmt.Fprintf(out, "filter %s: %s\n", label.Name, label.Text)
			}

			visible := view.Visible()
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTOCK")
			for _, p := range visible {
				fmt.Fprintf(w, "%d\t%s\t%.2f\t%d\n", p.ID, p.Name, p.Price, p.Count)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d of %d products\n", len(visible), len(view.Products()))
			return nil
		}),
	}

	cmd.Flags().StringArrayVarP(&selections, "filter", "f", nil, "filter selection ID=VALUE (repeatable)")
	return cmd
}

func newProductCmd(withApp appWrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "product <product-id>",
		Short: "Show one product with its tags and specs",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			id, err := parseID("product id", args[0])
			if err != nil {
				return err
			}

			p, err := a.sf.Product(ctx, id)
			if err != nil {
				return userError(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d %s\n", p.ID, p.Name)
			fmt.Fprintf(out, "price %.2f, %d in stock\n", p.Price, p.Count)
			if p.Description != "" {
				fmt.Fprintln(out, p.Description)
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, tag := range p.Tags {
				fmt.Fprintf(w, "tag	%s	%s\n", tag.Name, tag.Value)
			}
			for _, spec := range p.Specs {
				fmt.Fprintf(w, "spec	%s	%s\n", spec.Name, spec.Value)
			}
			return w.Flush()
		}),
	}
}

func newCartCmd(withApp appWrapper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			return printCart(ctx, a, cmd.OutOrStdout())
		}),
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <product-id> [quantity]",
			Short: "Add a product to the cart",
			Args:  cobra.RangeArgs(1, 2),
			RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
				productID, err := parseID("product id", args[0])
				if err != nil {
					return err
				}
				qty := 1
				if len(args) == 2 {
					if qty, err = strconv.Atoi(args[1]); err != nil {
						return fmt.Errorf("invalid quantity %q", args[1])
					}
				}
				if err := a.sf.Cart().Add(ctx, productID, qty); err != nil {
					return userError(err)
				}
				return printCart(ctx, a, cmd.OutOrStdout())
			}),
		},
		&cobra.Command{
			Use:   "update <line-id> <quantity>",
			Short: "Change the quantity of a cart line; 0 removes it",
			Args:  cobra.ExactArgs(2),
			RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
				lineID, err := parseID("line id", args[0])
				if err != nil {
					return err
				}
				qty, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid quantity %q", args[1])
				}
				if err := a.sf.Cart().UpdateQuantity(ctx, lineID, qty); err != nil {
					return userError(err)
				}
				return printCart(ctx, a, cmd.OutOrStdout())
			}),
		},
		&cobra.Command{
			Use:   "remove <line-id>",
			Short: "Remove a cart line",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
				lineID, err := parseID("line id", args[0])
				if err != nil {
					return err
				}
				if err := a.sf.Cart().Remove(ctx, lineID); err != nil {
					return userError(err)
				}
				return printCart(ctx, a, cmd.OutOrStdout())
			}),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every cart line",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
				if err := a.sf.Cart().Clear(ctx); err != nil {
					return userError(err)
				}
				return printCart(ctx, a, cmd.OutOrStdout())
			}),
		},
	)
	return cmd
}

func printCart(ctx context.Context, a *app, out io.Writer) error {
	snap, err := a.sf.LoadCart(ctx)
	if err != nil {
		return userError(err)
	}

	c := snap.Value
	if len(c.Lines) == 0 {
		fmt.Fprintln(out, "cart is empty")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LINE\tPRODUCT\tQTY\tPRICE\tSUBTOTAL")
	for _, l := range c.Lines {
		name := strconv.Itoa(l.ProductID)
		if l.Product != nil && l.Product.Name != "" {
			name = l.Product.Name
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%.2f\t%.2f\n", l.ID, name, l.Quantity, l.Price, l.Subtotal())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d items, total %.2f\n", c.ItemCount(), c.Total())
	return nil
}

func newWhoamiCmd(withApp appWrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			profile, err := a.sf.Auth().Profile(ctx)
			if err != nil {
				return userError(err)
			}

			out := cmd.OutOrStdout()
			if profile == nil {
				fmt.Fprintf(out, "anonymous (log in at %s)\n", a.sf.LoginURL())
				return nil
			}
			fmt.Fprintf(out, "%s <%s> role=%s\n", profile.Username, profile.Email, profile.Role)
			return nil
		}),
	}
}

func newOrdersCmd(withApp appWrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List the signed-in user's orders",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			orders, err := a.sf.Orders(ctx)
			if err != nil {
				if client.ClassOf(err) == client.ClassUnauthorized {
					return fmt.Errorf("log in at %s: %w", a.sf.LoginURL(), userError(err))
				}
				return userError(err)
			}

			out := cmd.OutOrStdout()
			if len(orders) == 0 {
				fmt.Fprintln(out, "no orders")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID	DATE	STATUS	TOTAL")
			for _, o := range orders {
				fmt.Fprintf(w, "%d	%s	%s	%.2f\n", o.ID, o.Date, o.Status, o.Total)
			}
			return w.Flush()
		}),
	}
}

func newLogoutCmd(withApp appWrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and clear the cached identity and cart",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.sf.Logout(ctx); err != nil {
				return userError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		}),
	}
}

func newWarmCmd(withApp appWrapper) *cobra.Command {
	return &cobra.Command{
		Use:   "warm <category-id>...",
		Short: "Prefetch several categories in parallel",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			ids := make([]int, 0, len(args))
			for _, arg := range args {
				id, err := parseID("category id", arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			start := time.Now()
			err := a.sf.Warm(ctx, ids)
			fmt.Fprintf(cmd.OutOrStdout(), "warmed %d categories in %s\n", len(ids), time.Since(start).Round(time.Millisecond))
			if err != nil {
				return userError(err)
			}
			return nil
		}),
	}
}

func newWatchCmd(withApp appWrapper) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the session caches refreshed and serve metrics",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			a.sf.Start()

			errCh := make(chan error, 1)
			go func() { errCh <- metrics.Serve(ctx, a.settings.MetricsAddr) }()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			out := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					return <-errCh
				case err := <-errCh:
					return err
				case <-ticker.C:
					authSnap := a.sf.GetAuth()
					cartSnap := a.sf.GetCart()
					user := "anonymous"
					if authSnap.Value != nil {
						user = authSnap.Value.Username
					}
					fmt.Fprintf(out, "%s auth=%s (%s) cart=%s (%d items)\n",
						time.Now().Format(time.TimeOnly), authSnap.State, user,
						cartSnap.State, cartSnap.Value.ItemCount())
				}
			}
		}),
	}

	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "status print interval")
	return cmd
}

func parseID(what, s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return id, nil
}

// parseSelection turns "ID=VALUE" into a filter value typed by the
// spec's kind.
func parseSelection(specs []filter.Spec, entry string) (int, filter.Value, error) {
	rawID, raw, ok := strings.Cut(entry, "=")
	if !ok {
		return 0, nil, fmt.Errorf("filter %q: want ID=VALUE", entry)
	}
	id, err := parseID("filter id", rawID)
	if err != nil {
		return 0, nil, err
	}

	var spec *filter.Spec
	for i := range specs {
		if specs[i].ID == id {
			spec = &specs[i]
			break
		}
	}
	if spec == nil {
		return 0, nil, fmt.Errorf("unknown filter %d", id)
	}

	switch spec.Kind {
	case filter.KindCheckbox:
		on, err := strconv.ParseBool(raw)
		if err != nil {
			return 0, nil, fmt.Errorf("filter %q: want true or false", spec.Name)
		}
		return id, filter.Bool(on), nil
	case filter.KindOptions:
		var set filter.TextSet
		for _, opt := range strings.Split(raw, ",") {
			if opt = strings.TrimSpace(opt); opt != "" {
				set = append(set, opt)
			}
		}
		return id, set, nil
	case filter.KindRange:
		lo, hi, ok := strings.Cut(raw, "..")
		if !ok {
			return 0, nil, fmt.Errorf("filter %q: want LO..HI", spec.Name)
		}
		return id, filter.RangeBound{Min: lo, Max: hi}, nil
	default:
		return id, filter.FreeText(raw), nil
	}
}

// userError prefixes API failures with the message shown to users.
func userError(err error) error {
	var mutErr *cart.MutationError
	if errors.As(err, &mutErr) {
		return fmt.Errorf("%s: %w", mutErr.UserMessage(), err)
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", apiErr.UserMessage(), err)
	}
	return err
}
