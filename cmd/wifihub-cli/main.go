package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wifihub/internal/client"
	"wifihub/internal/logger"
	"wifihub/internal/models"
)

var Version = "dev"

type globals struct {
	server   string
	email    string
	password string
}

func main() {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:     "wifihub-cli",
		Short:   "Buy and track WifiHub hotspot vouchers",
		Version: Version,
	}
	rootCmd.PersistentFlags().StringVar(&g.server, "server", envOr("WIFIHUB_SERVER", "http://localhost:8084"), "WifiHub API base URL")
	rootCmd.PersistentFlags().StringVar(&g.email, "email", os.Getenv("WIFIHUB_EMAIL"), "account email")
	rootCmd.PersistentFlags().StringVar(&g.password, "password", os.Getenv("WIFIHUB_PASSWORD"), "account password")

	rootCmd.AddCommand(packagesCmd(g), vouchersCmd(g), checkoutCmd(g), watchCmd(g))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// login returns a client holding a live session.
func (g *globals) login(ctx context.Context) (*client.APIClient, error) {
	if g.email == "" || g.password == "" {
		return nil, errors.New("--email and --password (or WIFIHUB_EMAIL / WIFIHUB_PASSWORD) are required")
	}
	c := client.NewAPIClient(g.server, client.NewSession())
	if _, err := c.Login(ctx, g.email, g.password); err != nil {
		return nil, err
	}
	return c, nil
}

func packagesCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "packages",
		Short: "List the packages on sale",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewAPIClient(g.server, client.NewSession())
			pkgs, err := c.Packages(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPRICE\tDATA\tDURATION\tSPEED")
			for _, p := range pkgs {
				fmt.Fprintf(w, "%s\t%d\t%s\t%dh\t%s\n", p.Name, p.Price, p.DataLimit, p.DurationHours, p.Speed)
			}
			return w.Flush()
		},
	}
}

func vouchersCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "vouchers",
		Short: "List your vouchers",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.login(cmd.Context())
			if err != nil {
				return err
			}
			vs, err := c.Vouchers(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ORDER\tSTATUS\tPACKAGE\tUSERNAME\tPASSWORD\tACTIVE\tEXPIRES")
			for _, v := range vs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%t\t%s\n", v.OrderID, v.OrderStatus, v.PackageName,
					v.Username, v.Password, v.IsActive, v.ExpiresAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func checkoutCmd(g *globals) *cobra.Command {
	var (
		req   models.CheckoutRequest
		price string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "checkout [package]",
		Short: "Order a package and wait for the payment result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.login(cmd.Context())
			if err != nil {
				return err
			}
			user := c.Session.User()
			req.PackageName = args[0]
			req.PackagePrice = models.FlexString(price)
			if req.CustomerName == "" {
				req.CustomerName = user.Name
			}
			if req.CustomerEmail == "" {
				req.CustomerEmail = user.Email
			}
			if req.CustomerPhone == "" {
				req.CustomerPhone = user.Phone
			}

			res, msg, err := c.Checkout(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			fmt.Fprintf(cmd.OutOrStdout(), "order=%d status=%s snap_token=%s\n", res.OrderID, res.OrderStatus, res.SnapToken)
			if !watch {
				return nil
			}
			return poll(cmd, c, res.OrderID)
		},
	}
	cmd.Flags().StringVar(&price, "price", "", "package price as shown in the catalog")
	cmd.Flags().StringVar(&req.PaymentMethod, "method", "qris", "payment method")
	cmd.Flags().StringVar(&req.PaymentAccount, "account", "", "payment account, if the method needs one")
	cmd.Flags().StringVar(&req.CustomerName, "name", "", "customer name (defaults to the account name)")
	cmd.Flags().StringVar(&req.CustomerPhone, "phone", "", "customer phone (defaults to the account phone)")
	cmd.Flags().BoolVar(&watch, "watch", true, "poll until the payment settles")
	return cmd
}

func watchCmd(g *globals) *cobra.Command {
	var orderID int64
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll your vouchers until a payment settles",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.login(cmd.Context())
			if err != nil {
				return err
			}
			return poll(cmd, c, orderID)
		},
	}
	cmd.Flags().Int64Var(&orderID, "order", 0, "order to watch (default: any)")
	return cmd
}

func poll(cmd *cobra.Command, c *client.APIClient, orderID int64) error {
	log := logger.NewWithWriter(cmd.ErrOrStderr())
	p := client.NewPoller(c, c.Session, orderID, log)
	fmt.Fprintln(cmd.OutOrStdout(), "Menunggu status pembayaran...")
	outcome := p.Run(cmd.Context())
	if msg := outcome.Message(); msg != "" {
		fmt.Fprintln(cmd.OutOrStdout(), msg)
	}
	if outcome == client.OutcomeFailed {
		return errors.New("payment failed")
	}
	return nil
}
