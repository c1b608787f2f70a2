package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/syy-ex/hair-makeover/internal/app"
	"github.com/syy-ex/hair-makeover/internal/models"
	"github.com/syy-ex/hair-makeover/internal/services"
)

func init() {
	rootCmd.AddCommand(ordersCmd)
	ordersCmd.AddCommand(ordersListCmd)
	ordersCmd.AddCommand(ordersSettleCmd)

	ordersListCmd.Flags().String("status", "", "Only show orders in this status (pending, approved, rejected)")
	ordersSettleCmd.Flags().String("note", "", "Review note stored on the order")
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Inspect and review recharge orders",
}

var ordersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recharge orders, newest first",
	Args:  cobra.NoArgs,
	RunE:  runOrdersList,
}

func runOrdersList(cmd *cobra.Command, args []string) error {
	var filter *models.OrderStatus
	if raw, _ := cmd.Flags().GetString("status"); raw != "" {
		status, ok := models.ParseOrderStatus(raw)
		if !ok {
			return fmt.Errorf("unknown status %q", raw)
		}
		filter = &status
	}

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	orders, err := a.Services.Recharge.ListOrders(ctx, filter)
	if err != nil {
		return err
	}
	emails, err := a.Services.Recharge.OwnerEmails(ctx, orders)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tAMOUNT\tPOINTS\tSTATUS\tCREATED\tNOTE")
	for _, o := range orders {
		email := emails[o.UserID]
		if email == "" {
			email = "unknown"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			o.ID, email, o.Amount, o.Points, o.Status, o.CreatedAt.Format(time.RFC3339), o.Note)
	}
	return w.Flush()
}

var ordersSettleCmd = &cobra.Command{
	Use:   "settle ORDER_ID approve|reject",
	Short: "Approve or reject a recharge order",
	Args:  cobra.ExactArgs(2),
	RunE:  runOrdersSettle,
}

func runOrdersSettle(cmd *cobra.Command, args []string) error {
	decision, err := services.ParseDecision(args[1])
	if err != nil {
		return err
	}
	note, _ := cmd.Flags().GetString("note")

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	order, err := a.Services.Recharge.Settle(ctx, args[0], decision, note)
	if err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("%w: %s", services.ErrOrderNotFound, args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "order %s is %s\n", order.ID, order.Status)
	return nil
}
