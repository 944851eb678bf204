package cli

import (
	"context"
	"fmt"
)

func (a *App) cmdBilling(args []string) error {
	if len(args) == 0 {
		args = []string{"subscription"}
	}
	ctx := context.Background()

	switch args[0] {
	case "plans":
		plans, err := a.api.ListPlans(ctx)
		if err != nil {
			return a.friendlyError(err)
		}
		headingColor.Fprintf(a.out, "%-12s  %-16s  %10s  %10s  %10s\n",
			"ID", "NAME", "PRICE/MO", "DOCS", "PACKAGES")
		for _, p := range plans {
			fmt.Fprintf(a.out, "%-12s  %-16s  %10.2f  %10d  %10d\n",
				p.ID, p.Name, p.PriceMonthly, p.DocumentsLimit, p.PackagesLimit)
		}
		return nil

	case "subscription":
		sub, err := a.api.GetSubscription(ctx)
		if err != nil {
			return a.friendlyError(err)
		}
		fmt.Fprintf(a.out, "Plan:   %s (%s)\n", sub.PlanName, sub.Status)
		if sub.CurrentPeriodEnd != "" {
			fmt.Fprintf(a.out, "Renews: %s\n", sub.CurrentPeriodEnd)
		}
		return nil

	case "invoices":
		invoices, err := a.api.ListInvoices(ctx)
		if err != nil {
			return a.friendlyError(err)
		}
		if len(invoices) == 0 {
			fmt.Fprintln(a.out, "No invoices yet.")
			return nil
		}
		headingColor.Fprintf(a.out, "%-20s  %10s  %-8s  %-10s  %s\n",
			"ID", "AMOUNT", "CURRENCY", "STATUS", "ISSUED")
		for _, inv := range invoices {
			fmt.Fprintf(a.out, "%-20s  %10.2f  %-8s  %-10s  %s\n",
				inv.ID, inv.Amount, inv.Currency, inv.Status, inv.IssuedAt)
		}
		return nil

	case "upgrade":
		if len(args) < 2 {
			return fmt.Errorf("usage: assistant billing upgrade <plan-id>")
		}
		checkoutURL, err := a.api.CreateCheckout(ctx, args[1])
		if err != nil {
			return a.friendlyError(err)
		}
		fmt.Fprintln(a.out, "Open this URL to complete payment:")
		okColor.Fprintln(a.out, checkoutURL)
		return nil

	default:
		return fmt.Errorf("unknown billing subcommand %q", args[0])
	}
}
