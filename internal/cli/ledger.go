package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/syy-ex/hair-makeover/internal/app"
	"github.com/syy-ex/hair-makeover/internal/services"
)

var errLedgerInconsistent = errors.New("points ledger is inconsistent")

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerVerifyCmd)
	ledgerVerifyCmd.Flags().Bool("json", false, "Print the full report as JSON")
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Points ledger maintenance",
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check every balance against its ledger entries",
	Args:  cobra.NoArgs,
	RunE:  runLedgerVerify,
}

func runLedgerVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Services.Ledger.Verify(ctx)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(cmd, report)
	}

	if !report.OK() {
		return errLedgerInconsistent
	}
	return nil
}

func printReport(cmd *cobra.Command, r services.LedgerReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "users: %d, entries: %d\n", r.Users, r.Entries)
	for _, m := range r.Mismatches {
		fmt.Fprintf(out, "MISMATCH user=%s email=%s balance=%d ledger=%d negative=%t\n",
			m.UserID, m.Email, m.Balance, m.LedgerSum, m.Negative)
	}
	for _, id := range r.TamperedHashes {
		fmt.Fprintf(out, "TAMPERED entry=%s\n", id)
	}
	for _, id := range r.OrphanEntries {
		fmt.Fprintf(out, "ORPHAN entry=%s\n", id)
	}
	if r.OK() {
		fmt.Fprintln(out, "ledger OK")
	}
}
