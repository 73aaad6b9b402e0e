package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	httpcmd "github.com/Alijeyrad/freelancehub_ledger/cmd/http"
	systemcmd "github.com/Alijeyrad/freelancehub_ledger/cmd/system"
)

var (
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Settlement core of the FreelanceHub marketplace.",
	Long: `Wallets, transactions, tiered commission and milestone payments for the
FreelanceHub marketplace. Serves the ledger HTTP API and consumes project and
task status signals to settle lump-sum payments.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global config flag, available for all commands.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	// Attach top-level command trees.
	rootCmd.AddCommand(systemcmd.NewSystemCommand())
	rootCmd.AddCommand(httpcmd.NewHTTPCommand())
}
