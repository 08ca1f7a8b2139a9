package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	httpcmd "github.com/Alijeyrad/consultorio_backend/cmd/http"
	importcmd "github.com/Alijeyrad/consultorio_backend/cmd/importer"
	systemcmd "github.com/Alijeyrad/consultorio_backend/cmd/system"
)

var (
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "consultorio",
	Short: "Consultorio keeps patient records for a small medical practice.",
	Long: `Consultorio keeps patient records, consultations, prescriptions and letters
for a medical practice that works across one or more clinics. Writes are
journaled locally first and delivered to the document store in the background,
so the practice keeps working while the store is unreachable.`,
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
	rootCmd.AddCommand(importcmd.NewImportCommand())
}
