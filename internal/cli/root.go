package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var serverURL string

// NewRootCmd builds the docup command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "docup",
		Short:         "Document intake client",
		Long:          "Uploads documents to a docintake server, triggers parsing and follows the batch status",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultServer := os.Getenv("DOCINTAKE_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:5000"
	}
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultServer,
		"Server base URL")

	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newStatusCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
