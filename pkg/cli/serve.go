package cli

import (
	"github.com/spf13/cobra"

	"github.com/Gabiro3/blimp2/pkg/gateway"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway in the foreground",
	Long: `Run the gateway in this process until interrupted.

Configuration comes from the embedded defaults, overridden by the file
named in CONFIG_PATH. The default mode is local: in-memory storage, no
Redis or Postgres.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := gateway.NewGateway()
		if err != nil {
			return err
		}
		return gw.Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
