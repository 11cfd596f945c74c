package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apiv1 "github.com/Gabiro3/blimp2/pkg/api/v1"
	"github.com/Gabiro3/blimp2/pkg/types"
)

var (
	connToken        string
	connRefreshToken string
	connAPIKey       string
	connExpiresIn    int
	connScope        string
)

var connectionCmd = &cobra.Command{
	Use:     "connection",
	Aliases: []string{"conn"},
	Short:   "Manage app connections",
}

var connectionAddCmd = &cobra.Command{
	Use:   "add <app>",
	Short: "Store a credential for an app",
	Long: `Store a credential for an app and mark it connected.

Supported apps:
  gmail, google_calendar, google_drive, google_docs  - OAuth access token (--token, --refresh-token)
  slack, discord, notion, github                     - bot or OAuth token (--token)
  trello                                             - user token (--token)`,
	Example: `  blimp connection add gmail --token ya29.xxx --refresh-token 1//xxx --expires-in 3599
  blimp connection add notion --token ntn_xxx
  blimp connection add github --token ghp_xxx`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := types.NormalizeAppName(args[0])
		if connToken == "" && connAPIKey == "" {
			return fmt.Errorf("%s requires --token or --api-key", app)
		}
		if app == types.AppGitHub && !strings.HasPrefix(connToken, "ghp_") && !strings.HasPrefix(connToken, "github_pat_") && !strings.HasPrefix(connToken, "gho_") {
			PrintWarning("Token doesn't look like a GitHub token (expected ghp_*, gho_* or github_pat_*)")
		}
		if app == types.AppNotion && !strings.HasPrefix(connToken, "secret_") && !strings.HasPrefix(connToken, "ntn_") {
			PrintWarning("Token doesn't look like a Notion token (expected secret_* or ntn_*)")
		}

		err := getClient().Connect(cmd.Context(), app, apiv1.StoreCredentialRequest{
			AccessToken:  connToken,
			RefreshToken: connRefreshToken,
			APIKey:       connAPIKey,
			ExpiresIn:    connExpiresIn,
			Scope:        connScope,
		})
		if err != nil {
			return err
		}
		if !PrintJSON(map[string]any{"app": app, "connected": true}) {
			PrintSuccessf("Connected %s", CodeStyle.Render(app))
		}
		return nil
	},
}

var connectionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List connected apps",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		apps, err := getClient().Connections(cmd.Context())
		if err != nil {
			return err
		}
		if PrintJSON(apps) {
			return nil
		}

		connected := make(map[string]bool, len(apps))
		for _, a := range apps {
			connected[a] = true
		}
		PrintHeader("Apps")
		for _, app := range types.KnownApps {
			if connected[app] {
				PrintSuccess(app)
			} else {
				PrintSkipped(app)
			}
		}
		fmt.Println()
		return nil
	},
}

var connectionRemoveCmd = &cobra.Command{
	Use:     "remove <app>",
	Aliases: []string{"rm"},
	Short:   "Disconnect an app",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := types.NormalizeAppName(args[0])
		if err := getClient().Disconnect(cmd.Context(), app); err != nil {
			return err
		}
		if !PrintJSON(map[string]any{"app": app, "connected": false}) {
			PrintSuccessf("Disconnected %s", CodeStyle.Render(app))
		}
		return nil
	},
}

func init() {
	connectionAddCmd.Flags().StringVar(&connToken, "token", "", "Access token")
	connectionAddCmd.Flags().StringVar(&connRefreshToken, "refresh-token", "", "OAuth refresh token")
	connectionAddCmd.Flags().StringVar(&connAPIKey, "api-key", "", "API key")
	connectionAddCmd.Flags().IntVar(&connExpiresIn, "expires-in", 0, "Seconds until the access token expires")
	connectionAddCmd.Flags().StringVar(&connScope, "scope", "", "Granted OAuth scopes")

	connectionCmd.AddCommand(connectionAddCmd)
	connectionCmd.AddCommand(connectionListCmd)
	connectionCmd.AddCommand(connectionRemoveCmd)
}
