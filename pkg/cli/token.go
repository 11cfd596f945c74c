package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/Gabiro3/blimp2/pkg/auth"
	"github.com/Gabiro3/blimp2/pkg/common"
	"github.com/Gabiro3/blimp2/pkg/types"
)

var (
	tokenEmail string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage user tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <user_id>",
	Short: "Issue a user token signed with the gateway's auth secret",
	Long: `Issue a user token signed with gateway.authSecret from the same
configuration the gateway loads (embedded defaults plus CONFIG_PATH).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configManager, err := common.NewConfigManager[types.AppConfig]()
		if err != nil {
			return err
		}
		secret := configManager.GetConfig().Gateway.AuthSecret
		if secret == "" {
			return errors.New("gateway.authSecret is not set")
		}

		token, err := auth.NewJWTValidator(secret, "").Issue(args[0], tokenEmail, tokenTTL)
		if err != nil {
			return err
		}

		if PrintJSON(map[string]any{"user_id": args[0], "token": token, "expires_in": int(tokenTTL.Seconds())}) {
			return nil
		}
		PrintSuccessf("Issued token for %s", CodeStyle.Render(args[0]))
		PrintKeyValue("Expires", time.Now().Add(tokenTTL).Format(time.RFC1123))
		PrintKeyValue("Token", token)
		PrintHint("export BLIMP_TOKEN=<token>")
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().StringVar(&tokenEmail, "email", "", "Email to embed in the token")
	tokenIssueCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "Token lifetime")

	tokenCmd.AddCommand(tokenIssueCmd)
	rootCmd.AddCommand(tokenCmd)
}
