package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Build information (injected at compile time via ldflags)
var Version = "dev"

const defaultGatewayHTTP = "http://localhost:8080"

var (
	gatewayHTTPAddr string
	authToken       string
	actAsUser       string
	jsonOutput      bool
)

// Custom help template with styled output
var helpTemplate = `{{with .Long}}{{. | trim}}

{{end}}{{if .HasAvailableSubCommands}}` + `{{.CommandPath}}` + ` ` + `<command>` + `

{{end}}{{if .HasAvailableSubCommands}}Commands:
{{range .Commands}}{{if .IsAvailableCommand}}  {{rpad .Name .NamePadding }}  {{.Short}}
{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}
Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}
`

var rootCmd = &cobra.Command{
	Use:   "blimp",
	Short: "Ask questions across your connected apps",
	Long: lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true).Render("blimp") + ` - Ask questions across your connected apps

Plan and run natural-language requests against Gmail, Google Calendar,
Drive, Docs, Slack, Discord, Notion, Trello and GitHub, and schedule
multi-app workflows.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		SetJSONOutput(jsonOutput)
	},
}

func init() {
	rootCmd.SetHelpTemplate(helpTemplate)
	rootCmd.SetVersionTemplate(fmt.Sprintf("  %s version %s\n", BrandStyle.Render("blimp"), Version))

	rootCmd.PersistentFlags().StringVar(&gatewayHTTPAddr, "gateway", getEnv("BLIMP_GATEWAY", defaultGatewayHTTP), "Gateway HTTP address")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", getEnv("BLIMP_TOKEN", ""), "Authentication token")
	rootCmd.PersistentFlags().StringVar(&actAsUser, "user", getEnv("BLIMP_USER", ""), "User to act for (admin token only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(connectionCmd)
	rootCmd.AddCommand(workflowCmd)
}

// Execute runs the CLI
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		PrintFormattedError("Command failed", err)
	}
	return err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getClient() *Client {
	return NewClient(gatewayHTTPAddr, authToken, actAsUser)
}
