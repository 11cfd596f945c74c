package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type StatusInfo struct {
	Gateway   string   `json:"gateway"`
	Healthy   bool     `json:"healthy"`
	Error     string   `json:"error,omitempty"`
	LatencyMS int64    `json:"latency_ms"`
	Apps      []string `json:"apps,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway health and your connected apps",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := getClient()
	status := StatusInfo{Gateway: gatewayHTTPAddr}

	start := time.Now()
	if err := client.Health(cmd.Context()); err != nil {
		status.Error = FormatError(err)
	} else {
		status.Healthy = true
	}
	status.LatencyMS = time.Since(start).Milliseconds()

	if status.Healthy && authToken != "" {
		if apps, err := client.Connections(cmd.Context()); err == nil {
			status.Apps = apps
		}
	}

	if PrintJSON(status) {
		return nil
	}

	fmt.Println()
	PrintKeyValue("Gateway", status.Gateway)
	if status.Healthy {
		PrintKeyValueStyled("Status", "healthy", SuccessStyle)
		PrintKeyValue("Latency", fmt.Sprintf("%dms", status.LatencyMS))
	} else {
		PrintKeyValueStyled("Status", "unreachable", ErrorStyle)
		PrintKeyValue("Error", status.Error)
	}
	if len(status.Apps) > 0 {
		PrintKeyValue("Connected", fmt.Sprintf("%d of 9", len(status.Apps)))
		for _, app := range status.Apps {
			PrintBullet(app)
		}
	}
	fmt.Println()

	if !status.Healthy {
		PrintHint("Run 'blimp serve' to start a local gateway")
	} else if authToken == "" {
		PrintHint("Set BLIMP_TOKEN to see your connected apps")
	}
	return nil
}
