package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// StatusMessages maps gateway status codes to human-readable messages
var StatusMessages = map[int]string{
	http.StatusBadRequest:          "Invalid request",
	http.StatusUnauthorized:        "Authentication failed - invalid or missing token",
	http.StatusForbidden:           "Access denied - you don't have permission for this action",
	http.StatusNotFound:            "Resource not found",
	http.StatusInternalServerError: "Internal server error",
	http.StatusBadGateway:          "An upstream service failed",
	http.StatusServiceUnavailable:  "The gateway is missing configuration for this request",
	http.StatusGatewayTimeout:      "An upstream service timed out",
}

// StatusSuggestions provides helpful suggestions for specific status codes
var StatusSuggestions = map[int][]string{
	http.StatusUnauthorized: {
		"Check that your token is correct: " + CodeStyle.Render("--token <token>"),
		"Issue a new one with " + CodeStyle.Render("blimp token issue <user_id>"),
	},
	http.StatusForbidden: {
		"Only the admin token may act for another user with " + CodeStyle.Render("--user"),
	},
	http.StatusServiceUnavailable: {
		"Configure an LLM provider key (llm.gemini.apiKeys or llm.anthropic.apiKey)",
	},
	http.StatusGatewayTimeout: {
		"The upstream API may be under heavy load",
		"Try again with a narrower request",
	},
}

// FormatError converts an error to a human-readable message.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg, ok := StatusMessages[apiErr.Status]
		if !ok {
			return apiErr.Error()
		}
		// Include the gateway's message when it adds context
		if apiErr.Message != "" && !strings.Contains(strings.ToLower(msg), strings.ToLower(apiErr.Message)) {
			return fmt.Sprintf("%s (%s)", msg, apiErr.Message)
		}
		return msg
	}

	if errors.Is(err, context.Canceled) {
		return "Request was canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out"
	}
	if isConnectionError(err) {
		return "Cannot connect to gateway at " + gatewayHTTPAddr
	}

	return cleanErrorMessage(err.Error())
}

// GetErrorSuggestions returns helpful suggestions for an error
func GetErrorSuggestions(err error) []string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if strings.Contains(apiErr.Message, "is not connected") {
			return []string{"Connect it first: " + CodeStyle.Render("blimp connection add <app> --token <token>")}
		}
		return StatusSuggestions[apiErr.Status]
	}
	if isConnectionError(err) {
		return []string{
			"Start a local gateway: " + CodeStyle.Render("blimp serve"),
			"Check your " + CodeStyle.Render("BLIMP_GATEWAY") + " environment variable",
		}
	}
	return nil
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// cleanErrorMessage cleans up common error message patterns
func cleanErrorMessage(msg string) string {
	msg = strings.TrimPrefix(msg, "error: ")
	msg = strings.TrimPrefix(msg, "Error: ")

	// For deeply nested errors, keep the first and last parts
	if parts := strings.Split(msg, ": "); len(parts) > 3 {
		msg = parts[0] + ": " + parts[len(parts)-1]
	}
	return msg
}

// PrintFormattedError prints an error with styling and optional suggestions
func PrintFormattedError(title string, err error) {
	if IsJSONOutput() {
		PrintJSON(map[string]any{"success": false, "error": FormatError(err)})
		return
	}

	fmt.Println()
	PrintErrorMsg(title)

	if err != nil {
		fmt.Printf("  %s\n", DimStyle.Render(FormatError(err)))

		if suggestions := GetErrorSuggestions(err); len(suggestions) > 0 {
			PrintSuggestions("Suggestions:", suggestions)
		}
	}
	fmt.Println()
}
