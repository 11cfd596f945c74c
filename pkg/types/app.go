package types

import (
	"strings"
	"time"
)

// AppName identifies a third-party application.
type AppName = string

const (
	AppGmail          AppName = "gmail"
	AppGoogleCalendar AppName = "google_calendar"
	AppGoogleDrive    AppName = "google_drive"
	AppGoogleDocs     AppName = "google_docs"
	AppSlack          AppName = "slack"
	AppDiscord        AppName = "discord"
	AppNotion         AppName = "notion"
	AppTrello         AppName = "trello"
	AppGitHub         AppName = "github"
)

var appAliases = map[string]string{
	"gcalendar":       AppGoogleCalendar,
	"calendar":        AppGoogleCalendar,
	"google_calender": AppGoogleCalendar,
	"gdrive":          AppGoogleDrive,
	"drive":           AppGoogleDrive,
	"gdocs":           AppGoogleDocs,
	"docs":            AppGoogleDocs,
}

// KnownApps lists every app the registry can serve.
var KnownApps = []AppName{
	AppGmail, AppGoogleCalendar, AppGoogleDrive, AppGoogleDocs,
	AppSlack, AppDiscord, AppNotion, AppTrello, AppGitHub,
}

// IsKnownApp reports whether app is a canonical app name.
func IsKnownApp(app string) bool {
	for _, known := range KnownApps {
		if app == known {
			return true
		}
	}
	return false
}

// NormalizeAppName lowercases, replaces spaces with underscores and maps
// known aliases to the canonical name.
func NormalizeAppName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, " ", "_")
	n = strings.ReplaceAll(n, "-", "_")
	if canonical, ok := appAliases[n]; ok {
		return canonical
	}
	return n
}

// IsGoogleApp reports whether the app authenticates against Google OAuth.
func IsGoogleApp(app string) bool {
	switch NormalizeAppName(app) {
	case AppGmail, AppGoogleCalendar, AppGoogleDrive, AppGoogleDocs:
		return true
	}
	return false
}

// ConnectedApp records that a user has linked an app.
type ConnectedApp struct {
	UserID    string    `json:"user_id"`
	AppName   string    `json:"app_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
