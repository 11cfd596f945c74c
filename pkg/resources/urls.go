package resources

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Gabiro3/blimp2/pkg/types"
)

type urlBuilder func(item types.Item) (string, bool)

var builders = map[string]urlBuilder{
	types.AppGmail: func(item types.Item) (string, bool) {
		id := field(item, "id")
		return "https://mail.google.com/mail/u/0/#inbox/" + id, id != ""
	},
	types.AppGoogleCalendar: func(item types.Item) (string, bool) {
		id := field(item, "id")
		return "https://calendar.google.com/calendar/event?eid=" + url.QueryEscape(id), id != ""
	},
	types.AppSlack: func(item types.Item) (string, bool) {
		id, channel := field(item, "id"), field(item, "channel_id")
		if id == "" || channel == "" {
			return "", false
		}
		return fmt.Sprintf("https://app.slack.com/client/%s/thread/%s", channel, id), true
	},
	types.AppGoogleDrive: func(item types.Item) (string, bool) {
		id := field(item, "id")
		return fmt.Sprintf("https://drive.google.com/file/d/%s/view", id), id != ""
	},
	types.AppGoogleDocs: func(item types.Item) (string, bool) {
		id := field(item, "id")
		return fmt.Sprintf("https://docs.google.com/document/d/%s/edit", id), id != ""
	},
	types.AppTrello: func(item types.Item) (string, bool) {
		board, card := field(item, "board_id"), field(item, "card_id")
		if board == "" || card == "" {
			return "", false
		}
		return "https://trello.com/c/" + card, true
	},
	types.AppGitHub: func(item types.Item) (string, bool) {
		owner, repo := field(item, "owner"), field(item, "repo_name")
		if owner == "" || repo == "" {
			return "", false
		}
		u := fmt.Sprintf("https://github.com/%s/%s", owner, repo)
		if n := field(item, "number"); n != "" {
			u += "/issues/" + n
		}
		return u, true
	},
	types.AppNotion: func(item types.Item) (string, bool) {
		id := strings.ReplaceAll(field(item, "id"), "-", "")
		return "https://www.notion.so/" + id, id != ""
	},
	types.AppDiscord: func(item types.Item) (string, bool) {
		guild, channel, id := field(item, "guild_id"), field(item, "channel_id"), field(item, "id")
		if guild == "" || channel == "" || id == "" {
			return "", false
		}
		return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guild, channel, id), true
	},
}

// Build returns deep links for the relevant items of an answer. Items
// without the fields their app needs are skipped, as are unknown apps.
func Build(app string, items []types.Item) []types.ResourceURL {
	build, ok := builders[types.NormalizeAppName(app)]
	if !ok {
		return []types.ResourceURL{}
	}

	urls := make([]types.ResourceURL, 0, len(items))
	for _, item := range items {
		if field(item, "id") == "" {
			continue
		}
		u, ok := build(item)
		if !ok {
			continue
		}
		urls = append(urls, types.ResourceURL{
			ID:      field(item, "id"),
			Summary: summary(item),
			URL:     u,
		})
	}
	return urls
}

func summary(item types.Item) string {
	for _, key := range []string{"summary", "subject", "title", "name", "text"} {
		if s := field(item, key); s != "" {
			return s
		}
	}
	return ""
}

// field stringifies scalar values; the LLM sometimes returns numbers for ids.
func field(item types.Item, key string) string {
	switch v := item[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	case int, int64:
		return fmt.Sprintf("%d", v)
	case nil:
		return ""
	default:
		return ""
	}
}
