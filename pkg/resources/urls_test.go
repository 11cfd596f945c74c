package resources

import (
	"testing"

	"github.com/Gabiro3/blimp2/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestBuildGmail(t *testing.T) {
	urls := Build("gmail", []types.Item{{"id": "18c2f0a1b2c3d4e5", "summary": "Funding round"}})
	assert.Equal(t, []types.ResourceURL{{
		ID:      "18c2f0a1b2c3d4e5",
		Summary: "Funding round",
		URL:     "https://mail.google.com/mail/u/0/#inbox/18c2f0a1b2c3d4e5",
	}}, urls)
}

func TestBuildSlackRequiresChannel(t *testing.T) {
	urls := Build("slack", []types.Item{
		{"id": "1700000000.000100", "summary": "no channel"},
		{"id": "1700000000.000200", "channel_id": "C123", "summary": "with channel"},
	})
	assert.Len(t, urls, 1)
	assert.Equal(t, "https://app.slack.com/client/C123/thread/1700000000.000200", urls[0].URL)
}

func TestBuildPerApp(t *testing.T) {
	cases := []struct {
		app  string
		item types.Item
		want string
	}{
		{"google_calendar", types.Item{"id": "evt1"}, "https://calendar.google.com/calendar/event?eid=evt1"},
		{"google drive", types.Item{"id": "f1"}, "https://drive.google.com/file/d/f1/view"},
		{"google_docs", types.Item{"id": "d1"}, "https://docs.google.com/document/d/d1/edit"},
		{"trello", types.Item{"id": "c1", "board_id": "b1", "card_id": "c1"}, "https://trello.com/c/c1"},
		{"github", types.Item{"id": "r1", "owner": "octo", "repo_name": "hello"}, "https://github.com/octo/hello"},
		{"github", types.Item{"id": "i1", "owner": "octo", "repo_name": "hello", "number": float64(42)}, "https://github.com/octo/hello/issues/42"},
		{"notion", types.Item{"id": "1a2b-3c4d"}, "https://www.notion.so/1a2b3c4d"},
		{"discord", types.Item{"id": "m1", "guild_id": "g1", "channel_id": "c1"}, "https://discord.com/channels/g1/c1/m1"},
	}
	for _, tc := range cases {
		t.Run(tc.app+"/"+tc.want, func(t *testing.T) {
			urls := Build(tc.app, []types.Item{tc.item})
			if assert.Len(t, urls, 1) {
				assert.Equal(t, tc.want, urls[0].URL)
			}
		})
	}
}

func TestBuildSkipsIncompleteItems(t *testing.T) {
	assert.Empty(t, Build("trello", []types.Item{{"id": "c1", "card_id": "c1"}}))
	assert.Empty(t, Build("github", []types.Item{{"id": "r1", "owner": "octo"}}))
	assert.Empty(t, Build("gmail", []types.Item{{"summary": "no id"}}))
	assert.Empty(t, Build("unknown_app", []types.Item{{"id": "x"}}))
}
