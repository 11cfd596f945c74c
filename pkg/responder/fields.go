package responder

import "github.com/Gabiro3/blimp2/pkg/types"

// Field is one relevant_items key the answer must carry for an app.
type Field struct {
	Name        string
	Description string
}

var (
	fieldID      = Field{"id", "the item's id exactly as fetched"}
	fieldSummary = Field{"summary", "one line describing the item"}
)

var appFields = map[string][]Field{
	types.AppGmail: {
		{"id", "the message id (the long alphanumeric string, not a number)"},
		fieldSummary,
		{"sender", "the From header"},
		{"date", "the Date header"},
		{"snippet", "the first lines of the email"},
	},
	types.AppSlack: {
		{"id", "the message timestamp id"},
		fieldSummary,
		{"sender", "who sent it"},
		{"channel", "channel name"},
		{"channel_id", "channel id"},
		{"text", "full message text"},
	},
	types.AppGoogleCalendar: {
		{"id", "the event id"},
		fieldSummary,
		{"start", "start date/time"},
		{"end", "end date/time"},
		{"location", "where it happens"},
		{"attendees", "who is invited"},
	},
	types.AppGoogleDrive: {
		{"id", "the file id"},
		fieldSummary,
		{"name", "full file name"},
		{"type", "document, spreadsheet, pdf, image, folder, ..."},
		{"size", "human readable size"},
		{"modified", "last modified time"},
		{"created", "created time"},
	},
	types.AppGoogleDocs: {
		{"id", "the document id"},
		fieldSummary,
		{"title", "document title"},
		{"modified", "last modified time"},
	},
	types.AppNotion: {
		{"id", "the page id"},
		fieldSummary,
		{"title", "page title"},
		{"last_edited", "last edited time"},
	},
	types.AppTrello: {
		{"id", "the card or board id"},
		fieldSummary,
		{"board_id", "the board id"},
		{"card_id", "the card short link"},
		{"due", "due date, if any"},
	},
	types.AppDiscord: {
		{"id", "the message id"},
		fieldSummary,
		{"channel_id", "channel id"},
		{"guild_id", "server id"},
		{"author", "who posted it"},
	},
}

var githubFields = map[string][]Field{
	"repository": {
		{"id", "the repository id"},
		{"owner", "repository owner"},
		{"repo_name", "repository name"},
		{"description", "repository description"},
		{"updated", "last update time"},
	},
	"issue": {
		{"id", "the issue id"},
		{"number", "issue number"},
		{"owner", "repository owner"},
		{"repo_name", "repository name"},
		{"title", "issue title"},
		{"state", "open or closed"},
		{"author", "who opened it"},
	},
	"pull_request": {
		{"id", "the pull request id"},
		{"number", "pull request number"},
		{"owner", "repository owner"},
		{"repo_name", "repository name"},
		{"title", "pull request title"},
		{"state", "open or closed"},
		{"author", "who opened it"},
		{"merged", "whether it was merged"},
		{"draft", "whether it is a draft"},
	},
	"commit": {
		{"sha", "commit sha"},
		{"message", "commit message"},
		{"author", "commit author"},
	},
	"comment": {
		{"id", "the comment id"},
		{"body", "comment text"},
		{"author", "who wrote it"},
	},
	"merge_status": {
		fieldSummary,
		{"merged", "number of merged pull requests"},
		{"open", "number of open pull requests"},
		{"closed", "number of closed pull requests"},
	},
}

// FieldsFor returns the relevant_items contract of an app. GitHub items are
// keyed by item kind; unknown apps get id and summary.
func FieldsFor(app, itemKind string) []Field {
	app = types.NormalizeAppName(app)
	if app == types.AppGitHub {
		if fields, ok := githubFields[itemKind]; ok {
			return fields
		}
		return githubFields["repository"]
	}
	if fields, ok := appFields[app]; ok {
		return fields
	}
	return []Field{fieldID, fieldSummary}
}
