package integrations

import (
	"fmt"
	"time"

	"github.com/Gabiro3/blimp2/pkg/integrations/clients"
	"github.com/Gabiro3/blimp2/pkg/integrations/definitions"
	"github.com/Gabiro3/blimp2/pkg/types"
)

// Clients bundles the upstream API clients used by the built-in handlers.
// Tests point individual clients at httptest servers.
type Clients struct {
	Gmail    *clients.GmailClient
	Calendar *clients.CalendarClient
	Drive    *clients.DriveClient
	Docs     *clients.DocsClient
	Slack    *clients.SlackClient
	Discord  *clients.DiscordClient
	Notion   *clients.NotionClient
	Trello   *clients.TrelloClient
	GitHub   *clients.GitHubClient
	Now      func() time.Time
}

func NewClients(cfg types.IntegrationsConfig) *Clients {
	return &Clients{
		Gmail:    clients.NewGmailClient(),
		Calendar: clients.NewCalendarClient(),
		Drive:    clients.NewDriveClient(),
		Docs:     clients.NewDocsClient(),
		Slack:    clients.NewSlackClient(),
		Discord:  clients.NewDiscordClient(),
		Notion:   clients.NewNotionClient(),
		Trello:   clients.NewTrelloClient(cfg.TrelloAPIKey),
		GitHub:   clients.NewGitHubClient(),
		Now:      time.Now,
	}
}

// LoadDefinitions loads the embedded app definitions.
func LoadDefinitions() ([]*types.AppSpec, error) {
	return LoadSpecs(definitions.FS, ".")
}

// NewDefaultRegistry builds the registry of every built-in app and
// validates it. A definition without a handler (or the reverse) is a
// startup error.
func NewDefaultRegistry(cfg types.IntegrationsConfig, c *Clients) (*Registry, error) {
	specs, err := LoadDefinitions()
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = NewClients(cfg)
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	opts := []RegistryOption{WithRateLimiter(NewRateLimiter(cfg.RateLimit))}
	if cfg.Timeouts.App > 0 {
		opts = append(opts, WithCallTimeout(cfg.Timeouts.App))
	}
	r := NewRegistry(specs, opts...)

	registerGmail(r, c.Gmail)
	registerCalendar(r, c.Calendar, c.Now)
	registerDrive(r, c.Drive, c.Now)
	registerDocs(r, c.Docs, c.Drive)
	registerSlack(r, c.Slack)
	registerDiscord(r, c.Discord)
	registerNotion(r, c.Notion, c.Now)
	registerTrello(r, c.Trello)
	registerGitHub(r, c.GitHub)

	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("build function registry: %w", err)
	}
	return r, nil
}
