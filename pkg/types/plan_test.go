package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAppName(t *testing.T) {
	cases := map[string]string{
		"Gmail":           "gmail",
		"Google Calendar": "google_calendar",
		"gcalendar":       "google_calendar",
		"GDrive":          "google_drive",
		" Google Docs ":   "google_docs",
		"github":          "github",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeAppName(in), in)
	}
}

func TestQueryPlanValidate(t *testing.T) {
	fetch := &DataFetchPlan{App: "gmail", Function: "list_messages", Parameters: map[string]any{"query": "is:unread"}}
	send := ActionStep{Type: "send_message", App: "gmail"}
	onlyIf := ActionStep{Type: "create_event", App: "google_calendar", Condition: ConditionOnlyIfAvailable}

	t.Run("informational", func(t *testing.T) {
		assert.NoError(t, (&QueryPlan{QueryType: QueryTypeInformational, DataFetchPlan: fetch}).Validate())

		err := (&QueryPlan{QueryType: QueryTypeInformational, DataFetchPlan: fetch, Actions: []ActionStep{send}}).Validate()
		assert.True(t, (&InvalidResponseError{}).From(err))
	})

	t.Run("actionable", func(t *testing.T) {
		assert.NoError(t, (&QueryPlan{QueryType: QueryTypeActionable, Actions: []ActionStep{send}}).Validate())

		err := (&QueryPlan{QueryType: QueryTypeActionable, DataFetchPlan: fetch, Actions: []ActionStep{send}}).Validate()
		assert.True(t, (&InvalidResponseError{}).From(err))
	})

	t.Run("conditional", func(t *testing.T) {
		calFetch := &DataFetchPlan{App: "google_calendar", Function: "list_events"}
		assert.NoError(t, (&QueryPlan{QueryType: QueryTypeConditional, DataFetchPlan: calFetch, Actions: []ActionStep{onlyIf}}).Validate())

		err := (&QueryPlan{QueryType: QueryTypeConditional, DataFetchPlan: calFetch, Actions: []ActionStep{send}}).Validate()
		assert.True(t, (&InvalidResponseError{}).From(err))

		err = (&QueryPlan{QueryType: QueryTypeConditional, Actions: []ActionStep{onlyIf}}).Validate()
		assert.True(t, (&InvalidResponseError{}).From(err))
	})

	t.Run("unknown query type", func(t *testing.T) {
		err := (&QueryPlan{QueryType: "whatever", DataFetchPlan: fetch}).Validate()
		assert.True(t, (&InvalidResponseError{}).From(err))
	})

	t.Run("unknown condition", func(t *testing.T) {
		bad := send
		bad.Condition = "if_sunny"
		err := (&QueryPlan{QueryType: QueryTypeActionable, Actions: []ActionStep{bad}}).Validate()
		assert.True(t, (&InvalidResponseError{}).From(err))
	})
}

func TestQueryPlanFetchStep(t *testing.T) {
	t.Run("call", func(t *testing.T) {
		p := &QueryPlan{DataFetchPlan: &DataFetchPlan{App: "Google Calendar", Function: "list_events"}}
		step, err := p.FetchStep()
		require.NoError(t, err)
		assert.Equal(t, FetchCall{App: "google_calendar", Function: "list_events"}, step)
	})

	t.Run("generate create_new", func(t *testing.T) {
		p := &QueryPlan{DataFetchPlan: &DataFetchPlan{
			App:        "google_docs",
			Function:   FunctionGenerateAndInsert,
			Parameters: map[string]any{"research_topic": "solar power", "action": "create_new"},
		}}
		step, err := p.FetchStep()
		require.NoError(t, err)
		gen, ok := step.(GenerateAndInsert)
		require.True(t, ok)
		assert.Equal(t, "solar power", gen.Topic)
		assert.Equal(t, InsertCreateNew, gen.Mode)
		assert.Equal(t, "Research: solar power", gen.DocumentTitle)
	})

	t.Run("generate append needs document name", func(t *testing.T) {
		p := &QueryPlan{DataFetchPlan: &DataFetchPlan{
			App:        "google_docs",
			Function:   FunctionGenerateAndInsert,
			Parameters: map[string]any{"research_topic": "solar power", "action": "append_to_existing"},
		}}
		_, err := p.FetchStep()
		assert.True(t, (&MissingParameterError{}).From(err))
	})

	t.Run("generate outside docs", func(t *testing.T) {
		p := &QueryPlan{DataFetchPlan: &DataFetchPlan{
			App:        "slack",
			Function:   FunctionGenerateAndInsert,
			Parameters: map[string]any{"research_topic": "solar power"},
		}}
		_, err := p.FetchStep()
		assert.True(t, (&UnsupportedOperationError{}).From(err))

		p.DataFetchPlan.App = "gdocs"
		_, err = p.FetchStep()
		assert.NoError(t, err)
	})

	t.Run("none", func(t *testing.T) {
		step, err := (&QueryPlan{}).FetchStep()
		assert.NoError(t, err)
		assert.Nil(t, step)
	})
}

func TestPrimaryAppFallsBackToFirstAction(t *testing.T) {
	p := &QueryPlan{QueryType: QueryTypeActionable, Actions: []ActionStep{{Type: "send_message", App: "Slack"}}}
	assert.Equal(t, "slack", p.PrimaryApp())
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "not_connected", ErrorKind(&NotConnectedError{App: "gmail"}))
	assert.Equal(t, "No credentials found for gmail", (&MissingCredentialsError{App: "gmail"}).Error())
	assert.Equal(t, "gmail is not connected. Please connect it first.", (&NotConnectedError{App: "gmail"}).Error())
	assert.Equal(t, "internal", ErrorKind(assert.AnError))
}
