package types

// Item is one normalized record returned by a fetch. It always carries "id"
// when the upstream API provides one.
type Item = map[string]any

type DataType string

const (
	DataTypeEmail      DataType = "email"
	DataTypeMessage    DataType = "message"
	DataTypeEvent      DataType = "event"
	DataTypeFile       DataType = "file"
	DataTypeDocument   DataType = "document"
	DataTypeBoard      DataType = "board"
	DataTypeRepository DataType = "repository"
	DataTypeUnknown    DataType = "unknown"
)

func (d DataType) Valid() bool {
	switch d {
	case DataTypeEmail, DataTypeMessage, DataTypeEvent, DataTypeFile,
		DataTypeDocument, DataTypeBoard, DataTypeRepository, DataTypeUnknown:
		return true
	}
	return false
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

func (c Confidence) Valid() bool {
	return c == ConfidenceHigh || c == ConfidenceMedium || c == ConfidenceLow
}

const InsightActionCompleted = "action_completed"

// ActionResult records the outcome of one action step.
type ActionResult struct {
	Action      string         `json:"action"`
	App         string         `json:"app"`
	Success     bool           `json:"success"`
	Description string         `json:"description,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Skipped     bool           `json:"skipped,omitempty"`
	Reason      string         `json:"reason,omitempty"`
}

// AnswerResult is the response generator's output.
type AnswerResult struct {
	Answer             string         `json:"answer"`
	Confidence         Confidence     `json:"confidence"`
	DataFound          bool           `json:"data_found"`
	RelevantItems      []Item         `json:"relevant_items"`
	SuggestedActions   []string       `json:"suggested_actions"`
	ActionableInsights string         `json:"actionable_insights,omitempty"`
	Extra              map[string]any `json:"-"`
}

type ResourceURL struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
}

// ExecutionResult is returned from a single-app plan execution.
type ExecutionResult struct {
	Success            bool                  `json:"success"`
	Answer             string                `json:"answer"`
	Confidence         Confidence            `json:"confidence"`
	DataFound          bool                  `json:"data_found"`
	RelevantItems      []Item                `json:"relevant_items"`
	ResourceURLs       []ResourceURL         `json:"resource_urls"`
	ActionsTaken       []ActionResult        `json:"actions_taken"`
	SuggestedActions   []string              `json:"suggested_actions"`
	ActionableInsights string                `json:"actionable_insights,omitempty"`
	App                string                `json:"app"`
	DataType           DataType              `json:"data_type"`
	ItemCount          int                   `json:"item_count"`
	PartialFailure     *PartialActionFailure `json:"partial_failure,omitempty"`
	FetchErrors        []FetchError          `json:"fetch_errors,omitempty"`
}

// FetchError records an item the fetch listed but could not load.
type FetchError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}
