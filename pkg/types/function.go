package types

type FunctionKind string

const (
	FunctionKindFetch  FunctionKind = "fetch"
	FunctionKindAction FunctionKind = "action"
)

// FunctionParam describes one parameter of an app function.
type FunctionParam struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Required    bool   `yaml:"required" json:"required,omitempty"`
}

// FunctionSpec describes an app function. The result fields tell the
// executor where the items live in the payload and what they are.
type FunctionSpec struct {
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description" json:"description"`
	Kind        FunctionKind    `yaml:"kind" json:"kind"`
	Parameters  []FunctionParam `yaml:"parameters" json:"parameters"`
	ResultKey   string          `yaml:"result_key" json:"result_key,omitempty"`
	DataType    DataType        `yaml:"data_type" json:"data_type,omitempty"`
	ItemKind    string          `yaml:"item_kind" json:"item_kind,omitempty"`
	Single      bool            `yaml:"single" json:"single,omitempty"`
}

// PromptView is the shape shown to the planner: name, description and a
// parameter-name to description map.
func (f FunctionSpec) PromptView() map[string]any {
	params := make(map[string]string, len(f.Parameters))
	for _, p := range f.Parameters {
		desc := p.Description
		if p.Required {
			desc += " (required)"
		}
		params[p.Name] = desc
	}
	return map[string]any{
		"name":        f.Name,
		"description": f.Description,
		"parameters":  params,
	}
}

// AppSpec groups the functions of one app.
type AppSpec struct {
	App         string         `yaml:"app" json:"app"`
	DisplayName string         `yaml:"display_name" json:"display_name"`
	Functions   []FunctionSpec `yaml:"functions" json:"functions"`
}
