package action

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nugget/coworker/internal/llm"
	"github.com/nugget/coworker/internal/schema"
	"github.com/nugget/coworker/internal/tools"
)

// Invocation is a resolved, about-to-execute action: the matched tool,
// its compiled descriptor, and arguments validated against it. Created
// per model turn, consumed exactly once by the dispatcher, then
// discarded.
type Invocation struct {
	Tool       *tools.Tool
	Descriptor *schema.Descriptor
	Args       map[string]any
}

// Confirmed reports whether the model supplied confirmed=true.
// Meaningful only for mutating tools.
func (inv *Invocation) Confirmed() bool {
	v, _ := inv.Args[schema.ConfirmedParam].(bool)
	return v
}

// Resolution is the resolver's tagged result: a validated invocation,
// or the model's free-text fallback when no tool was chosen.
type Resolution struct {
	Invocation *Invocation
	FreeText   string
}

// Resolve validates a model decision against the registry. A free-text
// decision passes through as a fallback; a tool decision either becomes
// a validated Invocation or fails with [UnknownToolError] or
// [ArgumentDecodeError].
func Resolve(decision *llm.Decision, registry *tools.Registry) (*Resolution, error) {
	if !decision.ToolCalled() {
		return &Resolution{FreeText: decision.FreeText}, nil
	}

	tool, desc, ok := registry.Get(decision.ToolName)
	if !ok {
		return nil, &UnknownToolError{Name: decision.ToolName}
	}

	args, err := decodeArgs(desc, decision.RawArguments)
	if err != nil {
		return nil, &ArgumentDecodeError{
			Tool:   decision.ToolName,
			Raw:    string(decision.RawArguments),
			Reason: err.Error(),
		}
	}

	return &Resolution{
		Invocation: &Invocation{Tool: tool, Descriptor: desc, Args: args},
	}, nil
}

// decodeArgs parses and validates a raw argument blob: well-formed
// JSON object, no unknown keys, every required key present, every
// value matching its schema type.
func decodeArgs(desc *schema.Descriptor, raw json.RawMessage) (map[string]any, error) {
	args := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("malformed payload: %w", err)
		}
	}

	for key, value := range args {
		param := desc.Parameter(key)
		if param == nil {
			return nil, fmt.Errorf("unknown key %q", key)
		}
		if err := checkType(value, param.Type); err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
	}

	var missing []string
	for _, name := range desc.Required {
		if _, present := args[name]; !present {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required keys: %s", strings.Join(missing, ", "))
	}

	return args, nil
}

// checkType verifies a decoded JSON value against a schema type.
func checkType(value any, schemaType string) error {
	if value == nil {
		return fmt.Errorf("null value")
	}

	switch schemaType {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case "number":
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("expected number, got %T", value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
	default:
		return fmt.Errorf("unhandled schema type %q", schemaType)
	}
	return nil
}
