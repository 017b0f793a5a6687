package schema

import "strings"

// ParamType is a tool parameter's declared type. The set is closed:
// anything else fails compilation with [UnsupportedTypeError].
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeFloat   ParamType = "float"
	TypeBoolean ParamType = "boolean"
	TypeList    ParamType = "list"
)

// PrivatePrefix marks parameters that carry runtime-injected context
// rather than model-supplied arguments. They never appear in the
// model-facing schema and are never required.
const PrivatePrefix = "_"

// ConfirmedParam is the conventional name of the confirmation flag on
// mutating tools. Declaring it marks the tool mutating even without an
// explicit Mutating flag.
const ConfirmedParam = "confirmed"

// ParamDecl declares one parameter of a tool.
type ParamDecl struct {
	Name string
	Type ParamType
	// HasDefault marks the parameter optional: it is omitted from the
	// schema's required set.
	HasDefault bool
}

// Declaration is the static registration record a tool ships with.
// It replaces the original runtime-reflection approach: every tool
// states its name, documentation block, ordered parameter list, and
// whether invoking it mutates external state.
type Declaration struct {
	Name string
	// Doc is the structured documentation block: a short description
	// paragraph, optionally followed by an "Args:" section with one
	// "name: description" line per parameter.
	Doc      string
	Params   []ParamDecl
	Mutating bool
}

// Parameter is one entry in a compiled calling schema.
type Parameter struct {
	Name        string
	Type        string // JSON Schema type: string, number, boolean, array
	Description string
	Required    bool
}

// Descriptor is the compiled, model-facing calling schema for one tool.
type Descriptor struct {
	Name        string
	Description string
	// Parameters preserves declaration order and excludes private
	// (runtime-injected) parameters.
	Parameters []Parameter
	// Required lists the defaultless public parameters, order-preserving.
	Required []string
	Mutating bool
}

// typeMap is the total mapping from declared types to schema types.
var typeMap = map[ParamType]string{
	TypeString:  "string",
	TypeInteger: "number",
	TypeFloat:   "number",
	TypeBoolean: "boolean",
	TypeList:    "array",
}

// Compile derives the calling schema for one tool declaration. It is
// pure and deterministic; the result is computed once at registry build
// time and cached for the process lifetime.
func Compile(decl Declaration) (*Descriptor, error) {
	short, paramDocs, err := parseDoc(decl.Doc)
	if err != nil {
		return nil, &MissingDocumentationError{Tool: decl.Name, Reason: err.Error()}
	}

	d := &Descriptor{
		Name:        decl.Name,
		Description: short,
		Mutating:    decl.Mutating,
	}

	for _, p := range decl.Params {
		if strings.HasPrefix(p.Name, PrivatePrefix) {
			// Runtime-injected context, never requested from the model.
			continue
		}

		schemaType, ok := typeMap[p.Type]
		if !ok {
			return nil, &UnsupportedTypeError{Tool: decl.Name, Param: p.Name, Declared: p.Type}
		}

		if p.Name == ConfirmedParam {
			d.Mutating = true
		}

		d.Parameters = append(d.Parameters, Parameter{
			Name:        p.Name,
			Type:        schemaType,
			Description: paramDocs[p.Name],
			Required:    !p.HasDefault,
		})
		if !p.HasDefault {
			d.Required = append(d.Required, p.Name)
		}
	}

	return d, nil
}

// Parameter returns the compiled parameter with the given name, or nil.
func (d *Descriptor) Parameter(name string) *Parameter {
	for i := range d.Parameters {
		if d.Parameters[i].Name == name {
			return &d.Parameters[i]
		}
	}
	return nil
}

// JSONSchema renders the descriptor in the function-calling wire shape:
//
//	{"type": "function", "function": {"name": ..., "description": ...,
//	 "parameters": {"type": "object", "properties": ..., "required": ...}}}
func (d *Descriptor) JSONSchema() map[string]any {
	properties := make(map[string]any, len(d.Parameters))
	for _, p := range d.Parameters {
		properties[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
	}

	required := d.Required
	if required == nil {
		required = []string{}
	}

	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        d.Name,
			"description": d.Description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}
