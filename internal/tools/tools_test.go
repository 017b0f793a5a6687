package tools

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/nugget/coworker/internal/schema"
)

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry([]*Tool{NoAction(), MessageUser()})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if got := reg.Names(); !reflect.DeepEqual(got, []string{"no_action", "message_user"}) {
		t.Errorf("Names() = %v", got)
	}

	tool, desc, ok := reg.Get("message_user")
	if !ok {
		t.Fatal("message_user not registered")
	}
	if tool.Name != "message_user" || desc.Mutating {
		t.Errorf("unexpected lookup result: %v %v", tool.Name, desc.Mutating)
	}

	if _, _, ok := reg.Get("does_not_exist"); ok {
		t.Error("Get returned ok for unregistered name")
	}
}

func TestNewRegistryRejectsCollision(t *testing.T) {
	_, err := NewRegistry([]*Tool{NoAction(), NoAction()})
	if err == nil || !strings.Contains(err.Error(), "duplicate tool name") {
		t.Fatalf("error = %v, want duplicate name rejection", err)
	}
}

func TestNewRegistryRejectsBadSchema(t *testing.T) {
	bad := &Tool{
		Declaration: schema.Declaration{
			Name: "bad",
			Doc:  "A tool with a bad parameter.",
			Params: []schema.ParamDecl{
				{Name: "blob", Type: schema.ParamType("map")},
			},
		},
	}

	if _, err := NewRegistry([]*Tool{bad}); err == nil {
		t.Fatal("NewRegistry accepted an uncompilable tool")
	}
}

func TestSchemasOrder(t *testing.T) {
	reg, err := NewRegistry([]*Tool{MessageUser(), NoAction()})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	schemas := reg.Schemas()
	if len(schemas) != 2 {
		t.Fatalf("Schemas() length = %d", len(schemas))
	}
	first := schemas[0]["function"].(map[string]any)["name"]
	if first != "message_user" {
		t.Errorf("first schema = %v, want registration order preserved", first)
	}
}

func TestMessageUserHandler(t *testing.T) {
	got, err := MessageUser().Handler(context.Background(), RuntimeContext{}, map[string]any{
		"message": "on it",
	})
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	if got != "on it" {
		t.Errorf("Handler = %q, want verbatim message", got)
	}
}

func TestNoActionHandler(t *testing.T) {
	got, err := NoAction().Handler(context.Background(), RuntimeContext{}, nil)
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	if got != "" {
		t.Errorf("Handler = %q, want empty", got)
	}
}
