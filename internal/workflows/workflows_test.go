package workflows

import (
	"sort"
	"strings"
	"testing"
)

func TestPrompt(t *testing.T) {
	got, err := Prompt("health_check")
	if err != nil {
		t.Fatalf("Prompt failed: %v", err)
	}
	if !strings.Contains(got, "overall system health") {
		t.Errorf("prompt = %q", got)
	}

	if _, err := Prompt("no_such_workflow"); err == nil {
		t.Error("unknown workflow should fail")
	}
}

func TestResolveTask(t *testing.T) {
	tests := []struct {
		name          string
		workflow      string
		deterministic bool
		wantContains  string
		wantErr       bool
	}{
		{name: "explicit workflow wins", workflow: "database_check", deterministic: true, wantContains: "connection pool"},
		{name: "deterministic default", deterministic: true, wantContains: "no action needed"},
		{name: "open ended default", wantContains: "root cause"},
		{name: "unknown workflow", workflow: "bogus", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveTask(tt.workflow, tt.deterministic)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveTask failed: %v", err)
			}
			if !strings.Contains(got, tt.wantContains) {
				t.Errorf("task = %q, want substring %q", got, tt.wantContains)
			}
		})
	}
}

func TestListComplete(t *testing.T) {
	all := List()
	if len(all) != 15 {
		t.Fatalf("List returned %d workflows, want 15", len(all))
	}
	if !sort.SliceIsSorted(all, func(i, j int) bool { return all[i].Name < all[j].Name }) {
		t.Error("List not sorted by name")
	}
	for _, w := range all {
		if w.Description == "" || w.Prompt == "" {
			t.Errorf("workflow %q missing description or prompt", w.Name)
		}
	}
}
