package core

import (
	"testing"

	"github.com/JonMunkholm/casegrid/internal/grid"
)

func testScreen(key, group string) Screen {
	return Screen{
		Key:     key,
		Group:   group,
		IDField: "radicado",
		Columns: []ScreenColumn{
			{Column: grid.Column{ID: "radicado", Label: "Radicado", Filter: grid.FilterText}},
		},
		Scope:  ScopeAll,
		Submit: SubmitTx,
	}
}

func TestRegistry(t *testing.T) {
	Clear()
	t.Cleanup(Clear)

	Register(testScreen("lider-casos", "Casos"))
	Register(testScreen("admin-casos", "Casos"))
	Register(testScreen("usuarios", "Admin"))

	if got := ScreenCount(); got != 3 {
		t.Fatalf("ScreenCount() = %d, want 3", got)
	}

	if _, ok := Get("admin-casos"); !ok {
		t.Error("Get(admin-casos) not found")
	}
	if _, ok := Get("missing"); ok {
		t.Error("Get(missing) should not be found")
	}

	all := All()
	wantOrder := []string{"usuarios", "admin-casos", "lider-casos"}
	for i, s := range all {
		if s.Key != wantOrder[i] {
			t.Errorf("All()[%d] = %s, want %s", i, s.Key, wantOrder[i])
		}
	}

	if got := ByGroup("Casos"); len(got) != 2 || got[0].Key != "admin-casos" {
		t.Errorf("ByGroup(Casos) = %v", got)
	}
	if got := Groups(); len(got) != 2 || got[0] != "Admin" || got[1] != "Casos" {
		t.Errorf("Groups() = %v", got)
	}
}

func TestRegisterPanics(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Screen)
	}{
		{"duplicate key", func(*Screen) {}},
		{"missing id field", func(s *Screen) { s.Key = "b"; s.IDField = "" }},
		{"bad scope", func(s *Screen) { s.Key = "c"; s.Scope = "team" }},
		{"bad submit", func(s *Screen) { s.Key = "d"; s.Submit = "batch" }},
		{"bad options_from", func(s *Screen) { s.Key = "e"; s.Columns[0].OptionsFrom = "roles" }},
		{"editable without kind", func(s *Screen) { s.Key = "f"; s.Columns[0].Editable = true }},
	}

	Clear()
	t.Cleanup(Clear)
	Register(testScreen("a", "G"))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testScreen("a", "G")
			tt.mutate(&s)
			defer func() {
				if recover() == nil {
					t.Errorf("Register did not panic")
				}
			}()
			Register(s)
		})
	}
}
