package scene

import (
	"context"
	"errors"
	"testing"
)

func sampleScene(name string) *Scene {
	return &Scene{
		Name: name,
		Actions: []Action{
			{Acts: []Act{{DevID: 1, ID: 0, Param1: 1}}},
		},
	}
}

func TestSaveAppendsAndReplacesInPlace(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()

	for _, name := range []string{"morning", "evening", "night"} {
		if err := r.Save(ctx, sampleScene(name)); err != nil {
			t.Fatalf("Save(%q) error = %v", name, err)
		}
	}

	// Replacing a scene keeps its position.
	replacement := sampleScene("evening")
	replacement.Actions[0].Acts[0].Param1 = 99
	if err := r.Save(ctx, replacement); err != nil {
		t.Fatalf("Save(replacement) error = %v", err)
	}

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("All() = %d scenes, want 3", len(all))
	}
	if all[1].Name != "evening" || all[1].Actions[0].Acts[0].Param1 != 99 {
		t.Errorf("position 1 = %q param %d, want replaced evening", all[1].Name, all[1].Actions[0].Acts[0].Param1)
	}
}

func TestSaveValidation(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()

	tooManyActions := &Scene{Name: "big"}
	for i := 0; i <= MaxActions; i++ {
		tooManyActions.Actions = append(tooManyActions.Actions, Action{Acts: []Act{{}}})
	}
	tooManyActs := &Scene{Name: "wide", Actions: []Action{{}}}
	for i := 0; i <= MaxActs; i++ {
		tooManyActs.Actions[0].Acts = append(tooManyActs.Actions[0].Acts, Act{})
	}

	tests := []struct {
		name  string
		scene *Scene
	}{
		{"empty name", &Scene{Name: "", Actions: []Action{{Acts: []Act{{}}}}}},
		{"long name", sampleScene("a-name-well-beyond-sixteen")},
		{"no actions", &Scene{Name: "empty"}},
		{"too many actions", tooManyActions},
		{"action with no acts", &Scene{Name: "hollow", Actions: []Action{{}}}},
		{"too many acts", tooManyActs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Save(ctx, tt.scene); !errors.Is(err, ErrBadParam) {
				t.Errorf("Save() error = %v, want ErrBadParam", err)
			}
		})
	}
}

func TestDeleteAndGet(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()

	if err := r.Save(ctx, sampleScene("morning")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := r.Get("morning")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	// Mutating the returned copy must not change the stored scene.
	got.Actions[0].Acts[0].Param1 = 42
	again, _ := r.Get("morning")
	if again.Actions[0].Acts[0].Param1 == 42 {
		t.Errorf("Get() returned shared state")
	}

	if err := r.Delete(ctx, "morning"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := r.Get("morning"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := r.Delete(ctx, "morning"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() again error = %v, want ErrNotFound", err)
	}
}
