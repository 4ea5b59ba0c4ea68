package content

import (
	"strings"
	"testing"
)

func TestNormalizeRenumbersAndFillsIDs(t *testing.T) {
	p := StructurePayload{Sections: []Section{
		{ID: "a", Title: "Intro", Position: 4},
		{ID: "", Title: "Body", Position: 9},
		{ID: "a", Title: "Dup", Position: 1},
	}}
	p.Normalize()
	if err := p.CheckDense(); err != nil {
		t.Fatalf("CheckDense after Normalize: %v", err)
	}
	if p.Sections[0].ID != "a" {
		t.Fatalf("expected first id kept, got %q", p.Sections[0].ID)
	}
	if p.Sections[2].ID == "a" {
		t.Fatalf("expected duplicate id replaced")
	}
}

func TestCloneDoesNotShareSections(t *testing.T) {
	p := StructurePayload{Title: "t", Sections: []Section{{ID: "a", Title: "x"}}}
	c := p.Clone()
	c.Sections[0].Title = "changed"
	if p.Sections[0].Title != "x" {
		t.Fatalf("clone mutated original")
	}
}

func TestCheckApprovable(t *testing.T) {
	if err := (StructurePayload{}).CheckApprovable(); err == nil {
		t.Fatalf("expected error for empty outline")
	}
	p := StructurePayload{Sections: []Section{{ID: "a", Title: "Intro"}, {ID: "b", Title: "  "}}}
	err := p.CheckApprovable()
	if err == nil || !strings.Contains(err.Error(), "sections[1].title") {
		t.Fatalf("expected blank title error, got %v", err)
	}
	p.Sections[1].Title = "Body"
	if err := p.CheckApprovable(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
