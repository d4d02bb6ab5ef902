package store

import (
	"errors"
	"testing"

	"tmengine/internal/tmerr"
)

func TestChunkLinkWithRejectsSelf(t *testing.T) {
	c := &Chunk{ID: "a"}
	if err := c.LinkWith("a"); !errors.Is(err, tmerr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := c.LinkWith("b"); err != nil {
		t.Fatalf("LinkWith failed: %v", err)
	}
	if err := c.LinkWith("b"); err != nil {
		t.Fatalf("LinkWith repeat failed: %v", err)
	}
	if len(c.LinkedChunks) != 1 {
		t.Fatalf("expected deduplicated links, got %v", c.LinkedChunks)
	}
	c.Unlink("b")
	if c.IsLinkedTo("b") {
		t.Fatal("expected link removed")
	}
}

func TestAddProcessingNoteIgnoresBlank(t *testing.T) {
	c := &Chunk{ID: "a"}
	c.AddProcessingNote("  ")
	c.AddProcessingNote("merged")
	if len(c.ProcessingNotes) != 1 || c.ProcessingNotes[0] != "merged" {
		t.Fatalf("unexpected notes: %v", c.ProcessingNotes)
	}
}

func TestSetSentenceBoundaries(t *testing.T) {
	c := &Chunk{ID: "a"}
	if err := c.SetSentenceBoundaries([]int{5, 3}); !errors.Is(err, tmerr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := c.SetSentenceBoundaries([]int{3, 9}); err != nil {
		t.Fatalf("SetSentenceBoundaries failed: %v", err)
	}
}

func TestAlignmentStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to AlignmentStatus
		want     bool
	}{
		{StatusPending, StatusValidated, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusNeedsReview, true},
		{StatusNeedsReview, StatusValidated, true},
		{StatusNeedsReview, StatusPending, false},
		{StatusValidated, StatusRejected, false},
		{StatusRejected, StatusValidated, false},
		{StatusValidated, StatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Fatalf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestPhraseGroupValidate(t *testing.T) {
	g := &PhraseGroup{ChunkIDs: []string{"a"}, MergeOrder: []int{0}}
	if err := g.Validate(); !errors.Is(err, tmerr.ErrConflict) {
		t.Fatalf("expected conflict for single chunk, got %v", err)
	}
	g = &PhraseGroup{ChunkIDs: []string{"a", "b"}, MergeOrder: []int{0}}
	if err := g.Validate(); !errors.Is(err, tmerr.ErrValidation) {
		t.Fatalf("expected validation error for short merge order, got %v", err)
	}
}

func TestTermValidateLimits(t *testing.T) {
	long := make([]byte, MaxTermLength+1)
	for i := range long {
		long[i] = 'a'
	}
	cases := []struct {
		name  string
		term  Term
		field string
	}{
		{"empty", Term{ProjectID: "p", Term: " "}, "term"},
		{"too long", Term{ProjectID: "p", Term: string(long)}, "term"},
		{"no project", Term{Term: "API"}, "project_id"},
	}
	for _, tc := range cases {
		err := tc.term.Validate()
		if field, ok := tmerr.Field(err); !ok || field != tc.field {
			t.Fatalf("%s: expected field %q, got %v", tc.name, tc.field, err)
		}
	}
}
