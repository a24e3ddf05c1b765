package usecases

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"project_asisten/internal/entities"
)

type fakeKnowledge struct {
	entries []entities.KnowledgeEntry
	queries [][]string
}

func (f *fakeKnowledge) SearchCandidates(_ context.Context, _ int, keywords []string) ([]entities.KnowledgeEntry, error) {
	f.queries = append(f.queries, keywords)
	return f.entries, nil
}

func TestKeywords(t *testing.T) {
	t.Run("filters stop words and short tokens", func(t *testing.T) {
		got := Keywords("What are your opening hours on a Monday?")
		want := []string{"opening", "hours", "monday"}
		if len(got) != len(want) {
			t.Fatalf("Keywords = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Keywords[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("empty when nothing survives", func(t *testing.T) {
		if got := Keywords("is it in a"); len(got) != 0 {
			t.Errorf("Keywords = %v, want none", got)
		}
	})
}

func TestRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("title match outranks body match", func(t *testing.T) {
		repo := &fakeKnowledge{entries: []entities.KnowledgeEntry{
			{Title: "Returns", Content: "Items can come back within 30 days. Pricing does not change."},
			{Title: "Pricing", Content: "Our plans start at 10 per month."},
		}}
		r := NewKnowledgeRetriever(repo)

		got, err := r.Retrieve(ctx, 1, "pricing")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(got, "## Pricing") {
			t.Errorf("expected pricing entry first, got %q", got)
		}
	})

	t.Run("empty query skips the datastore", func(t *testing.T) {
		repo := &fakeKnowledge{}
		r := NewKnowledgeRetriever(repo)

		got, err := r.Retrieve(ctx, 1, "is it in a")
		if err != nil {
			t.Fatal(err)
		}
		if got != "" {
			t.Errorf("Retrieve = %q, want empty", got)
		}
		if len(repo.queries) != 0 {
			t.Errorf("datastore queried %d times, want 0", len(repo.queries))
		}
	})

	t.Run("output stays within the character budget", func(t *testing.T) {
		big := strings.Repeat("spa treatments and massage pricing details. ", 40)
		var entries []entities.KnowledgeEntry
		for i := 0; i < 8; i++ {
			entries = append(entries, entities.KnowledgeEntry{Title: "Massage", Content: big})
		}
		r := NewKnowledgeRetriever(&fakeKnowledge{entries: entries})

		got, err := r.Retrieve(ctx, 1, "massage pricing")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) > retrievalBudget {
			t.Errorf("context length %d exceeds budget %d", len(got), retrievalBudget)
		}
		if got == "" {
			t.Error("expected non-empty context")
		}
	})

	t.Run("budget cut lands on a rune boundary", func(t *testing.T) {
		big := strings.Repeat("é", 2000)
		entries := []entities.KnowledgeEntry{
			{Title: "Massage", Content: big},
			{Title: "Massage", Content: big},
		}
		r := NewKnowledgeRetriever(&fakeKnowledge{entries: entries})

		got, err := r.Retrieve(ctx, 1, "massage")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) > retrievalBudget {
			t.Errorf("context length %d exceeds budget %d", len(got), retrievalBudget)
		}
		if !utf8.ValidString(got) {
			t.Error("truncated context is not valid UTF-8")
		}
	})

	t.Run("unmatched entries are dropped", func(t *testing.T) {
		repo := &fakeKnowledge{entries: []entities.KnowledgeEntry{
			{Title: "Shipping", Content: "We ship worldwide."},
		}}
		r := NewKnowledgeRetriever(repo)

		got, err := r.Retrieve(ctx, 1, "haircut appointment")
		if err != nil {
			t.Fatal(err)
		}
		if got != "" {
			t.Errorf("Retrieve = %q, want empty for zero-score entries", got)
		}
	})
}
