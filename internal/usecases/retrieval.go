package usecases

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"project_asisten/internal/entities"
)

// Retrieval parameters. Lexical scoring by design: cheap, predictable,
// good enough to ground a prompt. Semantic search is the known upgrade path.
const (
	titleWeight     = 0.3
	bodyWeight      = 0.1
	bodyCountCap    = 5
	retrievalTopN   = 5
	retrievalBudget = 3000 // max combined characters handed to the prompt
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "at": {}, "be": {}, "by": {},
	"can": {}, "do": {}, "does": {}, "for": {}, "from": {}, "have": {},
	"how": {}, "i": {}, "in": {}, "is": {}, "it": {}, "me": {}, "my": {},
	"of": {}, "on": {}, "or": {}, "please": {}, "tell": {}, "that": {},
	"the": {}, "this": {}, "to": {}, "want": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "who": {}, "will": {}, "with": {}, "would": {},
	"you": {}, "your": {},
}

type knowledgeSource interface {
	SearchCandidates(ctx context.Context, agentID int, keywords []string) ([]entities.KnowledgeEntry, error)
}

// KnowledgeRetriever turns free text into a bounded context string for the
// decision layer.
type KnowledgeRetriever struct {
	repo knowledgeSource
}

func NewKnowledgeRetriever(repo knowledgeSource) *KnowledgeRetriever {
	return &KnowledgeRetriever{repo: repo}
}

// Keywords extracts lowercase content words, stop-word filtered.
func Keywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, skip := stopWords[f]; skip {
			continue
		}
		out = append(out, f)
	}
	return out
}

type scoredEntry struct {
	entry entities.KnowledgeEntry
	score float64
}

// Retrieve returns up to retrievalTopN relevant entries joined into a single
// context string, truncated to the character budget. An empty string means
// nothing relevant was found; the decision layer copes.
func (k *KnowledgeRetriever) Retrieve(ctx context.Context, agentID int, query string) (string, error) {
	keywords := Keywords(query)
	if len(keywords) == 0 {
		return "", nil
	}

	candidates, err := k.repo.SearchCandidates(ctx, agentID, keywords)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", nil
	}

	scored := make([]scoredEntry, 0, len(candidates))
	for _, entry := range candidates {
		s := scoreEntry(entry, keywords)
		if s > 0 {
			scored = append(scored, scoredEntry{entry: entry, score: s})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > retrievalTopN {
		scored = scored[:retrievalTopN]
	}

	var sb strings.Builder
	for _, se := range scored {
		chunk := formatEntry(se.entry)
		if sb.Len()+len(chunk) > retrievalBudget {
			remaining := retrievalBudget - sb.Len()
			if remaining > 0 {
				sb.WriteString(cutAtRune(chunk, remaining))
			}
			break
		}
		sb.WriteString(chunk)
	}
	return sb.String(), nil
}

// scoreEntry weighs title matches over body occurrences and normalizes by
// keyword count so long queries don't inflate scores.
func scoreEntry(entry entities.KnowledgeEntry, keywords []string) float64 {
	title := strings.ToLower(entry.Title)
	body := strings.ToLower(entry.Content)

	var score float64
	for _, kw := range keywords {
		if strings.Contains(title, kw) {
			score += titleWeight
		}
		count := strings.Count(body, kw)
		if count > bodyCountCap {
			count = bodyCountCap
		}
		score += float64(count) * bodyWeight
	}
	return score / float64(len(keywords))
}

func formatEntry(e entities.KnowledgeEntry) string {
	var sb strings.Builder
	if e.Title != "" {
		sb.WriteString("## ")
		sb.WriteString(e.Title)
		if e.Section != "" {
			sb.WriteString(" / ")
			sb.WriteString(e.Section)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(e.Content)
	sb.WriteString("\n\n")
	return sb.String()
}

// cutAtRune shortens s to at most n bytes, backing up so a multi-byte rune
// is never split.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
