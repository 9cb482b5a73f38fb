package modes

import (
	"sort"
	"strings"

	"sprinklerprep/internal/models"
)

// Filter narrows the bank before any mode draws from it. Zero values match
// everything.
type Filter struct {
	AmendmentsOnly bool
	Category       string
	Difficulty     models.Difficulty
	Search         string
}

func (f Filter) Match(q *models.Question) bool {
	if f.AmendmentsOnly && !q.IsJurisdictionAmendment {
		return false
	}
	if f.Category != "" && q.Category != f.Category {
		return false
	}
	if f.Difficulty != "" && q.Difficulty != f.Difficulty {
		return false
	}
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(strings.TrimSpace(f.Search))
	if needle == "" {
		return true
	}
	for _, field := range []string{q.Question, q.Explanation, q.Citation, q.Category, q.Topic} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	for _, tag := range q.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// Apply returns the questions matching f, keeping bank order.
func Apply(questions []models.Question, f Filter) []models.Question {
	out := make([]models.Question, 0, len(questions))
	for i := range questions {
		if f.Match(&questions[i]) {
			out = append(out, questions[i])
		}
	}
	return out
}

// Categories returns the distinct non-empty categories, sorted.
func Categories(questions []models.Question) []string {
	seen := make(map[string]struct{})
	for _, q := range questions {
		if q.Category != "" {
			seen[q.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
