package loader

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"sprinklerprep/internal/models"

	"github.com/google/uuid"
)

const maxDistractors = models.OptionCount - 1

// Normalizer turns loosely structured source records into models.Question.
type Normalizer struct {
	rng   *rand.Rand
	newID func() string
}

// NewNormalizer creates a normalizer. rng drives the answer/distractor
// shuffle; pass a seeded source in tests.
func NewNormalizer(rng *rand.Rand) *Normalizer {
	return &Normalizer{
		rng:   rng,
		newID: func() string { return "gen_" + uuid.NewString() },
	}
}

// Normalize converts one raw record. It returns nil when the record is not a
// structured object or cannot be graded reliably; the reason is reported in
// the returned diagnostics either way.
func (n *Normalizer) Normalize(raw any, sourceFile string) (*models.Question, []models.Diagnostic) {
	rec, ok := raw.(map[string]any)
	if !ok {
		return nil, []models.Diagnostic{{
			Kind:       models.DiagMalformedRecord,
			SourceFile: sourceFile,
			Message:    fmt.Sprintf("record is %T, not an object", raw),
		}}
	}

	q := &models.Question{
		ID:                      n.resolveID(rec),
		Question:                firstString(rec, models.NoQuestionText, "question", "q"),
		Explanation:             firstString(rec, models.NoExplanation, "explanation", "rationale"),
		Category:                firstString(rec, models.DefaultCategory, "category"),
		Topic:                   firstString(rec, models.DefaultTopic, "topic"),
		Citation:                firstString(rec, "", "citation", "reference"),
		Tags:                    stringList(rec["tags"]),
		Difficulty:              models.ParseDifficulty(firstString(rec, string(models.Medium), "difficulty")),
		IsJurisdictionAmendment: truthy(rec["is_mn_amendment"]) || truthy(rec["mn_amendment"]),
		SourceFile:              sourceFile,
		Media:                   resolveMedia(rec),
	}

	var diags []models.Diagnostic
	report := func(kind models.DiagnosticKind, format string, args ...any) {
		diags = append(diags, models.Diagnostic{
			Kind:       kind,
			SourceFile: sourceFile,
			QuestionID: q.ID,
			Message:    fmt.Sprintf(format, args...),
		})
	}

	options, isList := rec["options"].([]any)
	distractors, hasDistractors := rec["distractors"].([]any)
	switch {
	case isList:
		q.Options = stringList(options)
		switch c := rec["correct"].(type) {
		case float64:
			if c != math.Trunc(c) || c < 0 || int(c) >= len(q.Options) {
				report(models.DiagInvalidCorrectIndex, "correct index %v outside %d options", c, len(q.Options))
				return nil, diags
			}
			q.CorrectIndex = int(c)
		case string:
			idx := indexOf(q.Options, c)
			if idx < 0 {
				report(models.DiagUnresolvedAnswer, "correct answer %q is not among the options", c)
				return nil, diags
			}
			q.CorrectIndex = idx
		}
	case truthy(rec["answer"]) && hasDistractors:
		answer := stringify(rec["answer"])
		wrong := stringList(distractors)
		if len(wrong) > maxDistractors {
			report(models.DiagDistractorsClamped, "%d distractors clamped to %d", len(wrong), maxDistractors)
			wrong = wrong[:maxDistractors]
		}
		q.Options = append([]string{answer}, wrong...)
		n.rng.Shuffle(len(q.Options), func(i, j int) {
			q.Options[i], q.Options[j] = q.Options[j], q.Options[i]
		})
		q.CorrectIndex = indexOf(q.Options, answer)
	default:
		q.Options = append([]string(nil), models.FallbackOptions...)
		q.CorrectIndex = 0
	}

	for len(q.Options) < models.OptionCount {
		q.Options = append(q.Options, models.OptionPlaceholder)
	}
	if len(q.Options) > models.OptionCount {
		if q.CorrectIndex >= models.OptionCount {
			report(models.DiagAnswerTruncated, "correct option %d would be cut from %d options", q.CorrectIndex, len(q.Options))
			return nil, diags
		}
		report(models.DiagOptionsTruncated, "%d options truncated to %d", len(q.Options), models.OptionCount)
		q.Options = q.Options[:models.OptionCount]
	}

	return q, diags
}

func (n *Normalizer) resolveID(rec map[string]any) string {
	if v, ok := rec["id"]; ok && truthy(v) {
		return stringify(v)
	}
	return n.newID()
}

func resolveMedia(rec map[string]any) *models.Media {
	if m, ok := rec["media"].(map[string]any); ok {
		url := stringify(m["url"])
		if url != "" {
			t := models.MediaType(stringify(m["type"]))
			if t != models.MediaVideo {
				t = models.MediaImage
			}
			return &models.Media{Type: t, URL: url}
		}
	}
	if img, ok := rec["image"].(string); ok && img != "" {
		return &models.Media{Type: models.MediaImage, URL: img}
	}
	if vid, ok := rec["video"].(string); ok && vid != "" {
		return &models.Media{Type: models.MediaVideo, URL: vid}
	}
	return nil
}

// firstString returns the first non-empty string among keys, or fallback.
func firstString(rec map[string]any, fallback string, keys ...string) string {
	for _, k := range keys {
		if v, ok := rec[k]; ok && truthy(v) {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return fallback
}

func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, stringify(item))
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// truthy mirrors how loosely typed sources treat presence: nil, false, 0 and
// "" all count as absent.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

func indexOf(options []string, want string) int {
	for i, o := range options {
		if o == want {
			return i
		}
	}
	// tolerate whitespace/case drift before giving up
	for i, o := range options {
		if strings.EqualFold(strings.TrimSpace(o), strings.TrimSpace(want)) {
			return i
		}
	}
	return -1
}
