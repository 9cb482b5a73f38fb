package modes

import (
	"testing"

	"sprinklerprep/internal/models"

	"github.com/stretchr/testify/assert"
)

func bank() []models.Question {
	return []models.Question{
		{ID: "a", Question: "Minimum pipe size?", Category: "NFPA 13", Topic: "Pipe", Difficulty: models.Easy, Citation: "NFPA 13 28.5", Options: []string{"1", "2", "3", "4"}},
		{ID: "b", Question: "Inspection interval?", Category: "NFPA 25", Topic: "ITM", Difficulty: models.Medium, Explanation: "Quarterly gauges", Options: []string{"1", "2", "3", "4"}, CorrectIndex: 1},
		{ID: "c", Question: "Who licenses fitters?", Category: "MN Rules", Topic: "Licensing", Difficulty: models.Hard, IsJurisdictionAmendment: true, Tags: []string{"statute"}, Options: []string{"1", "2", "3", "4"}, CorrectIndex: 2},
		{ID: "d", Question: "Hanger spacing?", Category: "NFPA 13", Topic: "Hangers", Difficulty: models.Medium, Options: []string{"1", "2", "3", "4"}, CorrectIndex: 3},
	}
}

func idsOf(qs []models.Question) []string {
	return ids(qs)
}

func TestFilter_Match(t *testing.T) {
	cases := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty matches all", Filter{}, []string{"a", "b", "c", "d"}},
		{"amendments only", Filter{AmendmentsOnly: true}, []string{"c"}},
		{"category", Filter{Category: "NFPA 13"}, []string{"a", "d"}},
		{"difficulty", Filter{Difficulty: models.Medium}, []string{"b", "d"}},
		{"search question text", Filter{Search: "PIPE"}, []string{"a"}},
		{"search explanation", Filter{Search: "quarterly"}, []string{"b"}},
		{"search citation", Filter{Search: "28.5"}, []string{"a"}},
		{"search tags", Filter{Search: "statute"}, []string{"c"}},
		{"search topic", Filter{Search: "hangers"}, []string{"d"}},
		{"blank search", Filter{Search: "   "}, []string{"a", "b", "c", "d"}},
		{"combined", Filter{Category: "NFPA 13", Difficulty: models.Medium}, []string{"d"}},
		{"no match", Filter{Search: "zzz"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, idsOf(Apply(bank(), tc.filter)))
		})
	}
}

func TestCategories(t *testing.T) {
	qs := append(bank(), models.Question{ID: "e"})
	assert.Equal(t, []string{"MN Rules", "NFPA 13", "NFPA 25"}, Categories(qs))
	assert.Empty(t, Categories(nil))
}
