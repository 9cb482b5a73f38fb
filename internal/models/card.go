package models

// QuestionCard is a question as shown to a player. The answer key and the
// explanation are only filled in once the question is revealed.
type QuestionCard struct {
	ID           string   `json:"id"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	Category     string   `json:"category"`
	Topic        string   `json:"topic"`
	Citation     string   `json:"citation,omitempty"`
	Difficulty   string   `json:"difficulty"`
	Media        *Media   `json:"media,omitempty"`
	CorrectIndex *int     `json:"correct,omitempty"`
	Explanation  string   `json:"explanation,omitempty"`
}

func NewQuestionCard(q *Question, reveal bool) QuestionCard {
	c := QuestionCard{
		ID:         q.ID,
		Question:   q.Question,
		Options:    q.Options,
		Category:   q.Category,
		Topic:      q.Topic,
		Citation:   q.Citation,
		Difficulty: string(q.Difficulty),
		Media:      q.Media,
	}
	if reveal {
		correct := q.CorrectIndex
		c.CorrectIndex = &correct
		c.Explanation = q.Explanation
	}
	return c
}
