package models

// DiagnosticKind classifies a data-quality problem found while loading.
type DiagnosticKind string

const (
	DiagSourceFailed        DiagnosticKind = "source_failed"
	DiagNoRecords           DiagnosticKind = "no_records"
	DiagMalformedRecord     DiagnosticKind = "malformed_record"
	DiagUnresolvedAnswer    DiagnosticKind = "unresolved_answer"
	DiagInvalidCorrectIndex DiagnosticKind = "invalid_correct_index"
	DiagAnswerTruncated     DiagnosticKind = "answer_truncated"
	DiagOptionsTruncated    DiagnosticKind = "options_truncated"
	DiagDistractorsClamped  DiagnosticKind = "distractors_clamped"
	DiagDuplicateID         DiagnosticKind = "duplicate_id"
)

// Rejects reports whether a diagnostic of this kind drops the record.
func (k DiagnosticKind) Rejects() bool {
	switch k {
	case DiagMalformedRecord, DiagUnresolvedAnswer, DiagInvalidCorrectIndex, DiagAnswerTruncated:
		return true
	}
	return false
}

type Diagnostic struct {
	Kind       DiagnosticKind `json:"kind"`
	SourceFile string         `json:"sourceFile"`
	QuestionID string         `json:"questionId,omitempty"`
	Message    string         `json:"message"`
}
