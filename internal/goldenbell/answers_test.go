package goldenbell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Seoul  ", "seoul"},
		{"SEOUL", "seoul"},
		{"서 울", "서울"},
		{"a  b\tc", "abc"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func intp(i int) *int { return &i }

func TestReduceLatestPicksMaxSubmittedAt(t *testing.T) {
	// Delivery order must not matter; only submittedAt (and key for ties).
	records := map[string]Answer{
		"k3": {ParticipantID: "p1", Nickname: "Kim", Text: "third", SubmittedAt: 300},
		"k1": {ParticipantID: "p1", Nickname: "Kim", Text: "first", SubmittedAt: 100},
		"k2": {ParticipantID: "p1", Nickname: "Kim", Text: "second", SubmittedAt: 200},
		"k4": {ParticipantID: "p2", Nickname: "Lee", Text: "only", SubmittedAt: 150},
	}

	got := ReduceLatest(records)
	assert.Len(t, got, 2)
	assert.Equal(t, "Lee", got[0].Nickname) // 150 < 300
	assert.Equal(t, "only", got[0].Text)
	assert.Equal(t, "Kim", got[1].Nickname)
	assert.Equal(t, "third", got[1].Text)
}

func TestReduceLatestTieBreaksByKey(t *testing.T) {
	records := map[string]Answer{
		"a1": {ParticipantID: "p1", Text: "older key", SubmittedAt: 100},
		"a2": {ParticipantID: "p1", Text: "newer key", SubmittedAt: 100},
	}
	got := ReduceLatest(records)
	assert.Len(t, got, 1)
	assert.Equal(t, "newer key", got[0].Text)
}

func TestReduceLatestEmpty(t *testing.T) {
	assert.Empty(t, ReduceLatest(nil))
	assert.Empty(t, ReduceLatest(map[string]Answer{}))
}

func TestGradeSubjective(t *testing.T) {
	q := Question{QuestionType: TypeSubjective, CorrectAnswer: "서울"}

	correct, graded := Grade(q, Answer{Text: "서울"})
	assert.True(t, graded)
	assert.True(t, correct)

	correct, graded = Grade(q, Answer{Text: " 서 울 "})
	assert.True(t, graded)
	assert.True(t, correct, "whitespace differences must not matter")

	// Script differences do matter: a transliteration is not a match.
	correct, graded = Grade(q, Answer{Text: " Seoul "})
	assert.True(t, graded)
	assert.False(t, correct)
}

func TestGradeSubjectiveWithoutKeyIsManual(t *testing.T) {
	q := Question{QuestionType: TypeSubjective}
	_, graded := Grade(q, Answer{Text: "anything"})
	assert.False(t, graded)
}

func TestGradeObjective(t *testing.T) {
	q := Question{
		QuestionType:       TypeObjective,
		Choices:            []string{"a", "b", "c", "d"},
		CorrectChoiceIndex: intp(2),
		CorrectAnswer:      "c",
	}

	correct, graded := Grade(q, Answer{Text: "c", ChoiceIndex: intp(2)})
	assert.True(t, graded)
	assert.True(t, correct)

	correct, graded = Grade(q, Answer{Text: "a", ChoiceIndex: intp(0)})
	assert.True(t, graded)
	assert.False(t, correct)

	_, graded = Grade(q, Answer{Text: "c"})
	assert.False(t, graded, "an answer without a choice index is not auto-gradable")
}

func TestGradeObjectiveWithoutKeyIsManual(t *testing.T) {
	q := Question{QuestionType: TypeObjective, Choices: []string{"a", "b"}}
	_, graded := Grade(q, Answer{ChoiceIndex: intp(0)})
	assert.False(t, graded)
}
