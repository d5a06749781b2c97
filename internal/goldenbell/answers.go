package goldenbell

import (
	"sort"
	"strings"
)

func trimmed(s string) string { return strings.TrimSpace(s) }

// Normalize prepares a subjective answer for comparison: trim, lowercase,
// and strip all internal whitespace. Answers differing by script or
// punctuation intentionally do not match.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), "")
}

// ReduceLatest collapses the raw answer records to the one effective answer
// per participant: the record with the greatest submittedAt, ties broken by
// record key (keys sort by creation order). The result is ordered by
// submission time, then key, regardless of store-delivery order.
func ReduceLatest(records map[string]Answer) []Answer {
	latest := make(map[string]Answer, len(records))
	for id, a := range records {
		a.ID = id
		cur, ok := latest[a.ParticipantID]
		if !ok || a.SubmittedAt > cur.SubmittedAt ||
			(a.SubmittedAt == cur.SubmittedAt && a.ID > cur.ID) {
			latest[a.ParticipantID] = a
		}
	}

	out := make([]Answer, 0, len(latest))
	for _, a := range latest {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt != out[j].SubmittedAt {
			return out[i].SubmittedAt < out[j].SubmittedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Grade reports whether an answer is correct for the question. graded is
// false when the question carries no grading key or the answer does not
// apply to the question shape; such answers are left for manual scoring.
func Grade(q Question, a Answer) (correct, graded bool) {
	if q.QuestionType == TypeObjective {
		if q.CorrectChoiceIndex == nil || a.ChoiceIndex == nil {
			return false, false
		}
		return *a.ChoiceIndex == *q.CorrectChoiceIndex, true
	}
	if q.CorrectAnswer == "" {
		return false, false
	}
	return Normalize(a.Text) == Normalize(q.CorrectAnswer), true
}
