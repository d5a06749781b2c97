// Package goldenbell implements the realtime quiz game: the room schema,
// the host controller, the participant client, and the display view. All
// coordination goes through the shared state store; the host is the only
// writer of room-level and question state by convention.
package goldenbell

import "fmt"

const (
	StatusWaiting = "waiting"
	StatusActive  = "active"
	StatusEnded   = "ended"

	PhaseAnswering = "answering"
	PhaseReviewing = "reviewing"

	TypeSubjective = "subjective"
	TypeObjective  = "objective"
)

// MaxNicknameLen is the client-enforced nickname length in runes.
const MaxNicknameLen = 10

type Room struct {
	HostID    string `json:"hostId"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"createdAt"`
}

type Participant struct {
	ID       string `json:"id,omitempty"`
	Nickname string `json:"nickname"`
	JoinedAt int64  `json:"joinedAt"`
}

type Question struct {
	QuestionNumber     int      `json:"questionNumber"`
	Text               string   `json:"text"`
	QuestionType       string   `json:"questionType"`
	Choices            []string `json:"choices,omitempty"`
	CorrectAnswer      string   `json:"correctAnswer,omitempty"`
	CorrectChoiceIndex *int     `json:"correctChoiceIndex,omitempty"`
	PointValue         int      `json:"pointValue"`
	Phase              string   `json:"phase"`
	SentAt             int64    `json:"sentAt"`
}

// Answer records are append-only: an edit is a new record, and readers
// reduce to the latest submittedAt per participant.
type Answer struct {
	ID            string `json:"id,omitempty"`
	ParticipantID string `json:"participantId"`
	Nickname      string `json:"nickname"`
	Text          string `json:"text"`
	ChoiceIndex   *int   `json:"choiceIndex,omitempty"`
	SubmittedAt   int64  `json:"submittedAt"`
}

type ScoreEntry struct {
	Nickname string `json:"nickname"`
	Total    int    `json:"total"`
}

func RoomPath(code string) string         { return fmt.Sprintf("rooms/%s", code) }
func StatusPath(code string) string       { return fmt.Sprintf("rooms/%s/status", code) }
func ParticipantsPath(code string) string { return fmt.Sprintf("rooms/%s/participants", code) }
func ParticipantPath(code, id string) string {
	return fmt.Sprintf("rooms/%s/participants/%s", code, id)
}
func QuestionPath(code string) string { return fmt.Sprintf("rooms/%s/currentQuestion", code) }
func AnswersPath(code string) string  { return fmt.Sprintf("rooms/%s/answers", code) }
func ScoresPath(code string) string   { return fmt.Sprintf("rooms/%s/scores", code) }
func ScorePath(code, participantID string) string {
	return fmt.Sprintf("rooms/%s/scores/%s", code, participantID)
}
