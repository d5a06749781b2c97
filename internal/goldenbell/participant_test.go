package goldenbell

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goldenbell-backend/internal/store"
)

func TestJoinRoomValidation(t *testing.T) {
	st := store.NewMemStore()
	defer st.Close()
	ctx := context.Background()
	logger := zap.NewNop()

	_, err := JoinRoom(ctx, st, logger, "12345", "Kim")
	assert.ErrorIs(t, err, ErrInvalidRoomCode)

	_, err = JoinRoom(ctx, st, logger, "12345a", "Kim")
	assert.ErrorIs(t, err, ErrInvalidRoomCode)

	_, err = JoinRoom(ctx, st, logger, "123456", "   ")
	assert.ErrorIs(t, err, ErrEmptyNickname)

	_, err = JoinRoom(ctx, st, logger, "123456", "열글자가넘는닉네임입니다")
	assert.ErrorIs(t, err, ErrNicknameTooLong)
}

func TestJoinRoomDistinguishesFailures(t *testing.T) {
	st := store.NewMemStore()
	defer st.Close()
	ctx := context.Background()
	logger := zap.NewNop()

	_, err := JoinRoom(ctx, st, logger, "999999", "Kim")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	require.NoError(t, st.Write(ctx, RoomPath("123456"), Room{Status: StatusEnded}))
	_, err = JoinRoom(ctx, st, logger, "123456", "Kim")
	assert.ErrorIs(t, err, ErrRoomEnded)

	closed := store.NewMemStore()
	closed.Close()
	_, err = JoinRoom(ctx, closed, logger, "123456", "Kim")
	assert.ErrorIs(t, err, ErrConnectivity)
}

func joinTestRoom(t *testing.T) (*HostSession, *ParticipantSession, *store.MemStore) {
	t.Helper()
	h, st := newHost(t)
	p, err := JoinRoom(context.Background(), st, zap.NewNop(), h.Code(), "Kim")
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return h, p, st
}

func TestJoinRoomCreatesRecordAndCleanupHook(t *testing.T) {
	h, p, st := joinTestRoom(t)
	ctx := context.Background()

	snap, err := st.ReadOnce(ctx, ParticipantPath(h.Code(), p.ID()))
	require.NoError(t, err)
	var record Participant
	require.NoError(t, store.Decode(snap, &record))
	assert.Equal(t, "Kim", record.Nickname)
	assert.NotZero(t, record.JoinedAt)

	p.Handle().Disconnect()
	snap, err = st.ReadOnce(ctx, ParticipantPath(h.Code(), p.ID()))
	require.NoError(t, err)
	assert.Nil(t, snap, "participant record is removed on disconnect")
}

func TestSubmitAppendsRecordsAndEditSupersedes(t *testing.T) {
	h, p, st := joinTestRoom(t)
	ctx := context.Background()
	require.NoError(t, h.StartGame(ctx))
	_, err := h.SendQuestion(ctx, QuestionInput{Text: "q"})
	require.NoError(t, err)
	p.ApplyQuestion(Question{QuestionNumber: 1, Phase: PhaseAnswering})

	require.NoError(t, p.SubmitText(ctx, "first"))
	assert.ErrorIs(t, p.SubmitText(ctx, "again"), ErrAlreadySubmitted)

	p.Reopen()
	require.NoError(t, p.SubmitText(ctx, "second"))

	snap, err := st.ReadOnce(ctx, AnswersPath(h.Code()))
	require.NoError(t, err)
	var records map[string]Answer
	require.NoError(t, store.Decode(snap, &records))
	assert.Len(t, records, 2, "edits append, they never mutate")

	reduced := ReduceLatest(records)
	require.Len(t, reduced, 1)
	assert.Equal(t, "second", reduced[0].Text)
	assert.Equal(t, p.ID(), reduced[0].ParticipantID)
	assert.Equal(t, "Kim", reduced[0].Nickname, "nickname is denormalized at submission time")
}

func TestSubmitChoice(t *testing.T) {
	h, p, st := joinTestRoom(t)
	ctx := context.Background()
	require.NoError(t, h.StartGame(ctx))

	p.ApplyQuestion(Question{
		QuestionNumber: 1,
		QuestionType:   TypeObjective,
		Choices:        []string{"one", "two", "three", "four"},
		Phase:          PhaseAnswering,
	})

	assert.ErrorIs(t, p.SubmitChoice(ctx, 9), ErrInvalidChoice)
	require.NoError(t, p.SubmitChoice(ctx, 2))

	snap, err := st.ReadOnce(ctx, AnswersPath(h.Code()))
	require.NoError(t, err)
	var records map[string]Answer
	require.NoError(t, store.Decode(snap, &records))
	reduced := ReduceLatest(records)
	require.Len(t, reduced, 1)
	require.NotNil(t, reduced[0].ChoiceIndex)
	assert.Equal(t, 2, *reduced[0].ChoiceIndex)
	assert.Equal(t, "three", reduced[0].Text)
}

func TestQuestionNumberChangeResetsLocalState(t *testing.T) {
	_, p, _ := joinTestRoom(t)
	ctx := context.Background()

	p.ApplyQuestion(Question{QuestionNumber: 1, QuestionType: TypeObjective, Choices: []string{"a", "b"}, Phase: PhaseAnswering})
	require.NoError(t, p.SubmitChoice(ctx, 1))

	state := p.State()
	require.True(t, state.HasSubmitted)
	require.NotNil(t, state.SelectedChoice)

	// Identical payload except the number: the reset is unconditional.
	p.ApplyQuestion(Question{QuestionNumber: 2, QuestionType: TypeObjective, Choices: []string{"a", "b"}, Phase: PhaseAnswering})

	state = p.State()
	assert.False(t, state.HasSubmitted)
	assert.Nil(t, state.SelectedChoice)
	assert.Empty(t, state.AnswerText)
}

func TestSameQuestionNumberKeepsLocalState(t *testing.T) {
	_, p, _ := joinTestRoom(t)
	ctx := context.Background()

	p.ApplyQuestion(Question{QuestionNumber: 1, Phase: PhaseAnswering})
	require.NoError(t, p.SubmitText(ctx, "mine"))

	// Phase flip without a number change must not clear the submission.
	p.ApplyQuestion(Question{QuestionNumber: 1, Phase: PhaseReviewing, CorrectAnswer: "mine"})

	state := p.State()
	assert.True(t, state.HasSubmitted)
	assert.Equal(t, "mine", state.AnswerText)
	assert.Equal(t, PhaseReviewing, state.Question.Phase)
}

func TestParticipantObservesQuestionThroughStore(t *testing.T) {
	h, p, _ := joinTestRoom(t)
	ctx := context.Background()
	require.NoError(t, h.StartGame(ctx))
	require.NoError(t, p.Start())

	_, err := h.SendQuestion(ctx, QuestionInput{Text: "from the store?"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s := p.State()
		return s.Question != nil && s.Question.Text == "from the store?"
	}, time.Second, 5*time.Millisecond)
}

func TestParticipantObservesRoomGone(t *testing.T) {
	h, p, _ := joinTestRoom(t)
	ctx := context.Background()
	require.NoError(t, p.Start())

	// Host disconnect tears the room down; every subscriber sees it vanish.
	h.Handle().Disconnect()

	require.Eventually(t, func() bool {
		s := p.State()
		return s.RoomGone && s.Status == StatusEnded
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, p.SubmitText(ctx, "late"), ErrGameEnded)
}

func TestSubmitAfterEndRejected(t *testing.T) {
	h, p, _ := joinTestRoom(t)
	ctx := context.Background()
	require.NoError(t, h.StartGame(ctx))
	require.NoError(t, p.Start())
	require.NoError(t, h.EndGame(ctx))

	require.Eventually(t, func() bool {
		return p.State().Status == StatusEnded
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, p.SubmitText(ctx, "late"), ErrGameEnded)
}

func TestLeaveRemovesRecord(t *testing.T) {
	h, p, st := joinTestRoom(t)
	ctx := context.Background()

	p.Leave()
	snap, err := st.ReadOnce(ctx, ParticipantPath(h.Code(), p.ID()))
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.ErrorIs(t, p.SubmitText(ctx, "x"), ErrSessionClosed)
}
