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

func TestConnectDisplayChecksExistence(t *testing.T) {
	st := store.NewMemStore()
	defer st.Close()
	ctx := context.Background()
	logger := zap.NewNop()

	_, err := ConnectDisplay(ctx, st, logger, "abcdef")
	assert.ErrorIs(t, err, ErrInvalidRoomCode)

	_, err = ConnectDisplay(ctx, st, logger, "999999")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	// An ended room is still viewable for the final scoreboard.
	require.NoError(t, st.Write(ctx, RoomPath("123456"), Room{Status: StatusEnded}))
	d, err := ConnectDisplay(ctx, st, logger, "123456")
	require.NoError(t, err)
	d.Close()
}

func TestDisplayToleratesPartialData(t *testing.T) {
	st := store.NewMemStore()
	defer st.Close()
	ctx := context.Background()

	// Question data exists before any participant list does; the view must
	// render with zero values rather than fail.
	require.NoError(t, st.Write(ctx, RoomPath("123456")+"/currentQuestion", Question{
		QuestionNumber: 1, Text: "early", Phase: PhaseAnswering,
	}))

	d, err := ConnectDisplay(ctx, st, zap.NewNop(), "123456")
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, d.Start())

	require.Eventually(t, func() bool {
		return d.Snapshot().Question != nil
	}, time.Second, 5*time.Millisecond)

	snap := d.Snapshot()
	assert.Equal(t, StatusWaiting, snap.Status, "missing status reads as waiting")
	assert.Empty(t, snap.Participants)
	assert.Empty(t, snap.Scoreboard)
	assert.Equal(t, [2]int{0, 0}, snap.AnsweredOf)
	assert.Equal(t, "early", snap.Question.Text)
}

func TestDisplayAggregatesFullRoom(t *testing.T) {
	h, st := newHost(t)
	ctx := context.Background()
	logger := zap.NewNop()

	kim, err := JoinRoom(ctx, st, logger, h.Code(), "Kim")
	require.NoError(t, err)
	defer kim.Close()
	lee, err := JoinRoom(ctx, st, logger, h.Code(), "Lee")
	require.NoError(t, err)
	defer lee.Close()

	require.NoError(t, h.StartGame(ctx))
	_, err = h.SendQuestion(ctx, QuestionInput{Text: "수도는?", CorrectAnswer: "서울", PointValue: 10})
	require.NoError(t, err)

	kim.ApplyQuestion(Question{QuestionNumber: 1, Phase: PhaseAnswering})
	lee.ApplyQuestion(Question{QuestionNumber: 1, Phase: PhaseAnswering})
	require.NoError(t, kim.SubmitText(ctx, "서울"))
	require.NoError(t, lee.SubmitText(ctx, "부산"))

	require.NoError(t, h.RevealAnswer(ctx))

	d, err := ConnectDisplay(ctx, st, logger, h.Code())
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, d.Start())

	require.Eventually(t, func() bool {
		s := d.Snapshot()
		return len(s.Answers) == 2 && len(s.Scoreboard) == 2 && s.Question != nil &&
			s.Question.Phase == PhaseReviewing
	}, time.Second, 5*time.Millisecond)

	snap := d.Snapshot()
	assert.Equal(t, StatusActive, snap.Status)
	assert.Equal(t, [2]int{2, 2}, snap.AnsweredOf)

	// Reviewing phase: answers carry correctness marks.
	byNick := map[string]DisplayAnswer{}
	for _, a := range snap.Answers {
		byNick[a.Nickname] = a
	}
	require.NotNil(t, byNick["Kim"].Correct)
	assert.True(t, *byNick["Kim"].Correct)
	require.NotNil(t, byNick["Lee"].Correct)
	assert.False(t, *byNick["Lee"].Correct)

	// Scoreboard sorted by total descending, every participant present.
	assert.Equal(t, "Kim", snap.Scoreboard[0].Nickname)
	assert.Equal(t, 10, snap.Scoreboard[0].Total)
	assert.Equal(t, 1, snap.Scoreboard[0].Rank)
	assert.Equal(t, "Lee", snap.Scoreboard[1].Nickname)
	assert.Equal(t, 0, snap.Scoreboard[1].Total)
	assert.Equal(t, 2, snap.Scoreboard[1].Rank)
}

func TestDisplayObservesRoomGone(t *testing.T) {
	h, st := newHost(t)
	ctx := context.Background()

	d, err := ConnectDisplay(ctx, st, zap.NewNop(), h.Code())
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, d.Start())

	require.NoError(t, h.ResetGame(ctx))
	require.Eventually(t, func() bool {
		return d.Snapshot().RoomGone
	}, time.Second, 5*time.Millisecond)
}

func TestFetchDisplayState(t *testing.T) {
	h, st := newHost(t)
	ctx := context.Background()

	_, err := FetchDisplayState(ctx, st, "999999")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	state, err := FetchDisplayState(ctx, st, h.Code())
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, state.Status)
	assert.Empty(t, state.Scoreboard)
}
