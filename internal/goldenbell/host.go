package goldenbell

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"goldenbell-backend/internal/store"
)

// maxCodeAttempts bounds the collision-retry loop. With six-digit codes and
// tens of concurrent rooms the loop effectively never runs twice.
const maxCodeAttempts = 1000

const defaultPointValue = 10

// HostSession is the authority for one room: sole writer of room lifecycle,
// question lifecycle, and scores. The auto-scored set is scoped to the
// current question and cleared on every SendQuestion.
type HostSession struct {
	st     store.Store
	handle store.Handle
	logger *zap.Logger

	mu             sync.Mutex
	code           string
	status         string
	questionNumber int
	autoScored     map[string]struct{}
	closed         bool
}

// CreateRoom generates a unique six-digit room code, writes the initial room
// record, and registers deletion of the whole room on host disconnect.
func CreateRoom(ctx context.Context, st store.Store, logger *zap.Logger) (*HostSession, error) {
	return CreateRoomWithRand(ctx, st, logger, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// CreateRoomWithRand is CreateRoom with an injectable code source.
func CreateRoomWithRand(ctx context.Context, st store.Store, logger *zap.Logger, rng *rand.Rand) (*HostSession, error) {
	var code string
	for attempt := 0; ; attempt++ {
		if attempt >= maxCodeAttempts {
			return nil, fmt.Errorf("%w: could not allocate a room code", ErrConnectivity)
		}
		code = generateRoomCode(rng)
		snap, err := st.ReadOnce(ctx, RoomPath(code))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
		}
		if snap == nil {
			break
		}
		logger.Debug("room code collision, regenerating", zap.String("code", code))
	}

	room := Room{
		HostID:    uuidish(rng),
		Status:    StatusWaiting,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := st.Write(ctx, RoomPath(code), room); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}

	// The room exists only as long as the host's connection does.
	handle := st.NewHandle()
	handle.RegisterCleanup(RoomPath(code))

	logger.Info("room created", zap.String("code", code))
	return &HostSession{
		st:         st,
		handle:     handle,
		logger:     logger,
		code:       code,
		status:     StatusWaiting,
		autoScored: make(map[string]struct{}),
	}, nil
}

func generateRoomCode(rng *rand.Rand) string {
	return fmt.Sprintf("%06d", 100000+rng.Intn(900000))
}

func uuidish(rng *rand.Rand) string {
	return fmt.Sprintf("host-%08x%08x", rng.Uint32(), rng.Uint32())
}

func (h *HostSession) Code() string { return h.code }

// Handle exposes the disconnect handle so the transport layer can fire room
// teardown when the host's connection drops.
func (h *HostSession) Handle() store.Handle { return h.handle }

// StartGame transitions waiting -> active. A room with zero participants is
// accepted; the "at least one participant" gate is UI policy.
func (h *HostSession) StartGame(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.writableLocked(); err != nil {
		return err
	}
	if h.status != StatusWaiting {
		return fmt.Errorf("game already started")
	}
	if err := h.st.Write(ctx, StatusPath(h.code), StatusActive); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	h.status = StatusActive
	h.logger.Info("game started", zap.String("code", h.code))
	return nil
}

// QuestionInput is the host-composed payload for one question round.
type QuestionInput struct {
	Text               string   `json:"text"`
	QuestionType       string   `json:"questionType"`
	Choices            []string `json:"choices,omitempty"`
	CorrectAnswer      string   `json:"correctAnswer,omitempty"`
	CorrectChoiceIndex *int     `json:"correctChoiceIndex,omitempty"`
	PointValue         int      `json:"pointValue"`
}

// SendQuestion clears the answers of the previous round, then publishes the
// next question with an incremented questionNumber and phase=answering. The
// clear and the publish are separate writes; the narrow window between them
// is tolerated at human scale.
func (h *HostSession) SendQuestion(ctx context.Context, in QuestionInput) (*Question, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.writableLocked(); err != nil {
		return nil, err
	}
	if h.status != StatusActive {
		return nil, fmt.Errorf("game is not active")
	}

	q, err := buildQuestion(in, h.questionNumber+1)
	if err != nil {
		return nil, err
	}

	if err := h.st.Delete(ctx, AnswersPath(h.code)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	if err := h.st.Write(ctx, QuestionPath(h.code), q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}

	h.questionNumber = q.QuestionNumber
	h.autoScored = make(map[string]struct{})
	h.logger.Info("question sent",
		zap.String("code", h.code),
		zap.Int("number", q.QuestionNumber),
		zap.String("type", q.QuestionType),
	)
	return &q, nil
}

func buildQuestion(in QuestionInput, number int) (Question, error) {
	text := trimmed(in.Text)
	if text == "" {
		return Question{}, ErrEmptyQuestion
	}
	qt := in.QuestionType
	if qt != TypeObjective {
		qt = TypeSubjective
	}
	pv := in.PointValue
	if pv <= 0 {
		pv = defaultPointValue
	}

	q := Question{
		QuestionNumber: number,
		Text:           text,
		QuestionType:   qt,
		PointValue:     pv,
		Phase:          PhaseAnswering,
		SentAt:         time.Now().UnixMilli(),
	}

	if qt == TypeObjective {
		if len(in.Choices) == 0 {
			return Question{}, fmt.Errorf("objective question needs choices")
		}
		choices := make([]string, len(in.Choices))
		for i, c := range in.Choices {
			choices[i] = trimmed(c)
		}
		q.Choices = choices
		if in.CorrectChoiceIndex != nil {
			idx := *in.CorrectChoiceIndex
			if idx < 0 || idx >= len(choices) {
				return Question{}, ErrInvalidChoice
			}
			q.CorrectChoiceIndex = &idx
			q.CorrectAnswer = choices[idx]
		}
	} else {
		q.CorrectAnswer = trimmed(in.CorrectAnswer)
	}
	return q, nil
}

// RevealAnswer auto-scores the current answer set and moves the question to
// the reviewing phase. Scoring is idempotent per participant per question:
// re-invoking it on an unchanged answer set awards nothing new.
func (h *HostSession) RevealAnswer(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.writableLocked(); err != nil {
		return err
	}
	if h.questionNumber == 0 {
		return fmt.Errorf("no active question to reveal")
	}

	q, err := h.readQuestion(ctx)
	if err != nil {
		return err
	}
	answers, err := h.readAnswers(ctx)
	if err != nil {
		return err
	}

	for _, a := range answers {
		if _, done := h.autoScored[a.ParticipantID]; done {
			continue
		}
		correct, graded := Grade(*q, a)
		if !graded || !correct {
			continue
		}
		if err := h.addScore(ctx, a.ParticipantID, a.Nickname, q.PointValue); err != nil {
			return err
		}
		h.autoScored[a.ParticipantID] = struct{}{}
	}

	if err := h.st.Write(ctx, QuestionPath(h.code)+"/phase", PhaseReviewing); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	h.logger.Info("answers revealed",
		zap.String("code", h.code),
		zap.Int("number", h.questionNumber),
		zap.Int("autoScored", len(h.autoScored)),
	)
	return nil
}

// GiveScore is a manual, additive point grant. It is repeatable and
// unbounded above; negative deltas are rejected so a participant's total
// never decreases within a room's lifetime.
func (h *HostSession) GiveScore(ctx context.Context, participantID, nickname string, delta int) error {
	if delta <= 0 {
		return ErrInvalidScore
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.writableLocked(); err != nil {
		return err
	}
	return h.addScore(ctx, participantID, nickname, delta)
}

func (h *HostSession) addScore(ctx context.Context, participantID, nickname string, delta int) error {
	snap, err := h.st.ReadOnce(ctx, ScorePath(h.code, participantID))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	var entry ScoreEntry
	if snap != nil {
		if err := store.Decode(snap, &entry); err != nil {
			return err
		}
	}
	if nickname != "" {
		entry.Nickname = nickname
	}
	entry.Total += delta
	if err := h.st.Write(ctx, ScorePath(h.code, participantID), entry); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	return nil
}

// EndGame sets the terminal status. No question or answer write is
// meaningful afterward; clients treat ended as absorbing.
func (h *HostSession) EndGame(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.writableLocked(); err != nil {
		return err
	}
	if err := h.st.Write(ctx, StatusPath(h.code), StatusEnded); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	h.status = StatusEnded
	h.logger.Info("game ended", zap.String("code", h.code))
	return nil
}

// ResetGame is the host's graceful exit: the room subtree is deleted
// immediately, distinct from the disconnect-triggered safety net.
func (h *HostSession) ResetGame(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrSessionClosed
	}
	h.closed = true
	if err := h.st.Delete(ctx, RoomPath(h.code)); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	h.logger.Info("room deleted", zap.String("code", h.code))
	return nil
}

func (h *HostSession) writableLocked() error {
	if h.closed {
		return ErrSessionClosed
	}
	if h.status == StatusEnded {
		return ErrGameEnded
	}
	return nil
}

func (h *HostSession) readQuestion(ctx context.Context) (*Question, error) {
	snap, err := h.st.ReadOnce(ctx, QuestionPath(h.code))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	if snap == nil {
		return nil, fmt.Errorf("no active question to reveal")
	}
	var q Question
	if err := store.Decode(snap, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (h *HostSession) readAnswers(ctx context.Context) ([]Answer, error) {
	snap, err := h.st.ReadOnce(ctx, AnswersPath(h.code))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	if snap == nil {
		return nil, nil
	}
	var records map[string]Answer
	if err := store.Decode(snap, &records); err != nil {
		return nil, err
	}
	return ReduceLatest(records), nil
}
