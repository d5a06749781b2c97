package goldenbell

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"goldenbell-backend/internal/store"
)

// ParticipantSession joins a room, observes its state, and submits at most
// one effective answer per question. The session is stateless with respect
// to question identity: any observed questionNumber change discards local
// answer state unconditionally.
type ParticipantSession struct {
	st     store.Store
	handle store.Handle
	logger *zap.Logger

	code     string
	id       string
	nickname string

	mu             sync.Mutex
	status         string
	question       *Question
	prevQuestionNo int
	hasSubmitted   bool
	selectedChoice *int
	answerText     string
	roomGone       bool
	unsubs         []func()
	closed         bool
}

func validJoinCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// JoinRoom validates input, confirms the room exists and has not ended,
// creates the participant record, and registers its deletion on disconnect.
// The three recoverable failure kinds are surfaced distinctly.
func JoinRoom(ctx context.Context, st store.Store, logger *zap.Logger, code, nickname string) (*ParticipantSession, error) {
	code = trimmed(code)
	nickname = trimmed(nickname)
	if !validJoinCode(code) {
		return nil, ErrInvalidRoomCode
	}
	if nickname == "" {
		return nil, ErrEmptyNickname
	}
	if utf8.RuneCountInString(nickname) > MaxNicknameLen {
		return nil, ErrNicknameTooLong
	}

	snap, err := st.ReadOnce(ctx, RoomPath(code))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	if snap == nil {
		return nil, ErrRoomNotFound
	}
	var room Room
	if err := store.Decode(snap, &room); err != nil {
		return nil, err
	}
	if room.Status == StatusEnded {
		return nil, ErrRoomEnded
	}

	id := st.PushKey(ParticipantsPath(code))
	record := Participant{Nickname: nickname, JoinedAt: time.Now().UnixMilli()}
	if err := st.Write(ctx, ParticipantPath(code, id), record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}

	handle := st.NewHandle()
	handle.RegisterCleanup(ParticipantPath(code, id))

	logger.Info("participant joined",
		zap.String("code", code),
		zap.String("participant", id),
		zap.String("nickname", nickname),
	)
	return &ParticipantSession{
		st:       st,
		handle:   handle,
		logger:   logger,
		code:     code,
		id:       id,
		nickname: nickname,
		status:   room.Status,
	}, nil
}

func (p *ParticipantSession) ID() string           { return p.id }
func (p *ParticipantSession) Code() string         { return p.code }
func (p *ParticipantSession) Nickname() string     { return p.nickname }
func (p *ParticipantSession) Handle() store.Handle { return p.handle }

// Start wires the session's store subscriptions. Close releases them.
func (p *ParticipantSession) Start() error {
	subs := []struct {
		path string
		fn   func(any)
	}{
		{RoomPath(p.code), p.observeRoom},
		{StatusPath(p.code), p.observeStatus},
		{QuestionPath(p.code), p.observeQuestion},
	}
	for _, s := range subs {
		unsub, err := p.st.Subscribe(s.path, s.fn)
		if err != nil {
			p.Close()
			return fmt.Errorf("%w: %v", ErrConnectivity, err)
		}
		p.mu.Lock()
		p.unsubs = append(p.unsubs, unsub)
		p.mu.Unlock()
	}
	return nil
}

func (p *ParticipantSession) observeRoom(snap any) {
	if snap != nil {
		return
	}
	p.mu.Lock()
	p.roomGone = true
	p.status = StatusEnded
	p.mu.Unlock()
	p.logger.Info("room gone", zap.String("code", p.code), zap.String("participant", p.id))
}

func (p *ParticipantSession) observeStatus(snap any) {
	status, ok := snap.(string)
	if !ok {
		return
	}
	p.mu.Lock()
	p.status = status
	p.mu.Unlock()
}

func (p *ParticipantSession) observeQuestion(snap any) {
	if snap == nil {
		return
	}
	var q Question
	if err := store.Decode(snap, &q); err != nil {
		p.logger.Warn("bad question snapshot", zap.String("code", p.code), zap.Error(err))
		return
	}
	p.ApplyQuestion(q)
}

// ApplyQuestion is the resynchronization contract: a questionNumber change
// resets submitted/selected state unconditionally, even if nothing else in
// the payload differs. No other signal is used.
func (p *ParticipantSession) ApplyQuestion(q Question) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if q.QuestionNumber != p.prevQuestionNo {
		p.prevQuestionNo = q.QuestionNumber
		p.hasSubmitted = false
		p.selectedChoice = nil
		p.answerText = ""
	}
	p.question = &q
}

// SubmitText appends a subjective answer record. Further submissions are
// blocked until Reopen.
func (p *ParticipantSession) SubmitText(ctx context.Context, text string) error {
	text = trimmed(text)
	if text == "" {
		return ErrEmptyAnswer
	}
	return p.submit(ctx, text, nil)
}

// SubmitChoice appends an objective answer record for the selected choice.
func (p *ParticipantSession) SubmitChoice(ctx context.Context, idx int) error {
	p.mu.Lock()
	q := p.question
	p.mu.Unlock()
	if q == nil || idx < 0 || (len(q.Choices) > 0 && idx >= len(q.Choices)) {
		return ErrInvalidChoice
	}
	text := fmt.Sprintf("%d", idx+1)
	if idx < len(q.Choices) {
		text = q.Choices[idx]
	}
	return p.submit(ctx, text, &idx)
}

func (p *ParticipantSession) submit(ctx context.Context, text string, choice *int) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrSessionClosed
	}
	if p.roomGone || p.status == StatusEnded {
		p.mu.Unlock()
		return ErrGameEnded
	}
	if p.hasSubmitted {
		p.mu.Unlock()
		return ErrAlreadySubmitted
	}
	p.mu.Unlock()

	record := Answer{
		ParticipantID: p.id,
		Nickname:      p.nickname,
		Text:          text,
		ChoiceIndex:   choice,
		SubmittedAt:   time.Now().UnixMilli(),
	}
	key := p.st.PushKey(AnswersPath(p.code))
	if err := p.st.Write(ctx, AnswersPath(p.code)+"/"+key, record); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}

	p.mu.Lock()
	p.hasSubmitted = true
	p.selectedChoice = choice
	p.answerText = text
	p.mu.Unlock()
	return nil
}

// Reopen lets the participant edit: the guard is lifted and the next submit
// appends a fresh record, superseding the old one by timestamp.
func (p *ParticipantSession) Reopen() {
	p.mu.Lock()
	p.hasSubmitted = false
	p.selectedChoice = nil
	p.mu.Unlock()
}

// State is the participant's current view, for rendering.
type ParticipantState struct {
	Code           string    `json:"code"`
	ParticipantID  string    `json:"participantId"`
	Nickname       string    `json:"nickname"`
	Status         string    `json:"status"`
	RoomGone       bool      `json:"roomGone"`
	Question       *Question `json:"question,omitempty"`
	HasSubmitted   bool      `json:"hasSubmitted"`
	SelectedChoice *int      `json:"selectedChoice,omitempty"`
	AnswerText     string    `json:"answerText,omitempty"`
}

func (p *ParticipantSession) State() ParticipantState {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := ParticipantState{
		Code:           p.code,
		ParticipantID:  p.id,
		Nickname:       p.nickname,
		Status:         p.status,
		RoomGone:       p.roomGone,
		HasSubmitted:   p.hasSubmitted,
		SelectedChoice: p.selectedChoice,
		AnswerText:     p.answerText,
	}
	if p.question != nil {
		q := *p.question
		s.Question = &q
	}
	return s
}

// Leave removes the participant's record and releases subscriptions. The
// same cleanup runs when the connection drops ungracefully.
func (p *ParticipantSession) Leave() {
	p.Close()
	p.handle.Disconnect()
}

// Close releases subscriptions without touching the store.
func (p *ParticipantSession) Close() {
	p.mu.Lock()
	unsubs := p.unsubs
	p.unsubs = nil
	p.closed = true
	p.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}
