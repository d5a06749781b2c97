package goldenbell

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"goldenbell-backend/internal/store"
)

// DisplayState is the read-only projector view: the same derived data the
// host sees, aggregated from whatever subscriptions have resolved so far.
type DisplayState struct {
	Code         string           `json:"code"`
	Status       string           `json:"status"`
	RoomGone     bool             `json:"roomGone"`
	Participants []Participant    `json:"participants"`
	Question     *Question        `json:"question,omitempty"`
	Answers      []DisplayAnswer  `json:"answers"`
	Scoreboard   []ScoreboardItem `json:"scoreboard"`
	AnsweredOf   [2]int           `json:"answeredOf"` // submitted, total
}

type DisplayAnswer struct {
	Answer
	Correct *bool `json:"correct,omitempty"` // only set while reviewing
}

type ScoreboardItem struct {
	ParticipantID string `json:"participantId"`
	Nickname      string `json:"nickname"`
	Total         int    `json:"total"`
	Rank          int    `json:"rank"`
}

// DisplaySession subscribes to a room for public display. It never writes
// room state and creates no participant record, so it is presence-invisible.
type DisplaySession struct {
	st     store.Store
	logger *zap.Logger
	code   string

	mu           sync.Mutex
	status       string
	roomGone     bool
	participants map[string]Participant
	question     *Question
	answers      map[string]Answer
	scores       map[string]ScoreEntry
	unsubs       []func()
}

// ConnectDisplay performs the read-once existence check and returns a
// session ready to Start. An ended room is still viewable (final scoreboard).
func ConnectDisplay(ctx context.Context, st store.Store, logger *zap.Logger, code string) (*DisplaySession, error) {
	code = trimmed(code)
	if !validJoinCode(code) {
		return nil, ErrInvalidRoomCode
	}
	snap, err := st.ReadOnce(ctx, RoomPath(code))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	if snap == nil {
		return nil, ErrRoomNotFound
	}
	return &DisplaySession{st: st, logger: logger, code: code}, nil
}

// Start wires the subscriptions. Each one may resolve in any order; absent
// data renders as unknown/zero, never as an error.
func (d *DisplaySession) Start() error {
	subs := []struct {
		path string
		fn   func(any)
	}{
		{RoomPath(d.code), d.observeRoom},
		{StatusPath(d.code), d.observeStatus},
		{ParticipantsPath(d.code), d.observeParticipants},
		{QuestionPath(d.code), d.observeQuestion},
		{AnswersPath(d.code), d.observeAnswers},
		{ScoresPath(d.code), d.observeScores},
	}
	for _, s := range subs {
		unsub, err := d.st.Subscribe(s.path, s.fn)
		if err != nil {
			d.Close()
			return fmt.Errorf("%w: %v", ErrConnectivity, err)
		}
		d.mu.Lock()
		d.unsubs = append(d.unsubs, unsub)
		d.mu.Unlock()
	}
	return nil
}

func (d *DisplaySession) observeRoom(snap any) {
	if snap != nil {
		return
	}
	d.mu.Lock()
	d.roomGone = true
	d.status = StatusEnded
	d.mu.Unlock()
}

func (d *DisplaySession) observeStatus(snap any) {
	status, ok := snap.(string)
	if !ok {
		return
	}
	d.mu.Lock()
	d.status = status
	d.mu.Unlock()
}

func (d *DisplaySession) observeParticipants(snap any) {
	var records map[string]Participant
	if snap != nil {
		if err := store.Decode(snap, &records); err != nil {
			d.logger.Warn("bad participants snapshot", zap.String("code", d.code), zap.Error(err))
			return
		}
	}
	d.mu.Lock()
	d.participants = records
	d.mu.Unlock()
}

func (d *DisplaySession) observeQuestion(snap any) {
	if snap == nil {
		d.mu.Lock()
		d.question = nil
		d.mu.Unlock()
		return
	}
	var q Question
	if err := store.Decode(snap, &q); err != nil {
		d.logger.Warn("bad question snapshot", zap.String("code", d.code), zap.Error(err))
		return
	}
	d.mu.Lock()
	d.question = &q
	d.mu.Unlock()
}

func (d *DisplaySession) observeAnswers(snap any) {
	var records map[string]Answer
	if snap != nil {
		if err := store.Decode(snap, &records); err != nil {
			d.logger.Warn("bad answers snapshot", zap.String("code", d.code), zap.Error(err))
			return
		}
	}
	d.mu.Lock()
	d.answers = records
	d.mu.Unlock()
}

func (d *DisplaySession) observeScores(snap any) {
	var records map[string]ScoreEntry
	if snap != nil {
		if err := store.Decode(snap, &records); err != nil {
			d.logger.Warn("bad scores snapshot", zap.String("code", d.code), zap.Error(err))
			return
		}
	}
	d.mu.Lock()
	d.scores = records
	d.mu.Unlock()
}

// Snapshot assembles the current view from whatever has arrived.
func (d *DisplaySession) Snapshot() DisplayState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return buildDisplayState(d.code, d.status, d.roomGone, d.participants, d.question, d.answers, d.scores)
}

func (d *DisplaySession) Close() {
	d.mu.Lock()
	unsubs := d.unsubs
	d.unsubs = nil
	d.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}

// FetchDisplayState reads the room once and builds the same view without a
// live subscription, for plain HTTP polling.
func FetchDisplayState(ctx context.Context, st store.Store, code string) (*DisplayState, error) {
	code = trimmed(code)
	if !validJoinCode(code) {
		return nil, ErrInvalidRoomCode
	}
	snap, err := st.ReadOnce(ctx, RoomPath(code))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	if snap == nil {
		return nil, ErrRoomNotFound
	}

	var room struct {
		Status          string                 `json:"status"`
		Participants    map[string]Participant `json:"participants"`
		CurrentQuestion *Question              `json:"currentQuestion"`
		Answers         map[string]Answer      `json:"answers"`
		Scores          map[string]ScoreEntry  `json:"scores"`
	}
	if err := store.Decode(snap, &room); err != nil {
		return nil, err
	}
	state := buildDisplayState(code, room.Status, false, room.Participants, room.CurrentQuestion, room.Answers, room.Scores)
	return &state, nil
}

func buildDisplayState(code, status string, gone bool, participants map[string]Participant, question *Question, answers map[string]Answer, scores map[string]ScoreEntry) DisplayState {
	state := DisplayState{
		Code:         code,
		Status:       status,
		RoomGone:     gone,
		Participants: make([]Participant, 0, len(participants)),
		Answers:      []DisplayAnswer{},
		Scoreboard:   []ScoreboardItem{},
	}
	if state.Status == "" {
		state.Status = StatusWaiting
	}

	for id, p := range participants {
		p.ID = id
		state.Participants = append(state.Participants, p)
	}
	sort.Slice(state.Participants, func(i, j int) bool {
		if state.Participants[i].JoinedAt != state.Participants[j].JoinedAt {
			return state.Participants[i].JoinedAt < state.Participants[j].JoinedAt
		}
		return state.Participants[i].ID < state.Participants[j].ID
	})

	if question != nil {
		q := *question
		state.Question = &q
	}

	reduced := ReduceLatest(answers)
	for _, a := range reduced {
		da := DisplayAnswer{Answer: a}
		if question != nil && question.Phase == PhaseReviewing {
			if correct, graded := Grade(*question, a); graded {
				c := correct
				da.Correct = &c
			}
		}
		state.Answers = append(state.Answers, da)
	}
	state.AnsweredOf = [2]int{len(reduced), len(participants)}

	// Every present participant appears on the board, scored or not. Score
	// entries for departed participants are kept too (stale references are
	// tolerated; the whole room is deleted together).
	for _, p := range state.Participants {
		item := ScoreboardItem{ParticipantID: p.ID, Nickname: p.Nickname}
		if s, ok := scores[p.ID]; ok {
			item.Total = s.Total
		}
		state.Scoreboard = append(state.Scoreboard, item)
	}
	for id, s := range scores {
		if _, present := participants[id]; present {
			continue
		}
		state.Scoreboard = append(state.Scoreboard, ScoreboardItem{
			ParticipantID: id,
			Nickname:      s.Nickname,
			Total:         s.Total,
		})
	}
	sort.Slice(state.Scoreboard, func(i, j int) bool {
		if state.Scoreboard[i].Total != state.Scoreboard[j].Total {
			return state.Scoreboard[i].Total > state.Scoreboard[j].Total
		}
		return state.Scoreboard[i].ParticipantID < state.Scoreboard[j].ParticipantID
	})
	for i := range state.Scoreboard {
		state.Scoreboard[i].Rank = i + 1
	}
	return state
}
