// Package guessleader implements the photo reveal game ("Guess the
// Leader"): the host steps a zoom circle through twelve sizes per round,
// and passive displays mirror the state through the shared store. Rooms
// live under their own namespace, rooms/guessLeader/{code}.
package guessleader

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"goldenbell-backend/internal/store"
)

const (
	StatusSetting = "setting"
	StatusPlaying = "playing"
	StatusEnded   = "ended"
)

// TotalSteps is the number of zoom steps per round; currentStep runs 0..11.
const TotalSteps = 12

const (
	// revealDelay separates reaching the last step from the full reveal.
	revealDelay = 800 * time.Millisecond
	// autoAdvanceDelay keeps the revealed photo up before the next round.
	autoAdvanceDelay = 2 * time.Second
)

var (
	ErrRoomNotFound  = errors.New("room does not exist")
	ErrConnectivity  = errors.New("cannot reach the game store, check your connection")
	ErrNoImages      = errors.New("at least one image is required")
	ErrNotSetting    = errors.New("room is not in the setting phase")
	ErrNotPlaying    = errors.New("room is not playing")
	ErrGameEnded     = errors.New("game has ended")
	ErrSessionClosed = errors.New("session closed")
)

// Image is one round's photo with the host-selected reveal focal point, in
// percentage coordinates.
type Image struct {
	URL     string  `json:"url"`
	CenterX float64 `json:"centerX"`
	CenterY float64 `json:"centerY"`
}

type Room struct {
	Status       string  `json:"status"`
	Images       []Image `json:"images,omitempty"`
	CurrentRound int     `json:"currentRound"`
	CurrentStep  int     `json:"currentStep"`
	ShowComplete bool    `json:"showComplete"`
	TotalRounds  int     `json:"totalRounds"`
	CreatedAt    int64   `json:"createdAt"`
}

func RoomPath(code string) string { return fmt.Sprintf("rooms/guessLeader/%s", code) }

const maxCodeAttempts = 1000

// HostSession drives one reveal-game room. All timing (auto reveal, auto
// next round) runs through a single generation-keyed timer: every state
// change bumps the generation, so a stale timer firing is a no-op.
type HostSession struct {
	st     store.Store
	handle store.Handle
	logger *zap.Logger
	code   string

	mu     sync.Mutex
	room   Room
	timer  *time.Timer
	gen    int
	closed bool
}

func CreateRoom(ctx context.Context, st store.Store, logger *zap.Logger) (*HostSession, error) {
	return CreateRoomWithRand(ctx, st, logger, rand.New(rand.NewSource(time.Now().UnixNano())))
}

func CreateRoomWithRand(ctx context.Context, st store.Store, logger *zap.Logger, rng *rand.Rand) (*HostSession, error) {
	var code string
	for attempt := 0; ; attempt++ {
		if attempt >= maxCodeAttempts {
			return nil, fmt.Errorf("%w: could not allocate a room code", ErrConnectivity)
		}
		code = fmt.Sprintf("%06d", 100000+rng.Intn(900000))
		snap, err := st.ReadOnce(ctx, RoomPath(code))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
		}
		if snap == nil {
			break
		}
	}

	room := Room{Status: StatusSetting, CreatedAt: time.Now().UnixMilli()}
	if err := st.Write(ctx, RoomPath(code), room); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}

	handle := st.NewHandle()
	handle.RegisterCleanup(RoomPath(code))

	logger.Info("reveal room created", zap.String("code", code))
	return &HostSession{st: st, handle: handle, logger: logger, code: code, room: room}, nil
}

func (h *HostSession) Code() string         { return h.code }
func (h *HostSession) Handle() store.Handle { return h.handle }

// SetImages replaces the round list during setup.
func (h *HostSession) SetImages(ctx context.Context, images []Image) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.writableLocked(); err != nil {
		return err
	}
	if h.room.Status != StatusSetting {
		return ErrNotSetting
	}
	h.room.Images = images
	h.room.TotalRounds = len(images)
	return h.writeLocked(ctx)
}

// SetFocus records the reveal focal point for one image, in percent.
func (h *HostSession) SetFocus(ctx context.Context, index int, centerX, centerY float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.writableLocked(); err != nil {
		return err
	}
	if h.room.Status != StatusSetting {
		return ErrNotSetting
	}
	if index < 0 || index >= len(h.room.Images) {
		return fmt.Errorf("image index %d out of range", index)
	}
	h.room.Images[index].CenterX = centerX
	h.room.Images[index].CenterY = centerY
	return h.writeLocked(ctx)
}

// Start transitions setting -> playing at round 0, step 0.
func (h *HostSession) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.writableLocked(); err != nil {
		return err
	}
	if h.room.Status != StatusSetting {
		return ErrNotSetting
	}
	if len(h.room.Images) == 0 {
		return ErrNoImages
	}
	h.room.Status = StatusPlaying
	h.room.CurrentRound = 0
	h.room.CurrentStep = 0
	h.room.ShowComplete = false
	h.room.TotalRounds = len(h.room.Images)
	h.logger.Info("reveal game started",
		zap.String("code", h.code),
		zap.Int("rounds", h.room.TotalRounds),
	)
	return h.writeLocked(ctx)
}

// NextStep advances the zoom one step. Reaching the last step schedules the
// automatic full reveal. Steps only move forward while the overlay is down.
func (h *HostSession) NextStep(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.playingLocked(); err != nil {
		return err
	}
	if h.room.ShowComplete || h.room.CurrentStep >= TotalSteps-1 {
		return nil
	}
	h.room.CurrentStep++
	if err := h.writeLocked(ctx); err != nil {
		return err
	}
	if h.room.CurrentStep == TotalSteps-1 {
		h.scheduleLocked(revealDelay, h.fireReveal)
	}
	return nil
}

// PrevStep steps the zoom back for a second look; it never crosses a round
// boundary and is inert once the reveal overlay is up.
func (h *HostSession) PrevStep(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.playingLocked(); err != nil {
		return err
	}
	if h.room.ShowComplete || h.room.CurrentStep == 0 {
		return nil
	}
	h.room.CurrentStep--
	return h.writeLocked(ctx)
}

// Reveal raises the answer overlay immediately and, on non-final rounds,
// schedules the automatic advance to the next round.
func (h *HostSession) Reveal(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.playingLocked(); err != nil {
		return err
	}
	return h.revealLocked(ctx)
}

func (h *HostSession) revealLocked(ctx context.Context) error {
	if h.room.ShowComplete {
		return nil
	}
	h.room.ShowComplete = true
	if err := h.writeLocked(ctx); err != nil {
		return err
	}
	if h.room.CurrentRound < h.room.TotalRounds-1 {
		h.scheduleLocked(autoAdvanceDelay, h.fireAdvance)
	}
	return nil
}

// NextRound advances immediately, canceling any pending auto-advance. On
// the final round it ends the game.
func (h *HostSession) NextRound(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.playingLocked(); err != nil {
		return err
	}
	return h.advanceLocked(ctx)
}

func (h *HostSession) advanceLocked(ctx context.Context) error {
	if h.room.CurrentRound >= h.room.TotalRounds-1 {
		h.room.Status = StatusEnded
		h.logger.Info("all rounds complete", zap.String("code", h.code))
		return h.writeLocked(ctx)
	}
	h.room.CurrentRound++
	h.room.CurrentStep = 0
	h.room.ShowComplete = false
	return h.writeLocked(ctx)
}

// End terminates the game regardless of progress.
func (h *HostSession) End(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.writableLocked(); err != nil {
		return err
	}
	h.room.Status = StatusEnded
	return h.writeLocked(ctx)
}

// Reset deletes the room subtree, the host's graceful exit.
func (h *HostSession) Reset(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrSessionClosed
	}
	h.closed = true
	h.gen++ // cancel anything scheduled
	if h.timer != nil {
		h.timer.Stop()
	}
	if err := h.st.Delete(ctx, RoomPath(h.code)); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	return nil
}

func (h *HostSession) Room() Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.room
	room.Images = append([]Image(nil), h.room.Images...)
	return room
}

// writeLocked publishes the whole room record and invalidates any pending
// timer generation; callers schedule a fresh one afterward if needed.
func (h *HostSession) writeLocked(ctx context.Context) error {
	h.gen++
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	if err := h.st.Write(ctx, RoomPath(h.code), h.room); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	return nil
}

func (h *HostSession) scheduleLocked(d time.Duration, fire func(gen int)) {
	gen := h.gen
	h.timer = time.AfterFunc(d, func() { fire(gen) })
}

func (h *HostSession) fireReveal(gen int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if gen != h.gen || h.closed || h.room.Status != StatusPlaying {
		return
	}
	if err := h.revealLocked(context.Background()); err != nil {
		h.logger.Warn("auto reveal failed", zap.String("code", h.code), zap.Error(err))
	}
}

func (h *HostSession) fireAdvance(gen int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if gen != h.gen || h.closed || h.room.Status != StatusPlaying {
		return
	}
	if err := h.advanceLocked(context.Background()); err != nil {
		h.logger.Warn("auto advance failed", zap.String("code", h.code), zap.Error(err))
	}
}

func (h *HostSession) writableLocked() error {
	if h.closed {
		return ErrSessionClosed
	}
	if h.room.Status == StatusEnded {
		return ErrGameEnded
	}
	return nil
}

func (h *HostSession) playingLocked() error {
	if err := h.writableLocked(); err != nil {
		return err
	}
	if h.room.Status != StatusPlaying {
		return ErrNotPlaying
	}
	return nil
}

// FetchRoom reads a reveal-game room once, for display connect checks and
// plain HTTP polling.
func FetchRoom(ctx context.Context, st store.Store, code string) (*Room, error) {
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
	return &room, nil
}
