package handlers

import (
	"context"
	"errors"
	"sync"

	"goldenbell-backend/internal/goldenbell"
	"goldenbell-backend/internal/guessleader"
	"goldenbell-backend/internal/store"
	"goldenbell-backend/internal/ws"

	"go.uber.org/zap"
)

// ErrSessionNotFound covers lookups of sessions this instance is not
// holding, for both room codes and participant ids.
var ErrSessionNotFound = errors.New("session not found")

// Registry holds the live server-side sessions, keyed by room code for
// hosts and by participant id for players. Each registered room gets a
// store subscription that pushes display snapshots to the websocket hub.
type Registry struct {
	st     store.Store
	hub    *ws.Hub
	logger *zap.Logger

	mu           sync.RWMutex
	hosts        map[string]*goldenbell.HostSession
	participants map[string]*goldenbell.ParticipantSession
	reveals      map[string]*guessleader.HostSession
	watchers     map[string]func()
}

func NewRegistry(st store.Store, hub *ws.Hub, logger *zap.Logger) *Registry {
	return &Registry{
		st:           st,
		hub:          hub,
		logger:       logger,
		hosts:        make(map[string]*goldenbell.HostSession),
		participants: make(map[string]*goldenbell.ParticipantSession),
		reveals:      make(map[string]*guessleader.HostSession),
		watchers:     make(map[string]func()),
	}
}

func (r *Registry) AddHost(h *goldenbell.HostSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hosts[h.Code()] = h
	return r.watchLocked(h.Code(), goldenbell.RoomPath(h.Code()), r.quizSnapshot(h.Code()))
}

func (r *Registry) Host(code string) (*goldenbell.HostSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.hosts[code]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return h, nil
}

func (r *Registry) RemoveHost(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.hosts, code)
	r.unwatchLocked(code)
}

func (r *Registry) AddParticipant(p *goldenbell.ParticipantSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants[p.ID()] = p
}

func (r *Registry) Participant(id string) (*goldenbell.ParticipantSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return p, nil
}

func (r *Registry) RemoveParticipant(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.participants, id)
}

// RevealHubRoom namespaces reveal-game hub traffic so a quiz room with the
// same 6-digit code never shares its broadcast channel.
func RevealHubRoom(code string) string { return "guessLeader:" + code }

func (r *Registry) AddReveal(h *guessleader.HostSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reveals[h.Code()] = h
	return r.watchLocked(RevealHubRoom(h.Code()), guessleader.RoomPath(h.Code()), r.revealSnapshot(h.Code()))
}

func (r *Registry) Reveal(code string) (*guessleader.HostSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.reveals[code]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return h, nil
}

func (r *Registry) RemoveReveal(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reveals, code)
	r.unwatchLocked(RevealHubRoom(code))
}

// watchLocked subscribes to a room subtree and republishes every snapshot
// to the room's websocket clients.
func (r *Registry) watchLocked(code, path string, publish func(snap any)) error {
	if _, ok := r.watchers[code]; ok {
		return nil
	}
	unsub, err := r.st.Subscribe(path, publish)
	if err != nil {
		return err
	}
	r.watchers[code] = unsub
	return nil
}

func (r *Registry) unwatchLocked(code string) {
	if unsub, ok := r.watchers[code]; ok {
		unsub()
		delete(r.watchers, code)
	}
}

func (r *Registry) quizSnapshot(code string) func(snap any) {
	return func(snap any) {
		if snap == nil {
			r.hub.Broadcast(code, ws.Message{Type: "room_gone", Data: nil})
			return
		}
		state, err := goldenbell.FetchDisplayState(context.Background(), r.st, code)
		if err != nil {
			if !errors.Is(err, goldenbell.ErrRoomNotFound) {
				r.logger.Warn("room snapshot failed", zap.String("code", code), zap.Error(err))
			}
			return
		}
		r.hub.Broadcast(code, ws.Message{Type: "state", Data: state})
	}
}

func (r *Registry) revealSnapshot(code string) func(snap any) {
	return func(snap any) {
		if snap == nil {
			r.hub.Broadcast(RevealHubRoom(code), ws.Message{Type: "room_gone", Data: nil})
			return
		}
		var room guessleader.Room
		if err := store.Decode(snap, &room); err != nil {
			r.logger.Warn("reveal snapshot malformed", zap.String("code", code), zap.Error(err))
			return
		}
		r.hub.Broadcast(RevealHubRoom(code), ws.Message{Type: "state", Data: room})
	}
}
