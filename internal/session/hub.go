package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/visualgpt/visualgpt/compositor/internal/engine"
	"github.com/visualgpt/visualgpt/compositor/internal/layer"
	"github.com/visualgpt/visualgpt/compositor/internal/typeid"
	"github.com/visualgpt/visualgpt/compositor/internal/visual"
)

// Visuals is the persistence the hub needs. *visual.Service implements it.
type Visuals interface {
	Get(ctx context.Context, id string) (*visual.Visual, error)
	UpdateLayers(ctx context.Context, id string, layers layer.List) (*visual.Visual, error)
	Save(ctx context.Context, id string, layers layer.List) (*visual.SaveResult, error)
	StartOver(ctx context.Context, id string) (*visual.Visual, error)
}

type Hub struct {
	visuals Visuals
	assets  engine.AssetSource
	opts    []engine.Option

	mu         sync.RWMutex
	rooms      map[string]*Room // visualID -> room
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(visuals Visuals, assets engine.AssetSource, opts ...engine.Option) *Hub {
	return &Hub{
		visuals:    visuals,
		assets:     assets,
		opts:       opts,
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves registrations until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Open returns the room for visualID, loading the visual into a fresh
// editor if no client has it open. The caller must Register a client for
// the room or call Abandon.
func (h *Hub) Open(ctx context.Context, visualID string) (*Room, error) {
	h.mu.Lock()
	if room, ok := h.rooms[visualID]; ok {
		room.joining++
		h.mu.Unlock()
		return room, nil
	}
	h.mu.Unlock()

	v, err := h.visuals.Get(ctx, visualID)
	if err != nil {
		return nil, err
	}
	var room *Room
	opts := append([]engine.Option{engine.WithInvalidate(func() { h.invalidate(room) })}, h.opts...)
	editor := engine.NewEditor(h.assets, opts...)
	if err := editor.Load(ctx, v.BaseURL, v.OriginalURL, v.Layers); err != nil {
		return nil, fmt.Errorf("load visual %s: %w", visualID, err)
	}
	room = newRoom(visualID, editor)

	h.mu.Lock()
	defer h.mu.Unlock()
	// Another client may have opened it meanwhile.
	if existing, ok := h.rooms[visualID]; ok {
		existing.joining++
		return existing, nil
	}
	room.joining++
	h.rooms[visualID] = room
	return room, nil
}

// Abandon releases a room reference taken by Open that never got a client.
func (h *Hub) Abandon(room *Room) {
	h.mu.Lock()
	room.joining--
	empty := len(room.clients) == 0 && room.joining == 0
	if empty {
		delete(h.rooms, room.visualID)
	}
	h.mu.Unlock()
	if empty {
		h.persist(room)
	}
}

func (h *Hub) addClient(client *Client) {
	room := client.room
	h.mu.Lock()
	room.joining--
	room.clients[client.ID] = client
	h.mu.Unlock()

	room.mu.Lock()
	welcome := newMessage(TypeWelcome, WelcomePayload{
		ClientID:  client.ID,
		Canvas:    room.editor.Canvas(),
		Layers:    room.editor.Layers(),
		Selected:  room.editor.Selected(),
		ServerSeq: room.serverSeq,
	})
	room.mu.Unlock()
	welcome.VisualID = room.visualID
	client.Send(welcome)

	if stateMsg := room.presence.StateMessage(); stateMsg != nil {
		client.Send(stateMsg)
	}

	join := newMessage(TypePresenceJoin, PresencePayload{ClientID: client.ID})
	join.ClientID = client.ID
	h.broadcastToRoom(room, join, client.ID)

	slog.Info("client joined", "client", client.ID, "visual", room.visualID)
}

func (h *Hub) removeClient(client *Client) {
	room := client.room
	h.mu.Lock()
	if _, ok := room.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(room.clients, client.ID)
	client.close()
	room.presence.Remove(client.ID)

	empty := len(room.clients) == 0 && room.joining == 0
	if empty {
		delete(h.rooms, room.visualID)
	}
	h.mu.Unlock()

	leave := newMessage(TypePresenceLeave, PresenceLeavePayload{ClientID: client.ID})
	leave.ClientID = client.ID
	h.broadcastToRoom(room, leave, "")

	if empty {
		h.persist(room)
	}
	slog.Info("client left", "client", client.ID, "visual", room.visualID)
}

// Stop persists unsaved layers of every open room.
func (h *Hub) Stop(ctx context.Context) {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	for _, r := range rooms {
		r.mu.Lock()
		if err := r.persist(ctx, h.visuals); err != nil {
			slog.Error("persist on shutdown", "error", err, "visual", r.visualID)
		}
		r.mu.Unlock()
	}
}

func (h *Hub) persist(room *Room) {
	room.mu.Lock()
	defer room.mu.Unlock()
	if err := room.persist(context.Background(), h.visuals); err != nil {
		slog.Error("persist room", "error", err, "visual", room.visualID)
	}
}

func (h *Hub) handleMessage(ctx context.Context, sender *Client, msg *Message) {
	if msg.Type == TypePresenceUpdate {
		h.handlePresenceUpdate(sender, msg)
		return
	}

	room := sender.room
	room.mu.Lock()
	res, err := room.apply(ctx, h.visuals, msg)
	if err != nil {
		room.mu.Unlock()
		slog.Debug("operation rejected", "error", err, "type", msg.Type, "client", sender.ID)
		nack := newMessage(TypeOpNack, NackPayload{Reason: reason(err)})
		nack.Seq = msg.Seq
		sender.Send(nack)
		return
	}

	ack := newMessage(TypeOpAck, AckPayload{
		OpID:      typeid.NewOpID(),
		ServerSeq: room.serverSeq,
		Index:     res.index,
		Selected:  room.editor.Selected(),
	})
	ack.Seq = msg.Seq
	var layersMsg *Message
	if res.layersChanged {
		layersMsg = room.layersMessage()
	}
	room.mu.Unlock()

	sender.Send(ack)
	if layersMsg != nil {
		h.broadcastToRoom(room, layersMsg, "")
	}
	if res.frame != nil {
		sender.Send(newMessage(TypeFrame, res.frame))
	}
	if res.saved != nil {
		h.broadcastToRoom(room, newMessage(TypeSaved, res.saved), "")
	}
}

func (h *Hub) handlePresenceUpdate(sender *Client, msg *Message) {
	var presence PresencePayload
	if err := decode(msg, &presence); err != nil {
		slog.Warn("invalid presence payload", "error", err)
		return
	}
	presence.ClientID = sender.ID
	sender.room.presence.Update(sender.ID, &presence)

	out := newMessage(TypePresenceUpdate, presence)
	out.ClientID = sender.ID
	h.broadcastToRoom(sender.room, out, sender.ID)
}

// invalidate tells every client in room that its last frame is missing an
// asset that has since decoded. It may run on a loader goroutine.
func (h *Hub) invalidate(room *Room) {
	if room == nil {
		return
	}
	h.broadcastToRoom(room, &Message{Type: TypeFrameStale}, "")
}

func (h *Hub) broadcastToRoom(room *Room, msg *Message, excludeClientID string) {
	msg.VisualID = room.visualID
	h.mu.RLock()
	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

// reason maps an operation error to a client-facing nack reason.
func reason(err error) string {
	switch {
	case errors.Is(err, engine.ErrIndexOutOfRange):
		return "index out of range"
	case errors.Is(err, engine.ErrImmutableField):
		return "layer type and id cannot change"
	case errors.Is(err, engine.ErrNotLoaded):
		return "visual not loaded"
	case errors.Is(err, visual.ErrNotFound):
		return "visual not found"
	default:
		return err.Error()
	}
}
