package session

import (
	"encoding/json"

	"github.com/visualgpt/visualgpt/compositor/internal/engine"
	"github.com/visualgpt/visualgpt/compositor/internal/layer"
)

type Message struct {
	Type     string          `json:"type"`
	VisualID string          `json:"visualId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

const (
	// Connection
	TypeWelcome = "welcome"
	TypeError   = "error"

	// Editing, client to server
	TypeLayerAdd    = "layer.add"
	TypeLayerUpdate = "layer.update"
	TypeLayerDelete = "layer.delete"
	TypeLayerMove   = "layer.move"
	TypeLayerSelect = "layer.select"
	TypePointerDown = "pointer.down"
	TypePointerMove = "pointer.move"
	TypePointerUp   = "pointer.up"
	TypeTouchStart  = "touch.start"
	TypeTouchMove   = "touch.move"
	TypeTouchEnd    = "touch.end"
	TypeViewport    = "viewport"
	TypeRender      = "render"
	TypeSave        = "save"
	TypeStartOver   = "start-over"

	// Server to client
	TypeOpAck      = "op.ack"
	TypeOpNack     = "op.nack"
	TypeLayers     = "layers"
	TypeFrame      = "frame"
	TypeFrameStale = "frame.stale"
	TypeSaved      = "saved"

	// Presence
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
)

// Layer kinds accepted by layer.add.
const (
	AddText       = "text"
	AddShape      = "shape"
	AddImage      = "image"
	AddBackground = "background"
)

type WelcomePayload struct {
	ClientID  string      `json:"clientId"`
	Canvas    engine.Size `json:"canvas"`
	Layers    layer.List  `json:"layers"`
	Selected  int         `json:"selected"`
	ServerSeq int64       `json:"serverSeq"`
}

type AddPayload struct {
	Kind      string          `json:"kind"`
	Text      string          `json:"text,omitempty"`
	Shape     layer.ShapeKind `json:"shapeId,omitempty"`
	URL       string          `json:"url,omitempty"`
	IsTexture bool            `json:"isTexture,omitempty"`
	BgType    layer.BgType    `json:"bgType,omitempty"`
	BgValue   layer.BgValue   `json:"bgValue"`
}

type UpdatePayload struct {
	Index int             `json:"index"`
	Patch json.RawMessage `json:"patch"`
}

type IndexPayload struct {
	Index int `json:"index"`
}

type MovePayload struct {
	Index     int              `json:"index"`
	Direction engine.Direction `json:"direction"`
}

// PointerPayload is in client coordinates of the sender's viewport.
type PointerPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type TouchPayload struct {
	Touches []PointerPayload `json:"touches"`
}

type AckPayload struct {
	OpID      string `json:"opId"`
	ServerSeq int64  `json:"serverSeq"`
	Index     int    `json:"index"`
	Selected  int    `json:"selected"`
}

type NackPayload struct {
	Reason string `json:"reason"`
}

type LayersPayload struct {
	Layers    layer.List `json:"layers"`
	Selected  int        `json:"selected"`
	ServerSeq int64      `json:"serverSeq"`
}

// FramePayload carries a base64 PNG preview.
type FramePayload struct {
	PNG     string   `json:"png"`
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	Pending []string `json:"pending,omitempty"`
	Failed  []string `json:"failed,omitempty"`
}

type SavedPayload struct {
	URL     string   `json:"url"`
	Width   int      `json:"width,omitempty"`
	Height  int      `json:"height,omitempty"`
	Skipped []string `json:"skipped,omitempty"`
}

type PresencePayload struct {
	ClientID string          `json:"clientId,omitempty"`
	Cursor   *PointerPayload `json:"cursor,omitempty"`
	Selected *int            `json:"selected,omitempty"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceLeavePayload struct {
	ClientID string `json:"clientId"`
}

func newMessage(typ string, payload any) *Message {
	raw, _ := json.Marshal(payload)
	return &Message{Type: typ, Payload: raw}
}
