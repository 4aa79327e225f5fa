// Package model defines the memory and price-tracking data types.
package model

import (
	"encoding/json"
	"time"
)

// RelationshipState is the coarse familiarity stage derived from interaction volume.
type RelationshipState string

const (
	RelationshipStranger     RelationshipState = "stranger"
	RelationshipAcquaintance RelationshipState = "acquaintance"
	RelationshipPartner      RelationshipState = "partner"
)

// ValidRelationshipStates are the allowed relationship states.
var ValidRelationshipStates = map[RelationshipState]bool{
	RelationshipStranger:     true,
	RelationshipAcquaintance: true,
	RelationshipPartner:      true,
}

// MaturityLevel is the capability tier derived from the interaction counter.
type MaturityLevel string

const (
	LevelTool    MaturityLevel = "tool"
	LevelCopilot MaturityLevel = "copilot"
	LevelPartner MaturityLevel = "partner"
)

// EventType identifies the kind of a recall event.
type EventType string

const (
	EventSearchQuery    EventType = "search_query"
	EventProductView    EventType = "product_view"
	EventProductReject  EventType = "product_reject"
	EventProductApprove EventType = "product_approve"
	EventCanvasAction   EventType = "canvas_action"
	EventChatMessage    EventType = "chat_message"
)

// ValidEventTypes are the allowed recall event types.
var ValidEventTypes = map[EventType]bool{
	EventSearchQuery:    true,
	EventProductView:    true,
	EventProductReject:  true,
	EventProductApprove: true,
	EventCanvasAction:   true,
	EventChatMessage:    true,
}

// PriceRange is an inclusive budget band. Min must not exceed Max.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// CoreMemory is the durable single-row-per-user profile.
type CoreMemory struct {
	UserID             string            `json:"user_id"`
	RelationshipState  RelationshipState `json:"relationship_state"`
	TrustScore         int               `json:"trust_score"`
	ActiveGoals        []string          `json:"active_goals"`
	PriceRange         *PriceRange       `json:"price_range,omitempty"`
	FavoriteCategories []string          `json:"favorite_categories"`
	Idiosyncrasies     []string          `json:"idiosyncrasies"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// RecallEvent is one entry of the append-only recent-event log.
type RecallEvent struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	EventType EventType      `json:"event_type"`
	EventData map[string]any `json:"event_data"`
	CreatedAt time.Time      `json:"timestamp"`
}

// Payload decodes the stored event data into its typed variant.
func (e RecallEvent) Payload() (EventPayload, error) {
	return DecodePayload(e.EventType, e.EventData)
}

// DataJSON renders the raw event data as compact JSON.
func (e RecallEvent) DataJSON() string {
	if e.EventData == nil {
		return "{}"
	}
	b, err := json.Marshal(e.EventData)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ArchivalRecord is a long-term, importance-ranked note.
type ArchivalRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Content    string    `json:"content"`
	Category   string    `json:"category,omitempty"`
	Importance int       `json:"importance"`
	CreatedAt  time.Time `json:"created_at"`
}

// MaturityState tracks the interaction counter and derived level.
type MaturityState struct {
	UserID           string        `json:"user_id"`
	CurrentLevel     MaturityLevel `json:"current_level"`
	InteractionCount int           `json:"interaction_count"`
	LastLevelChange  time.Time     `json:"last_level_change"`
}

// MemoryContext is the snapshot handed to the text-generation backend.
type MemoryContext struct {
	Core     *CoreMemory      `json:"core"`
	Recent   []RecallEvent    `json:"recent_interactions"`
	Archival []ArchivalRecord `json:"archival"`
}
