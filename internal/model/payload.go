package model

import (
	"encoding/json"
	"fmt"
)

// EventPayload is the typed form of a recall event's data.
type EventPayload interface {
	EventType() EventType
}

// SearchQuery is recorded when the user searches.
type SearchQuery struct {
	Query string `json:"query"`
}

// ProductView is recorded when the user opens a product.
type ProductView struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title,omitempty"`
	Price     float64 `json:"price,omitempty"`
}

// ProductReject is recorded when the user dismisses a product.
type ProductReject struct {
	ProductID string `json:"productId"`
	Title     string `json:"title,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// ProductApprove is recorded when the user approves a product.
type ProductApprove struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title,omitempty"`
	Price     float64 `json:"price,omitempty"`
}

// CanvasAction is recorded for spatial canvas interactions.
type CanvasAction struct {
	Action     string `json:"action"`
	ArtifactID string `json:"artifactId,omitempty"`
}

// ChatMessage is recorded for each assistant exchange.
type ChatMessage struct {
	Message  string `json:"message"`
	Response string `json:"response"`
}

func (SearchQuery) EventType() EventType    { return EventSearchQuery }
func (ProductView) EventType() EventType    { return EventProductView }
func (ProductReject) EventType() EventType  { return EventProductReject }
func (ProductApprove) EventType() EventType { return EventProductApprove }
func (CanvasAction) EventType() EventType   { return EventCanvasAction }
func (ChatMessage) EventType() EventType    { return EventChatMessage }

// EncodePayload converts a typed payload to the schema-less storage form.
func EncodePayload(p EventPayload) (EventType, map[string]any, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s payload: %w", p.EventType(), err)
	}
	var data map[string]any
	if err := json.Unmarshal(b, &data); err != nil {
		return "", nil, fmt.Errorf("encode %s payload: %w", p.EventType(), err)
	}
	return p.EventType(), data, nil
}

// DecodePayload converts stored event data to the typed variant for its type.
// Unknown keys are ignored.
func DecodePayload(t EventType, data map[string]any) (EventPayload, error) {
	var target EventPayload
	switch t {
	case EventSearchQuery:
		target = &SearchQuery{}
	case EventProductView:
		target = &ProductView{}
	case EventProductReject:
		target = &ProductReject{}
	case EventProductApprove:
		target = &ProductApprove{}
	case EventCanvasAction:
		target = &CanvasAction{}
	case EventChatMessage:
		target = &ChatMessage{}
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}

	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	if err := json.Unmarshal(b, target); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}

	switch v := target.(type) {
	case *SearchQuery:
		return *v, nil
	case *ProductView:
		return *v, nil
	case *ProductReject:
		return *v, nil
	case *ProductApprove:
		return *v, nil
	case *CanvasAction:
		return *v, nil
	case *ChatMessage:
		return *v, nil
	}
	return target, nil
}
