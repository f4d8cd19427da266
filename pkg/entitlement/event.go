package entitlement

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventType discriminates the sync event union.
type EventType string

const (
	EventSubscriptionUpdated EventType = "subscriptionUpdated"
	EventPlanChanged         EventType = "planChanged"
	EventModulesUpdated      EventType = "modulesUpdated"
)

// SyncEvent is a transient message delivered over the sync channel.
// Events are consumed once and not retained; each variant carries its own
// strongly-typed payload.
type SyncEvent interface {
	EventType() EventType
	Tenant() uuid.UUID
	OccurredAt() time.Time
}

type eventHeader struct {
	TenantID  uuid.UUID
	Timestamp time.Time
}

func (h eventHeader) Tenant() uuid.UUID     { return h.TenantID }
func (h eventHeader) OccurredAt() time.Time { return h.Timestamp }

// SubscriptionUpdatedEvent carries the full authoritative subscription state.
type SubscriptionUpdatedEvent struct {
	eventHeader
	Subscription Subscription
}

func (SubscriptionUpdatedEvent) EventType() EventType { return EventSubscriptionUpdated }

// PlanChangedEvent signals that the tenant's plan changed elsewhere; the
// receiver is expected to refetch the authoritative subscription.
type PlanChangedEvent struct {
	eventHeader
	PlanID string
}

func (PlanChangedEvent) EventType() EventType { return EventPlanChanged }

// ModulesUpdatedEvent carries a replacement module catalog.
type ModulesUpdatedEvent struct {
	eventHeader
	Modules []ModuleDescriptor
}

func (ModulesUpdatedEvent) EventType() EventType { return EventModulesUpdated }

// NewSubscriptionUpdated builds a subscriptionUpdated event. Used by
// in-process publishers and tests; wire messages go through DecodeSyncEvent.
func NewSubscriptionUpdated(tenantID uuid.UUID, ts time.Time, sub Subscription) SubscriptionUpdatedEvent {
	return SubscriptionUpdatedEvent{
		eventHeader:  eventHeader{TenantID: tenantID, Timestamp: ts},
		Subscription: sub,
	}
}

// NewPlanChanged builds a planChanged event.
func NewPlanChanged(tenantID uuid.UUID, ts time.Time, planID string) PlanChangedEvent {
	return PlanChangedEvent{
		eventHeader: eventHeader{TenantID: tenantID, Timestamp: ts},
		PlanID:      planID,
	}
}

// NewModulesUpdated builds a modulesUpdated event.
func NewModulesUpdated(tenantID uuid.UUID, ts time.Time, modules []ModuleDescriptor) ModulesUpdatedEvent {
	return ModulesUpdatedEvent{
		eventHeader: eventHeader{TenantID: tenantID, Timestamp: ts},
		Modules:     modules,
	}
}

// eventEnvelope is the wire shape of every sync event.
type eventEnvelope struct {
	Type      EventType       `json:"type"`
	TenantID  uuid.UUID       `json:"tenantId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type planChangedPayload struct {
	PlanID string `json:"planId"`
}

type modulesUpdatedPayload struct {
	Modules []ModuleDescriptor `json:"modules"`
}

// DecodeSyncEvent decodes and validates a raw wire message into a typed
// event. Malformed payloads and unknown types are rejected here, at the
// channel boundary, so downstream consumers only ever see valid events.
func DecodeSyncEvent(data []byte) (SyncEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}
	if env.TenantID == uuid.Nil {
		return nil, ErrMissingTenant
	}

	header := eventHeader{TenantID: env.TenantID, Timestamp: env.Timestamp}

	switch env.Type {
	case EventSubscriptionUpdated:
		var sub Subscription
		if err := json.Unmarshal(env.Payload, &sub); err != nil {
			return nil, errors.Join(ErrMalformedEvent, err)
		}
		if sub.TenantID == uuid.Nil {
			sub.TenantID = env.TenantID
		}
		return SubscriptionUpdatedEvent{eventHeader: header, Subscription: sub}, nil

	case EventPlanChanged:
		var p planChangedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, errors.Join(ErrMalformedEvent, err)
		}
		return PlanChangedEvent{eventHeader: header, PlanID: p.PlanID}, nil

	case EventModulesUpdated:
		var p modulesUpdatedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, errors.Join(ErrMalformedEvent, err)
		}
		return ModulesUpdatedEvent{eventHeader: header, Modules: p.Modules}, nil

	default:
		return nil, ErrUnknownEventType
	}
}
