package ggorm

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jgarte/gn-proxy/audit"
	"github.com/jgarte/gn-proxy/resource"
)

type gormResource struct {
	ID          string `gorm:"primaryKey"`
	Type        string `gorm:"index"`
	OwnerID     string `gorm:"index"`
	Data        resource.JSON `gorm:"type:json"`
	DefaultMask resource.JSON `gorm:"type:json"`
	UserMasks   resource.JSON `gorm:"type:json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (gormResource) TableName() string { return "resources" }

func fromCoreResource(r *resource.Resource) (*gormResource, error) {
	data, err := json.Marshal(r.Data)
	if err != nil {
		return nil, fmt.Errorf("ggorm: encoding data for %q: %w", r.ID, err)
	}
	defMask, err := json.Marshal(r.DefaultMask)
	if err != nil {
		return nil, fmt.Errorf("ggorm: encoding default mask for %q: %w", r.ID, err)
	}
	userMasks, err := json.Marshal(r.UserMasks)
	if err != nil {
		return nil, fmt.Errorf("ggorm: encoding user masks for %q: %w", r.ID, err)
	}
	return &gormResource{
		ID:          r.ID,
		Type:        r.Type,
		OwnerID:     r.OwnerID,
		Data:        resource.JSON(data),
		DefaultMask: resource.JSON(defMask),
		UserMasks:   resource.JSON(userMasks),
	}, nil
}

func toCoreResource(gr *gormResource) (*resource.Resource, error) {
	r := &resource.Resource{
		ID:      gr.ID,
		Type:    gr.Type,
		OwnerID: gr.OwnerID,
	}
	if len(gr.Data) > 0 {
		if err := json.Unmarshal(gr.Data, &r.Data); err != nil {
			return nil, fmt.Errorf("ggorm: decoding data for %q: %w", gr.ID, err)
		}
	}
	if len(gr.DefaultMask) > 0 {
		if err := json.Unmarshal(gr.DefaultMask, &r.DefaultMask); err != nil {
			return nil, fmt.Errorf("ggorm: decoding default mask for %q: %w", gr.ID, err)
		}
	}
	if len(gr.UserMasks) > 0 {
		if err := json.Unmarshal(gr.UserMasks, &r.UserMasks); err != nil {
			return nil, fmt.Errorf("ggorm: decoding user masks for %q: %w", gr.ID, err)
		}
	}
	return r, nil
}

type gormAuditEvent struct {
	ID         string `gorm:"primaryKey"`
	Type       string `gorm:"index"`
	ActorID    string `gorm:"index"`
	ResourceID string `gorm:"index"`
	Branch     string
	Action     string
	Status     string `gorm:"index"`
	Message    string
	Metadata   resource.JSON `gorm:"type:json"`
	CreatedAt  time.Time     `gorm:"index"`
}

func (gormAuditEvent) TableName() string { return "audit_events" }

func fromCoreAuditEvent(e *audit.Event) (*gormAuditEvent, error) {
	var meta resource.JSON
	if e.Metadata != nil {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("ggorm: encoding audit metadata: %w", err)
		}
		meta = resource.JSON(raw)
	}
	return &gormAuditEvent{
		ID:         e.ID,
		Type:       e.Type,
		ActorID:    e.ActorID,
		ResourceID: e.ResourceID,
		Branch:     e.Branch,
		Action:     e.Action,
		Status:     e.Status,
		Message:    e.Message,
		Metadata:   meta,
		CreatedAt:  e.CreatedAt,
	}, nil
}

func toCoreAuditEvent(ge *gormAuditEvent) (*audit.Event, error) {
	e := &audit.Event{
		ID:         ge.ID,
		Type:       ge.Type,
		ActorID:    ge.ActorID,
		ResourceID: ge.ResourceID,
		Branch:     ge.Branch,
		Action:     ge.Action,
		Status:     ge.Status,
		Message:    ge.Message,
		CreatedAt:  ge.CreatedAt,
	}
	if len(ge.Metadata) > 0 {
		if err := json.Unmarshal(ge.Metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("ggorm: decoding audit metadata: %w", err)
		}
	}
	return e, nil
}
