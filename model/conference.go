package model

import (
	"conference-webapp/errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ConferenceStatus string

const (
	ConferencePlanning  ConferenceStatus = "planning"
	ConferenceActive    ConferenceStatus = "active"
	ConferenceCompleted ConferenceStatus = "completed"
	ConferenceCancelled ConferenceStatus = "cancelled"
)

const (
	DefaultCapacity       = 100
	DefaultConferenceType = "other"
)

func (s ConferenceStatus) Valid() bool {
	switch s {
	case ConferencePlanning, ConferenceActive, ConferenceCompleted, ConferenceCancelled:
		return true
	}
	return false
}

type Conference struct {
	Id          primitive.ObjectID `json:"id" bson:"_id"`
	Name        string             `json:"name" bson:"name"`
	StartDate   time.Time          `json:"start_date" bson:"start_date"`
	EndDate     time.Time          `json:"end_date" bson:"end_date"`
	Capacity    int                `json:"capacity" bson:"capacity"`
	Type        string             `json:"type" bson:"type"`
	Status      ConferenceStatus   `json:"status" bson:"status"`
	Description string             `json:"description" bson:"description"`
	CreatedBy   primitive.ObjectID `json:"created_by" bson:"created_by"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

func (c *Conference) Kind() Kind                  { return KindConference }
func (c *Conference) GetId() primitive.ObjectID   { return c.Id }
func (c *Conference) SetId(id primitive.ObjectID) { c.Id = id }

func (c *Conference) Stamp(now time.Time) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

func (c *Conference) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Type = strings.TrimSpace(c.Type)
}

func (c *Conference) ApplyDefaults() {
	if c.Type == "" {
		c.Type = DefaultConferenceType
	}
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if c.Status == "" {
		c.Status = ConferencePlanning
	}
}

func (c *Conference) Validate() error {
	if c.Name == "" {
		return errors.Missing("name")
	}
	if c.Capacity < 0 {
		return errors.Invalid("capacity", "capacity cannot be negative")
	}
	if !c.Status.Valid() {
		return errors.Invalid("status", "unknown conference status")
	}
	return nil
}
