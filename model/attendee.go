package model

import (
	"conference-webapp/errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TicketType string

const (
	TicketStandard TicketType = "standard"
	TicketPremium  TicketType = "premium"
	TicketVIP      TicketType = "vip"
)

func (t TicketType) Valid() bool {
	switch t {
	case TicketStandard, TicketPremium, TicketVIP:
		return true
	}
	return false
}

type AttendeeStatus string

const (
	AttendeePending   AttendeeStatus = "pending"
	AttendeeConfirmed AttendeeStatus = "confirmed"
	AttendeeCancelled AttendeeStatus = "cancelled"
)

func (s AttendeeStatus) Valid() bool {
	switch s {
	case AttendeePending, AttendeeConfirmed, AttendeeCancelled:
		return true
	}
	return false
}

// Attendee is a registration of one person for one conference.
type Attendee struct {
	Id         primitive.ObjectID `json:"id" bson:"_id"`
	Name       string             `json:"name" bson:"name"`
	Email      string             `json:"email" bson:"email"`
	Company    string             `json:"company" bson:"company"`
	Title      string             `json:"title" bson:"title"`
	Conference primitive.ObjectID `json:"conference" bson:"conference"`
	TicketType TicketType         `json:"ticket_type" bson:"ticket_type"`
	Status     AttendeeStatus     `json:"status" bson:"status"`
	CreatedBy  primitive.ObjectID `json:"created_by" bson:"created_by"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
}

func (a *Attendee) Kind() Kind                  { return KindAttendee }
func (a *Attendee) GetId() primitive.ObjectID   { return a.Id }
func (a *Attendee) SetId(id primitive.ObjectID) { a.Id = id }

func (a *Attendee) Stamp(now time.Time) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
}

func (a *Attendee) Normalize() {
	a.Name = strings.TrimSpace(a.Name)
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	a.Company = strings.TrimSpace(a.Company)
	a.Title = strings.TrimSpace(a.Title)
}

func (a *Attendee) ApplyDefaults() {
	if a.TicketType == "" {
		a.TicketType = TicketStandard
	}
	if a.Status == "" {
		a.Status = AttendeePending
	}
}

func (a *Attendee) Validate() error {
	var missing []string
	if a.Name == "" {
		missing = append(missing, "name")
	}
	if a.Email == "" {
		missing = append(missing, "email")
	}
	if a.Conference.IsZero() {
		missing = append(missing, "conference")
	}
	if err := errors.Missing(missing...); err != nil {
		return err
	}
	if !a.TicketType.Valid() {
		return errors.Invalid("ticket_type", "unknown ticket type")
	}
	if !a.Status.Valid() {
		return errors.Invalid("status", "unknown attendee status")
	}
	return nil
}
