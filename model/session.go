package model

import (
	"conference-webapp/errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultSessionDuration = 60

// Session is a talk scheduled inside a conference. Duration is in minutes.
type Session struct {
	Id          primitive.ObjectID `json:"id" bson:"_id"`
	Title       string             `json:"title" bson:"title"`
	Speaker     primitive.ObjectID `json:"speaker" bson:"speaker"`
	Conference  primitive.ObjectID `json:"conference" bson:"conference"`
	Date        time.Time          `json:"date" bson:"date"`
	StartTime   string             `json:"start_time" bson:"start_time"`
	Duration    int                `json:"duration" bson:"duration"`
	Description string             `json:"description" bson:"description"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

func (s *Session) Kind() Kind                  { return KindSession }
func (s *Session) GetId() primitive.ObjectID   { return s.Id }
func (s *Session) SetId(id primitive.ObjectID) { s.Id = id }

func (s *Session) Stamp(now time.Time) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
}

func (s *Session) Normalize() {
	s.Title = strings.TrimSpace(s.Title)
	s.StartTime = strings.TrimSpace(s.StartTime)
}

func (s *Session) ApplyDefaults() {
	if s.Duration == 0 {
		s.Duration = DefaultSessionDuration
	}
}

func (s *Session) Validate() error {
	var missing []string
	if s.Title == "" {
		missing = append(missing, "title")
	}
	if s.Speaker.IsZero() {
		missing = append(missing, "speaker")
	}
	if s.Conference.IsZero() {
		missing = append(missing, "conference")
	}
	if s.Date.IsZero() {
		missing = append(missing, "date")
	}
	if s.StartTime == "" {
		missing = append(missing, "start_time")
	}
	if err := errors.Missing(missing...); err != nil {
		return err
	}
	if s.Duration < 0 {
		return errors.Invalid("duration", "duration cannot be negative")
	}
	return nil
}
