package model

import (
	"conference-webapp/errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Speaker is independent of any single conference; sessions point at it.
type Speaker struct {
	Id        primitive.ObjectID `json:"id" bson:"_id"`
	Name      string             `json:"name" bson:"name"`
	Email     string             `json:"email" bson:"email"`
	Company   string             `json:"company" bson:"company"`
	Title     string             `json:"title" bson:"title"`
	Expertise string             `json:"expertise" bson:"expertise"`
	Fee       float64            `json:"fee" bson:"fee"`
	Bio       string             `json:"bio" bson:"bio"`
	CreatedBy primitive.ObjectID `json:"created_by" bson:"created_by"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

func (s *Speaker) Kind() Kind                  { return KindSpeaker }
func (s *Speaker) GetId() primitive.ObjectID   { return s.Id }
func (s *Speaker) SetId(id primitive.ObjectID) { s.Id = id }

func (s *Speaker) Stamp(now time.Time) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
}

func (s *Speaker) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.Email = strings.TrimSpace(s.Email)
	s.Company = strings.TrimSpace(s.Company)
	s.Title = strings.TrimSpace(s.Title)
	s.Expertise = strings.TrimSpace(s.Expertise)
}

// ApplyDefaults is a no-op: a zero fee is the default.
func (s *Speaker) ApplyDefaults() {}

func (s *Speaker) Validate() error {
	var missing []string
	if s.Name == "" {
		missing = append(missing, "name")
	}
	if s.Email == "" {
		missing = append(missing, "email")
	}
	if err := errors.Missing(missing...); err != nil {
		return err
	}
	if s.Fee < 0 {
		return errors.Invalid("fee", "fee cannot be negative")
	}
	return nil
}
