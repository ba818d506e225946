package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind names an entity collection.
type Kind string

const (
	KindConference  Kind = "conferences"
	KindAttendee    Kind = "attendees"
	KindSpeaker     Kind = "speakers"
	KindSession     Kind = "sessions"
	KindUser        Kind = "users"
	KindUserSession Kind = "user_sessions"
)

// EntityKinds are the four kinds making up the conference graph.
var EntityKinds = []Kind{KindConference, KindAttendee, KindSpeaker, KindSession}

// Singular returns the human readable name used in error messages.
func (k Kind) Singular() string {
	switch k {
	case KindConference:
		return "conference"
	case KindAttendee:
		return "attendee"
	case KindSpeaker:
		return "speaker"
	case KindSession:
		return "session"
	case KindUser:
		return "user"
	case KindUserSession:
		return "user session"
	}
	return string(k)
}

// Record is implemented by every entity of the conference graph.
//
// Normalize trims and case-folds text fields, ApplyDefaults fills defaults on
// creation only, and Validate reports required fields that are still missing
// and enum fields holding unknown values.
type Record interface {
	Kind() Kind
	GetId() primitive.ObjectID
	SetId(id primitive.ObjectID)
	Stamp(now time.Time)
	Normalize()
	ApplyDefaults()
	Validate() error
}

// New returns an empty record of the given kind, or nil for kinds that are not
// part of the conference graph.
func New(kind Kind) Record {
	switch kind {
	case KindConference:
		return &Conference{}
	case KindAttendee:
		return &Attendee{}
	case KindSpeaker:
		return &Speaker{}
	case KindSession:
		return &Session{}
	}
	return nil
}
