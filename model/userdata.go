package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultProfileImage = "default.png"

type User struct {
	Id             primitive.ObjectID `json:"id" bson:"_id"`
	Name           string             `json:"name" bson:"name"`
	Email          string             `json:"email" bson:"email"`
	HashedPassword string             `json:"-" bson:"password_hash"`
	ProfileImage   string             `json:"profile_image" bson:"profile_image"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
}

// UserSession is the server side record behind a signed session token.
// ExpiresAt is LastTouch plus ExpireAfter and is kept in sync on every touch.
type UserSession struct {
	Id          string             `json:"id" bson:"_id"`
	UserId      primitive.ObjectID `json:"user_id" bson:"user_id"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	LastTouch   time.Time          `json:"last_touch" bson:"last_touch"`
	ExpireAfter time.Duration      `json:"expire_after" bson:"expire_after"`
	ExpiresAt   time.Time          `json:"expires_at" bson:"expires_at"`
}

// Expired reports whether the session went idle for longer than ExpireAfter.
func (s UserSession) Expired(now time.Time) bool {
	return !now.Before(s.LastTouch.Add(s.ExpireAfter))
}
