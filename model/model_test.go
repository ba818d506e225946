package model

import (
	"conference-webapp/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestConferenceDefaults(t *testing.T) {
	conf := &Conference{Name: "  Tech Summit "}
	conf.Normalize()
	conf.ApplyDefaults()

	require.NoError(t, conf.Validate())
	assert.Equal(t, "Tech Summit", conf.Name)
	assert.Equal(t, DefaultCapacity, conf.Capacity)
	assert.Equal(t, ConferencePlanning, conf.Status)
	assert.Equal(t, DefaultConferenceType, conf.Type)
}

func TestConferenceValidation(t *testing.T) {
	tests := []struct {
		description string
		conf        Conference
		field       string
	}{
		{"missing name", Conference{Capacity: 10, Status: ConferencePlanning}, "name"},
		{"negative capacity", Conference{Name: "x", Capacity: -1, Status: ConferencePlanning}, "capacity"},
		{"unknown status", Conference{Name: "x", Capacity: 1, Status: "postponed"}, "status"},
	}
	for _, test := range tests {
		err := test.conf.Validate()
		var ve *errors.ValidationError
		require.ErrorAsf(t, err, &ve, test.description)
		assert.Equalf(t, []string{test.field}, ve.Fields, test.description)
	}
}

func TestAttendeeNormalizesEmailAndNamesMissingFields(t *testing.T) {
	a := &Attendee{Email: "  Ada@Example.COM "}
	a.Normalize()
	a.ApplyDefaults()
	assert.Equal(t, "ada@example.com", a.Email)
	assert.Equal(t, TicketStandard, a.TicketType)
	assert.Equal(t, AttendeePending, a.Status)

	err := a.Validate()
	var ve *errors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"name", "conference"}, ve.Fields)

	a.Name = "Ada"
	a.Conference = primitive.NewObjectID()
	a.TicketType = "gold"
	assert.True(t, errors.IsValidation(a.Validate()))
}

func TestSessionRequiredFields(t *testing.T) {
	s := &Session{}
	s.Normalize()
	s.ApplyDefaults()
	assert.Equal(t, DefaultSessionDuration, s.Duration)

	var ve *errors.ValidationError
	require.ErrorAs(t, s.Validate(), &ve)
	assert.Equal(t, []string{"title", "speaker", "conference", "date", "start_time"}, ve.Fields)

	s.Title, s.StartTime = "Keynote", "09:00"
	s.Speaker, s.Conference = primitive.NewObjectID(), primitive.NewObjectID()
	s.Date = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, s.Validate())
}

func TestSpeakerRequiresNameAndEmail(t *testing.T) {
	s := &Speaker{Name: "Grace"}
	s.Normalize()
	assert.True(t, errors.IsValidation(s.Validate()))
	s.Email = "grace@example.com"
	assert.NoError(t, s.Validate())
	s.Fee = -5
	assert.True(t, errors.IsValidation(s.Validate()))
}

func TestUserSessionExpiry(t *testing.T) {
	touched := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := UserSession{LastTouch: touched, ExpireAfter: time.Hour}
	assert.False(t, s.Expired(touched.Add(59*time.Minute)))
	assert.True(t, s.Expired(touched.Add(time.Hour)))
}
