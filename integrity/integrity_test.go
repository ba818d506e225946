package integrity

import (
	"conference-webapp/database"
	"conference-webapp/errors"
	"conference-webapp/logger"
	"conference-webapp/model"
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fixture struct {
	ctx      context.Context
	store    database.Store
	entities *database.Entities
	engine   *Engine
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store, err := database.NewLocalStore("")
	require.NoError(t, err)
	return setupWith(t, store)
}

func setupWith(t *testing.T, store database.Store) *fixture {
	t.Helper()
	entities := database.NewEntities(store)
	engine := New(entities, logger.Nop())
	ctx := context.Background()
	require.NoError(t, engine.EnsureIndexes(ctx))
	return &fixture{ctx: ctx, store: store, entities: entities, engine: engine}
}

func (f *fixture) conference(t *testing.T, name string, capacity int) *model.Conference {
	t.Helper()
	conf := &model.Conference{Name: name, Capacity: capacity}
	require.NoError(t, f.engine.CreateConference(f.ctx, conf, primitive.NilObjectID))
	return conf
}

func (f *fixture) speaker(t *testing.T, name string) *model.Speaker {
	t.Helper()
	speaker := &model.Speaker{Name: name, Email: name + "@example.com"}
	require.NoError(t, f.engine.CreateSpeaker(f.ctx, speaker, primitive.NilObjectID))
	return speaker
}

func (f *fixture) attendee(t *testing.T, conf primitive.ObjectID, email string) *model.Attendee {
	t.Helper()
	a := &model.Attendee{Name: email, Email: email}
	require.NoError(t, f.engine.RegisterAttendee(f.ctx, conf, a, primitive.NilObjectID))
	return a
}

func (f *fixture) session(t *testing.T, conf, speaker primitive.ObjectID, title string) *model.Session {
	t.Helper()
	s := &model.Session{
		Title:      title,
		Conference: conf,
		Speaker:    speaker,
		Date:       time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		StartTime:  "10:00",
	}
	require.NoError(t, f.engine.ScheduleSession(f.ctx, s))
	return s
}

func (f *fixture) count(t *testing.T, kind model.Kind, filter bson.M) int {
	t.Helper()
	n, err := f.entities.Count(f.ctx, kind, filter)
	require.NoError(t, err)
	return n
}

func TestRegisterAttendeeForcesPending(t *testing.T) {
	f := setup(t)
	conf := f.conference(t, "Tech Summit", 2)
	actor := primitive.NewObjectID()

	a := &model.Attendee{Name: "Ada", Email: "Ada@Example.com", Status: model.AttendeeConfirmed}
	require.NoError(t, f.engine.RegisterAttendee(f.ctx, conf.Id, a, actor))
	assert.Equal(t, model.AttendeePending, a.Status)
	assert.Equal(t, actor, a.CreatedBy)

	var stored model.Attendee
	require.NoError(t, f.entities.Get(f.ctx, a.Id, &stored))
	assert.Equal(t, conf.Id, stored.Conference)
	assert.Equal(t, "ada@example.com", stored.Email)
	assert.Equal(t, model.TicketStandard, stored.TicketType)
}

func TestRegisterAttendeeUnknownConference(t *testing.T) {
	f := setup(t)

	err := f.engine.RegisterAttendee(f.ctx, primitive.NewObjectID(), &model.Attendee{Name: "Ada", Email: "ada@example.com"}, primitive.NilObjectID)
	var re *errors.ReferenceError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "conference", re.Field)
	assert.Zero(t, f.count(t, model.KindAttendee, nil))
}

func TestRegisterAttendeeResolvesConferenceBeforeFields(t *testing.T) {
	f := setup(t)

	err := f.engine.RegisterAttendee(f.ctx, primitive.NewObjectID(), &model.Attendee{Name: "Ada"}, primitive.NilObjectID)
	assert.True(t, errors.IsReference(err), "unknown conference wins over missing email")

	err = f.engine.RegisterAttendee(f.ctx, primitive.NilObjectID, &model.Attendee{Name: "Ada"}, primitive.NilObjectID)
	var ve *errors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"email", "conference"}, ve.Fields)

	conf := f.conference(t, "Tech Summit", 10)
	err = f.engine.RegisterAttendee(f.ctx, conf.Id, &model.Attendee{Name: "Ada"}, primitive.NilObjectID)
	assert.True(t, errors.IsValidation(err))
	assert.Zero(t, f.count(t, model.KindAttendee, nil))
}

func TestRegisterAttendeeDuplicateEmailPerConference(t *testing.T) {
	f := setup(t)
	first := f.conference(t, "First", 10)
	second := f.conference(t, "Second", 10)
	f.attendee(t, first.Id, "ada@example.com")

	err := f.engine.RegisterAttendee(f.ctx, first.Id, &model.Attendee{Name: "Ada", Email: "ADA@example.com"}, primitive.NilObjectID)
	assert.True(t, errors.IsConflict(err))

	f.attendee(t, second.Id, "ada@example.com")
	assert.Equal(t, 2, f.count(t, model.KindAttendee, nil))
}

func TestUpdateAttendeeLockedFields(t *testing.T) {
	f := setup(t)
	conf := f.conference(t, "Tech Summit", 10)
	a := f.attendee(t, conf.Id, "ada@example.com")
	taken := f.attendee(t, conf.Id, "bob@example.com")

	for _, field := range []string{"status", "conference", "created_by"} {
		_, err := f.engine.UpdateAttendee(f.ctx, a.Id, database.Fields{field: "x"})
		assert.Truef(t, errors.IsValidation(err), field)
	}

	_, err := f.engine.UpdateAttendee(f.ctx, a.Id, database.Fields{"email": " BOB@Example.com "})
	var ce *errors.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, taken.Email, ce.Value)

	updated, err := f.engine.UpdateAttendee(f.ctx, a.Id, database.Fields{"company": "Analytical Engines", "ticket_type": model.TicketVIP})
	require.NoError(t, err)
	assert.Equal(t, "Analytical Engines", updated.Company)
	assert.Equal(t, model.TicketVIP, updated.TicketType)
	assert.Equal(t, model.AttendeePending, updated.Status)
}

func TestAttendeeTransitions(t *testing.T) {
	f := setup(t)
	conf := f.conference(t, "Tech Summit", 10)
	a := f.attendee(t, conf.Id, "ada@example.com")
	b := f.attendee(t, conf.Id, "bob@example.com")

	confirmed, err := f.engine.ConfirmAttendee(f.ctx, a.Id)
	require.NoError(t, err)
	assert.Equal(t, model.AttendeeConfirmed, confirmed.Status)

	_, err = f.engine.CancelAttendee(f.ctx, a.Id)
	assert.True(t, errors.IsValidation(err), "confirmed attendees stay confirmed")

	cancelled, err := f.engine.CancelAttendee(f.ctx, b.Id)
	require.NoError(t, err)
	assert.Equal(t, model.AttendeeCancelled, cancelled.Status)

	_, err = f.engine.ConfirmAttendee(f.ctx, b.Id)
	assert.True(t, errors.IsValidation(err))

	_, err = f.engine.ConfirmAttendee(f.ctx, primitive.NewObjectID())
	assert.True(t, errors.IsNotFound(err))
}

func TestScheduleSessionResolvesReferences(t *testing.T) {
	f := setup(t)
	conf := f.conference(t, "Tech Summit", 10)
	speaker := f.speaker(t, "grace")

	tests := []struct {
		description string
		conference  primitive.ObjectID
		speaker     primitive.ObjectID
		field       string
	}{
		{"unknown conference", primitive.NewObjectID(), speaker.Id, "conference"},
		{"unknown speaker", conf.Id, primitive.NewObjectID(), "speaker"},
	}
	for _, test := range tests {
		err := f.engine.ScheduleSession(f.ctx, &model.Session{
			Title:      "Keynote",
			Conference: test.conference,
			Speaker:    test.speaker,
			Date:       time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			StartTime:  "09:00",
		})
		var re *errors.ReferenceError
		require.ErrorAsf(t, err, &re, test.description)
		assert.Equalf(t, test.field, re.Field, test.description)
	}
	assert.Zero(t, f.count(t, model.KindSession, nil))

	s := f.session(t, conf.Id, speaker.Id, "Keynote")
	assert.Equal(t, model.DefaultSessionDuration, s.Duration)
}

func TestUpdateSessionReresolvesReferences(t *testing.T) {
	f := setup(t)
	conf := f.conference(t, "Tech Summit", 10)
	speaker := f.speaker(t, "grace")
	other := f.speaker(t, "alan")
	s := f.session(t, conf.Id, speaker.Id, "Keynote")

	_, err := f.engine.UpdateSession(f.ctx, s.Id, database.Fields{"speaker": primitive.NewObjectID()})
	assert.True(t, errors.IsReference(err))

	_, err = f.engine.UpdateSession(f.ctx, s.Id, database.Fields{"conference": "not-an-id"})
	assert.True(t, errors.IsValidation(err))

	updated, err := f.engine.UpdateSession(f.ctx, s.Id, database.Fields{"speaker": other.Id, "duration": 45})
	require.NoError(t, err)
	assert.Equal(t, other.Id, updated.Speaker)
	assert.Equal(t, 45, updated.Duration)
	assert.Equal(t, "Keynote", updated.Title)
}

func TestUpdateConferenceKeepsCreator(t *testing.T) {
	f := setup(t)
	actor := primitive.NewObjectID()
	conf := &model.Conference{Name: "Tech Summit"}
	require.NoError(t, f.engine.CreateConference(f.ctx, conf, actor))

	_, err := f.engine.UpdateConference(f.ctx, conf.Id, database.Fields{"created_by": primitive.NewObjectID()})
	assert.True(t, errors.IsValidation(err))

	updated, err := f.engine.UpdateConference(f.ctx, conf.Id, database.Fields{"status": model.ConferenceActive})
	require.NoError(t, err)
	assert.Equal(t, model.ConferenceActive, updated.Status)
	assert.Equal(t, actor, updated.CreatedBy)
}

func TestDeleteConferenceCascades(t *testing.T) {
	f := setup(t)
	doomed := f.conference(t, "Doomed", 10)
	kept := f.conference(t, "Kept", 10)
	speaker := f.speaker(t, "grace")

	f.attendee(t, doomed.Id, "a@example.com")
	f.attendee(t, doomed.Id, "b@example.com")
	f.session(t, doomed.Id, speaker.Id, "Doomed talk")
	keptAttendee := f.attendee(t, kept.Id, "a@example.com")
	keptSession := f.session(t, kept.Id, speaker.Id, "Kept talk")

	require.NoError(t, f.engine.DeleteConference(f.ctx, doomed.Id))

	assert.Zero(t, f.count(t, model.KindAttendee, bson.M{"conference": doomed.Id}))
	assert.Zero(t, f.count(t, model.KindSession, bson.M{"conference": doomed.Id}))
	ok, err := f.entities.Exists(f.ctx, model.KindConference, doomed.Id)
	require.NoError(t, err)
	assert.False(t, ok)

	var a model.Attendee
	assert.NoError(t, f.entities.Get(f.ctx, keptAttendee.Id, &a))
	var s model.Session
	assert.NoError(t, f.entities.Get(f.ctx, keptSession.Id, &s))
	var sp model.Speaker
	assert.NoError(t, f.entities.Get(f.ctx, speaker.Id, &sp), "speakers survive a cascade")

	err = f.engine.DeleteConference(f.ctx, doomed.Id)
	assert.True(t, errors.IsNotFound(err))
}

// failingStore breaks the attendee half of a cascade.
type failingStore struct {
	*database.LocalStore
}

var errInjected = stderrors.New("injected failure")

func (s failingStore) DeleteMany(ctx context.Context, kind model.Kind, filter bson.M) (int64, error) {
	if kind == model.KindAttendee {
		return 0, errInjected
	}
	return s.LocalStore.DeleteMany(ctx, kind, filter)
}

func TestDeleteConferenceFailureRollsBack(t *testing.T) {
	local, err := database.NewLocalStore("")
	require.NoError(t, err)
	f := setupWith(t, failingStore{local})

	conf := f.conference(t, "Tech Summit", 10)
	speaker := f.speaker(t, "grace")
	f.attendee(t, conf.Id, "a@example.com")
	f.session(t, conf.Id, speaker.Id, "Keynote")

	err = f.engine.DeleteConference(f.ctx, conf.Id)
	assert.ErrorIs(t, err, errInjected)

	assert.Equal(t, 1, f.count(t, model.KindConference, nil))
	assert.Equal(t, 1, f.count(t, model.KindAttendee, nil))
	assert.Equal(t, 1, f.count(t, model.KindSession, nil), "deleted sessions are restored")
}

func TestDeleteSpeakerLeavesSessions(t *testing.T) {
	f := setup(t)
	conf := f.conference(t, "Tech Summit", 10)
	speaker := f.speaker(t, "grace")
	s := f.session(t, conf.Id, speaker.Id, "Keynote")

	require.NoError(t, f.engine.DeleteSpeaker(f.ctx, speaker.Id))
	var stored model.Session
	require.NoError(t, f.entities.Get(f.ctx, s.Id, &stored))
	assert.Equal(t, speaker.Id, stored.Speaker)

	assert.True(t, errors.IsNotFound(f.engine.DeleteSpeaker(f.ctx, speaker.Id)))
	require.NoError(t, f.engine.DeleteSession(f.ctx, s.Id))
	assert.True(t, errors.IsNotFound(f.engine.DeleteSession(f.ctx, s.Id)))
}

func TestSweepOrphans(t *testing.T) {
	f := setup(t)
	conf := f.conference(t, "Tech Summit", 10)
	speaker := f.speaker(t, "grace")
	f.attendee(t, conf.Id, "a@example.com")
	f.session(t, conf.Id, speaker.Id, "Keynote")

	gone := f.conference(t, "Gone", 10)
	f.attendee(t, gone.Id, "a@example.com")
	f.attendee(t, gone.Id, "b@example.com")
	f.session(t, gone.Id, speaker.Id, "Orphaned talk")
	// Simulates a cascade interrupted on a store without transactions.
	require.NoError(t, f.entities.Delete(f.ctx, model.KindConference, gone.Id))

	removed, err := f.engine.SweepOrphans(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, 1, f.count(t, model.KindAttendee, nil))
	assert.Equal(t, 1, f.count(t, model.KindSession, nil))

	removed, err = f.engine.SweepOrphans(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

// stallingStore holds the attendee half of a cascade until released, then
// fails it.
type stallingStore struct {
	*database.LocalStore
	reached chan struct{}
	release chan struct{}
}

func (s stallingStore) DeleteMany(ctx context.Context, kind model.Kind, filter bson.M) (int64, error) {
	if kind == model.KindAttendee {
		close(s.reached)
		<-s.release
		return 0, errInjected
	}
	return s.LocalStore.DeleteMany(ctx, kind, filter)
}

func TestCascadeInProgressIsInvisible(t *testing.T) {
	local, err := database.NewLocalStore("")
	require.NoError(t, err)
	store := stallingStore{LocalStore: local, reached: make(chan struct{}), release: make(chan struct{})}
	f := setupWith(t, store)

	conf := f.conference(t, "Tech Summit", 10)
	speaker := f.speaker(t, "grace")
	f.attendee(t, conf.Id, "a@example.com")
	f.session(t, conf.Id, speaker.Id, "Keynote")

	deleted := make(chan error, 1)
	go func() { deleted <- f.engine.DeleteConference(f.ctx, conf.Id) }()
	<-store.reached

	type view struct {
		conferences, sessions int
		err                   error
	}
	seen := make(chan view, 1)
	go func() {
		var v view
		if v.conferences, v.err = f.entities.Count(f.ctx, model.KindConference, nil); v.err == nil {
			v.sessions, v.err = f.entities.Count(f.ctx, model.KindSession, nil)
		}
		seen <- v
	}()

	select {
	case v := <-seen:
		t.Fatalf("read finished while the cascade was open: %+v", v)
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	assert.ErrorIs(t, <-deleted, errInjected)
	v := <-seen
	require.NoError(t, v.err)
	assert.Equal(t, 1, v.conferences)
	assert.Equal(t, 1, v.sessions)
}
