// Package integrity keeps the relationships of the conference graph intact:
// attendees and sessions always point at an existing conference, sessions at
// an existing speaker, and deleting a conference removes its children.
package integrity

import (
	"conference-webapp/database"
	"conference-webapp/errors"
	"conference-webapp/logger"
	"conference-webapp/model"
	"context"
	stderrors "errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Engine struct {
	entities *database.Entities
	log      *logger.Logger
}

func New(entities *database.Entities, log *logger.Logger) *Engine {
	return &Engine{entities: entities, log: log.With("component", "integrity")}
}

// EnsureIndexes installs the unique constraints the engine relies on.
func (e *Engine) EnsureIndexes(ctx context.Context) error {
	return e.entities.Store().EnsureUnique(ctx, model.KindAttendee, "conference", "email")
}

func (e *Engine) store() database.Store { return e.entities.Store() }

func (e *Engine) resolve(ctx context.Context, kind model.Kind, field string, id primitive.ObjectID) error {
	ok, err := e.entities.Exists(ctx, kind, id)
	if err != nil {
		return err
	}
	if !ok {
		return &errors.ReferenceError{Field: field, ID: id.Hex()}
	}
	return nil
}

func (e *Engine) CreateConference(ctx context.Context, conf *model.Conference, actor primitive.ObjectID) error {
	conf.CreatedBy = actor
	return e.entities.Create(ctx, conf)
}

func (e *Engine) UpdateConference(ctx context.Context, id primitive.ObjectID, fields database.Fields) (*model.Conference, error) {
	if _, ok := fields["created_by"]; ok {
		return nil, errors.Invalid("created_by", "creator cannot be changed")
	}
	conf := &model.Conference{}
	if err := e.entities.Update(ctx, id, conf, fields); err != nil {
		return nil, err
	}
	return conf, nil
}

func (e *Engine) CreateSpeaker(ctx context.Context, speaker *model.Speaker, actor primitive.ObjectID) error {
	speaker.CreatedBy = actor
	return e.entities.Create(ctx, speaker)
}

func (e *Engine) UpdateSpeaker(ctx context.Context, id primitive.ObjectID, fields database.Fields) (*model.Speaker, error) {
	speaker := &model.Speaker{}
	if err := e.entities.Update(ctx, id, speaker, fields); err != nil {
		return nil, err
	}
	return speaker, nil
}

// RegisterAttendee adds attendee to the conference with conferenceId. The
// attendee always starts out pending whatever status the caller supplied. The
// conference is looked up in the store inside the same transaction as the
// insert, before any field of the attendee is checked.
func (e *Engine) RegisterAttendee(ctx context.Context, conferenceId primitive.ObjectID, attendee *model.Attendee, actor primitive.ObjectID) error {
	attendee.Conference = conferenceId
	attendee.Status = model.AttendeePending
	attendee.CreatedBy = actor
	attendee.Normalize()
	attendee.ApplyDefaults()

	return e.store().WithTransaction(ctx, func(ctx context.Context) error {
		// The nil id is a missing field, reported by Validate.
		if !conferenceId.IsZero() {
			if err := e.resolve(ctx, model.KindConference, "conference", conferenceId); err != nil {
				return err
			}
		}
		if err := attendee.Validate(); err != nil {
			return err
		}
		dup, err := e.entities.Count(ctx, model.KindAttendee, bson.M{"conference": conferenceId, "email": attendee.Email})
		if err != nil {
			return err
		}
		if dup > 0 {
			return &errors.ConflictError{Field: "email", Value: attendee.Email}
		}
		if err := e.entities.Create(ctx, attendee); err != nil {
			if stderrors.Is(err, database.ErrDuplicateKey) {
				return &errors.ConflictError{Field: "email", Value: attendee.Email}
			}
			return err
		}
		return nil
	})
}

// UpdateAttendee changes contact and ticket fields. Status moves only through
// ConfirmAttendee and CancelAttendee, and a registration never changes
// conference.
func (e *Engine) UpdateAttendee(ctx context.Context, id primitive.ObjectID, fields database.Fields) (*model.Attendee, error) {
	for _, locked := range []string{"status", "conference", "created_by"} {
		if _, ok := fields[locked]; ok {
			return nil, errors.Invalid(locked, "field cannot be updated")
		}
	}
	attendee := &model.Attendee{}
	err := e.entities.Update(ctx, id, attendee, fields)
	if stderrors.Is(err, database.ErrDuplicateKey) {
		return nil, &errors.ConflictError{Field: "email", Value: attendee.Email}
	}
	if err != nil {
		return nil, err
	}
	return attendee, nil
}

func (e *Engine) ConfirmAttendee(ctx context.Context, id primitive.ObjectID) (*model.Attendee, error) {
	return e.transition(ctx, id, model.AttendeeConfirmed)
}

func (e *Engine) CancelAttendee(ctx context.Context, id primitive.ObjectID) (*model.Attendee, error) {
	return e.transition(ctx, id, model.AttendeeCancelled)
}

func (e *Engine) transition(ctx context.Context, id primitive.ObjectID, to model.AttendeeStatus) (*model.Attendee, error) {
	attendee := &model.Attendee{}
	err := e.store().WithTransaction(ctx, func(ctx context.Context) error {
		if err := e.entities.Get(ctx, id, attendee); err != nil {
			return err
		}
		if attendee.Status != model.AttendeePending {
			return errors.Invalid("status", fmt.Sprintf("attendee is already %v", attendee.Status))
		}
		return e.entities.Update(ctx, id, attendee, database.Fields{"status": to})
	})
	if err != nil {
		return nil, err
	}
	return attendee, nil
}

// ScheduleSession creates session after checking that both its speaker and
// its conference exist.
func (e *Engine) ScheduleSession(ctx context.Context, session *model.Session) error {
	session.Normalize()
	session.ApplyDefaults()
	if err := session.Validate(); err != nil {
		return err
	}

	return e.store().WithTransaction(ctx, func(ctx context.Context) error {
		if err := e.resolve(ctx, model.KindConference, "conference", session.Conference); err != nil {
			return err
		}
		if err := e.resolve(ctx, model.KindSpeaker, "speaker", session.Speaker); err != nil {
			return err
		}
		return e.entities.Create(ctx, session)
	})
}

// UpdateSession re-resolves speaker and conference when they are part of
// fields.
func (e *Engine) UpdateSession(ctx context.Context, id primitive.ObjectID, fields database.Fields) (*model.Session, error) {
	session := &model.Session{}
	err := e.store().WithTransaction(ctx, func(ctx context.Context) error {
		refs := []struct {
			field string
			kind  model.Kind
		}{{"conference", model.KindConference}, {"speaker", model.KindSpeaker}}
		for _, ref := range refs {
			value, ok := fields[ref.field]
			if !ok {
				continue
			}
			refId, isId := value.(primitive.ObjectID)
			if !isId || refId.IsZero() {
				return errors.Invalid(ref.field, "must be an identifier")
			}
			if err := e.resolve(ctx, ref.kind, ref.field, refId); err != nil {
				return err
			}
		}
		return e.entities.Update(ctx, id, session, fields)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// DeleteConference removes the conference together with its sessions and
// attendees inside one transaction. Children go first so that a store without
// transactions can at worst leave orphans behind, never a parent with missing
// children. Speakers stay.
func (e *Engine) DeleteConference(ctx context.Context, id primitive.ObjectID) error {
	var sessions, attendees int64
	err := e.store().WithTransaction(ctx, func(ctx context.Context) error {
		ok, err := e.entities.Exists(ctx, model.KindConference, id)
		if err != nil {
			return err
		}
		if !ok {
			return &errors.NotFoundError{Kind: model.KindConference.Singular(), ID: id.Hex()}
		}

		if sessions, err = e.store().DeleteMany(ctx, model.KindSession, bson.M{"conference": id}); err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		if attendees, err = e.store().DeleteMany(ctx, model.KindAttendee, bson.M{"conference": id}); err != nil {
			return fmt.Errorf("delete attendees: %w", err)
		}
		return e.entities.Delete(ctx, model.KindConference, id)
	})
	if err != nil {
		return err
	}

	e.log.Info("conference deleted", "conference", id.Hex(), "sessions", sessions, "attendees", attendees)
	return nil
}

func (e *Engine) DeleteAttendee(ctx context.Context, id primitive.ObjectID) error {
	return e.entities.Delete(ctx, model.KindAttendee, id)
}

// DeleteSpeaker does not touch the sessions of the speaker.
func (e *Engine) DeleteSpeaker(ctx context.Context, id primitive.ObjectID) error {
	return e.entities.Delete(ctx, model.KindSpeaker, id)
}

func (e *Engine) DeleteSession(ctx context.Context, id primitive.ObjectID) error {
	return e.entities.Delete(ctx, model.KindSession, id)
}

type recordRef struct {
	kind model.Kind
	id   primitive.ObjectID
}

// SweepOrphans deletes attendees and sessions whose conference no longer
// exists, as left behind by an interrupted cascade on a store without
// transactions. It returns the number of removed records.
func (e *Engine) SweepOrphans(ctx context.Context) (int, error) {
	conferences := map[primitive.ObjectID]bool{}
	for conf, err := range database.List[model.Conference](ctx, e.entities, nil, database.FindOptions{}) {
		if err != nil {
			return 0, err
		}
		conferences[conf.Id] = true
	}

	var orphans []recordRef
	for attendee, err := range database.List[model.Attendee](ctx, e.entities, nil, database.FindOptions{}) {
		if err != nil {
			return 0, err
		}
		if !conferences[attendee.Conference] {
			orphans = append(orphans, recordRef{model.KindAttendee, attendee.Id})
		}
	}
	for session, err := range database.List[model.Session](ctx, e.entities, nil, database.FindOptions{}) {
		if err != nil {
			return 0, err
		}
		if !conferences[session.Conference] {
			orphans = append(orphans, recordRef{model.KindSession, session.Id})
		}
	}

	removed := 0
	for _, orphan := range orphans {
		err := e.entities.Delete(ctx, orphan.kind, orphan.id)
		if err != nil && !errors.IsNotFound(err) {
			return removed, err
		}
		if err == nil {
			removed++
		}
	}
	if removed > 0 {
		e.log.Warn("removed orphaned records", "count", removed)
	}
	return removed, nil
}
