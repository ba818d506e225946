package handlers

import (
	"conference-webapp/database"
	"conference-webapp/errors"
	"conference-webapp/model"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
)

type sessionRequest struct {
	Title       *string `json:"title"`
	Speaker     *string `json:"speaker"`
	Conference  *string `json:"conference"`
	Date        *string `json:"date"`
	StartTime   *string `json:"start_time"`
	Duration    *int    `json:"duration"`
	Description *string `json:"description"`
}

func (r sessionRequest) fields() (database.Fields, error) {
	fields := database.Fields{}
	if r.Title != nil {
		fields["title"] = *r.Title
	}
	if r.Speaker != nil {
		id, err := reference("speaker", *r.Speaker)
		if err != nil {
			return nil, err
		}
		fields["speaker"] = id
	}
	if r.Conference != nil {
		id, err := reference("conference", *r.Conference)
		if err != nil {
			return nil, err
		}
		fields["conference"] = id
	}
	if r.Date != nil {
		date, err := parseDate("date", *r.Date)
		if err != nil {
			return nil, err
		}
		fields["date"] = date
	}
	if r.StartTime != nil {
		fields["start_time"] = *r.StartTime
	}
	if r.Duration != nil {
		fields["duration"] = *r.Duration
	}
	if r.Description != nil {
		fields["description"] = *r.Description
	}
	return fields, nil
}

func (h *Handlers) GetSessions(c *fiber.Ctx) error {
	filter, opts, err := listOptions(c, true)
	if err != nil {
		return h.fail(c, err)
	}
	if c.Params("confId") != "" {
		id, err := idParam(c, "confId", model.KindConference)
		if err != nil {
			return h.fail(c, err)
		}
		filter = bson.M{"conference": id}
	}
	return h.list(c, model.KindSession, filter, opts)
}

func (h *Handlers) GetSession(c *fiber.Ctx) error {
	id, err := idParam(c, "id", model.KindSession)
	if err != nil {
		return h.fail(c, err)
	}
	session := &model.Session{}
	if err := h.Entities.Get(c.UserContext(), id, session); err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "", session)
}

func (h *Handlers) ScheduleSession(c *fiber.Ctx) error {
	req := sessionRequest{}
	if err := c.BodyParser(&req); err != nil {
		return errors.RaiseBadRequestError(c, "unacceptable session parameters: "+err.Error())
	}
	if confId := c.Params("confId"); confId != "" {
		req.Conference = &confId
	}
	fields, err := req.fields()
	if err != nil {
		return h.fail(c, err)
	}
	session := &model.Session{}
	if err := fill(fields, session); err != nil {
		return h.fail(c, errors.Invalid("session", err.Error()))
	}
	if err := h.Integrity.ScheduleSession(c.UserContext(), session); err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusCreated, "session scheduled", session)
}

func (h *Handlers) UpdateSession(c *fiber.Ctx) error {
	id, err := idParam(c, "id", model.KindSession)
	if err != nil {
		return h.fail(c, err)
	}
	req := sessionRequest{}
	if err := c.BodyParser(&req); err != nil {
		return errors.RaiseBadRequestError(c, "unacceptable session parameters: "+err.Error())
	}
	fields, err := req.fields()
	if err != nil {
		return h.fail(c, err)
	}
	session, err := h.Integrity.UpdateSession(c.UserContext(), id, fields)
	if err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "session updated", session)
}

func (h *Handlers) DeleteSession(c *fiber.Ctx) error {
	id, err := idParam(c, "id", model.KindSession)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Integrity.DeleteSession(c.UserContext(), id); err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "entity deleted", "session with id "+id.Hex()+" was deleted")
}
