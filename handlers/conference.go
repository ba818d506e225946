package handlers

import (
	"conference-webapp/database"
	"conference-webapp/errors"
	"conference-webapp/model"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type conferenceRequest struct {
	Name        *string `json:"name"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Capacity    *int    `json:"capacity"`
	Type        *string `json:"type"`
	Status      *string `json:"status"`
	Description *string `json:"description"`
}

// fields returns only what the request supplied.
func (r conferenceRequest) fields() (database.Fields, error) {
	fields := database.Fields{}
	if r.Name != nil {
		fields["name"] = *r.Name
	}
	if r.StartDate != nil {
		start, err := parseDate("start_date", *r.StartDate)
		if err != nil {
			return nil, err
		}
		fields["start_date"] = start
	}
	if r.EndDate != nil {
		end, err := parseDate("end_date", *r.EndDate)
		if err != nil {
			return nil, err
		}
		fields["end_date"] = end
	}
	if r.Capacity != nil {
		fields["capacity"] = *r.Capacity
	}
	if r.Type != nil {
		fields["type"] = *r.Type
	}
	if r.Status != nil {
		fields["status"] = strings.ToLower(strings.TrimSpace(*r.Status))
	}
	if r.Description != nil {
		fields["description"] = *r.Description
	}
	return fields, nil
}

func (h *Handlers) GetConferences(c *fiber.Ctx) error {
	filter, opts, err := listOptions(c, false)
	if err != nil {
		return h.fail(c, err)
	}
	return h.list(c, model.KindConference, filter, opts)
}

func (h *Handlers) GetConference(c *fiber.Ctx) error {
	id, err := idParam(c, "id", model.KindConference)
	if err != nil {
		return h.fail(c, err)
	}
	conf := &model.Conference{}
	if err := h.Entities.Get(c.UserContext(), id, conf); err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "", conf)
}

func (h *Handlers) CreateNewConference(c *fiber.Ctx) error {
	req := conferenceRequest{}
	if err := c.BodyParser(&req); err != nil {
		return errors.RaiseBadRequestError(c, "unacceptable conference parameters: "+err.Error())
	}
	fields, err := req.fields()
	if err != nil {
		return h.fail(c, err)
	}
	conf := &model.Conference{}
	if err := fill(fields, conf); err != nil {
		return h.fail(c, errors.Invalid("conference", err.Error()))
	}

	if err := h.Integrity.CreateConference(c.UserContext(), conf, actor(c)); err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusCreated, "conference created", conf)
}

// UpdateConference serves both the full update and PATCH /:id/status.
func (h *Handlers) UpdateConference(c *fiber.Ctx) error {
	id, err := idParam(c, "id", model.KindConference)
	if err != nil {
		return h.fail(c, err)
	}
	req := conferenceRequest{}
	if err := c.BodyParser(&req); err != nil {
		return errors.RaiseBadRequestError(c, "unacceptable conference parameters: "+err.Error())
	}

	// adjust accepted fields according to the request path, e.g. only the status on /status
	if strings.HasSuffix(c.Path(), "/status") {
		if req.Status == nil {
			return h.fail(c, errors.Missing("status"))
		}
		req = conferenceRequest{Status: req.Status}
	}
	fields, err := req.fields()
	if err != nil {
		return h.fail(c, err)
	}

	conf, err := h.Integrity.UpdateConference(c.UserContext(), id, fields)
	if err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "conference updated", conf)
}

func (h *Handlers) DeleteConference(c *fiber.Ctx) error {
	id, err := idParam(c, "id", model.KindConference)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Integrity.DeleteConference(c.UserContext(), id); err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "entity deleted", "conference with id "+id.Hex()+" was deleted")
}

func (h *Handlers) GetConferenceStats(c *fiber.Ctx) error {
	id, err := idParam(c, "id", model.KindConference)
	if err != nil {
		return h.fail(c, err)
	}
	rollup, err := h.Stats.PerConferenceRollup(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "", rollup)
}
