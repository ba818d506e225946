package handlers

import (
	"conference-webapp/database"
	"conference-webapp/errors"
	"conference-webapp/model"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
)

type attendeeRequest struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	Company    *string `json:"company"`
	Title      *string `json:"title"`
	Conference *string `json:"conference"`
	TicketType *string `json:"ticket_type"`
	Status     *string `json:"status"`
}

func (r attendeeRequest) fields() database.Fields {
	fields := database.Fields{}
	if r.Name != nil {
		fields["name"] = *r.Name
	}
	if r.Email != nil {
		fields["email"] = *r.Email
	}
	if r.Company != nil {
		fields["company"] = *r.Company
	}
	if r.Title != nil {
		fields["title"] = *r.Title
	}
	if r.TicketType != nil {
		fields["ticket_type"] = strings.ToLower(strings.TrimSpace(*r.TicketType))
	}
	return fields
}

func (h *Handlers) GetAttendees(c *fiber.Ctx) error {
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
	return h.list(c, model.KindAttendee, filter, opts)
}

func (h *Handlers) GetAttendee(c *fiber.Ctx) error {
	id, err := idParam(c, "id", model.KindAttendee)
	if err != nil {
		return h.fail(c, err)
	}
	attendee := &model.Attendee{}
	if err := h.Entities.Get(c.UserContext(), id, attendee); err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "", attendee)
}

// RegisterAttendee takes the conference from the route when nested under
// /conference/:confId, from the body otherwise. A supplied status is ignored.
func (h *Handlers) RegisterAttendee(c *fiber.Ctx) error {
	req := attendeeRequest{}
	if err := c.BodyParser(&req); err != nil {
		return errors.RaiseBadRequestError(c, "incorrect input for attendee parameters: "+err.Error())
	}

	conference := c.Params("confId")
	if conference == "" && req.Conference != nil {
		conference = *req.Conference
	}
	conferenceId, err := reference("conference", conference)
	if err != nil {
		return h.fail(c, err)
	}

	attendee := &model.Attendee{}
	if err := fill(req.fields(), attendee); err != nil {
		return h.fail(c, errors.Invalid("attendee", err.Error()))
	}
	if err := h.Integrity.RegisterAttendee(c.UserContext(), conferenceId, attendee, actor(c)); err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusCreated, "attendee registered", attendee)
}

func (h *Handlers) UpdateAttendee(c *fiber.Ctx) error {
	id, err := idParam(c, "id", model.KindAttendee)
	if err != nil {
		return h.fail(c, err)
	}
	req := attendeeRequest{}
	if err := c.BodyParser(&req); err != nil {
		return errors.RaiseBadRequestError(c, "incorrect input for attendee parameters: "+err.Error())
	}
	if req.Status != nil {
		return h.fail(c, errors.Invalid("status", "use the confirm or cancel routes"))
	}
	if req.Conference != nil {
		return h.fail(c, errors.Invalid("conference", "a registration cannot move to another conference"))
	}

	attendee, err := h.Integrity.UpdateAttendee(c.UserContext(), id, req.fields())
	if err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "attendee updated", attendee)
}

func (h *Handlers) ConfirmAttendee(c *fiber.Ctx) error {
	id, err := idParam(c, "id", model.KindAttendee)
	if err != nil {
		return h.fail(c, err)
	}
	attendee, err := h.Integrity.ConfirmAttendee(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "attendee confirmed", attendee)
}

func (h *Handlers) CancelAttendee(c *fiber.Ctx) error {
	id, err := idParam(c, "id", model.KindAttendee)
	if err != nil {
		return h.fail(c, err)
	}
	attendee, err := h.Integrity.CancelAttendee(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "attendee cancelled", attendee)
}

func (h *Handlers) DeleteAttendee(c *fiber.Ctx) error {
	id, err := idParam(c, "id", model.KindAttendee)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Integrity.DeleteAttendee(c.UserContext(), id); err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "entity deleted", "attendee with id "+id.Hex()+" was deleted")
}
