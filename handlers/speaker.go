package handlers

import (
	"conference-webapp/database"
	"conference-webapp/errors"
	"conference-webapp/model"

	"github.com/gofiber/fiber/v2"
)

type speakerRequest struct {
	Name      *string  `json:"name"`
	Email     *string  `json:"email"`
	Company   *string  `json:"company"`
	Title     *string  `json:"title"`
	Expertise *string  `json:"expertise"`
	Fee       *float64 `json:"fee"`
	Bio       *string  `json:"bio"`
}

func (r speakerRequest) fields() database.Fields {
	fields := database.Fields{}
	set := func(key string, value *string) {
		if value != nil {
			fields[key] = *value
		}
	}
	set("name", r.Name)
	set("email", r.Email)
	set("company", r.Company)
	set("title", r.Title)
	set("expertise", r.Expertise)
	set("bio", r.Bio)
	if r.Fee != nil {
		fields["fee"] = *r.Fee
	}
	return fields
}

func (h *Handlers) GetSpeakers(c *fiber.Ctx) error {
	filter, opts, err := listOptions(c, false)
	if err != nil {
		return h.fail(c, err)
	}
	return h.list(c, model.KindSpeaker, filter, opts)
}

func (h *Handlers) GetSpeaker(c *fiber.Ctx) error {
	id, err := idParam(c, "id", model.KindSpeaker)
	if err != nil {
		return h.fail(c, err)
	}
	speaker := &model.Speaker{}
	if err := h.Entities.Get(c.UserContext(), id, speaker); err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "", speaker)
}

func (h *Handlers) CreateSpeaker(c *fiber.Ctx) error {
	req := speakerRequest{}
	if err := c.BodyParser(&req); err != nil {
		return errors.RaiseBadRequestError(c, "unacceptable speaker parameters: "+err.Error())
	}
	speaker := &model.Speaker{}
	if err := fill(req.fields(), speaker); err != nil {
		return h.fail(c, errors.Invalid("speaker", err.Error()))
	}
	if err := h.Integrity.CreateSpeaker(c.UserContext(), speaker, actor(c)); err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusCreated, "speaker created", speaker)
}

func (h *Handlers) UpdateSpeaker(c *fiber.Ctx) error {
	id, err := idParam(c, "id", model.KindSpeaker)
	if err != nil {
		return h.fail(c, err)
	}
	req := speakerRequest{}
	if err := c.BodyParser(&req); err != nil {
		return errors.RaiseBadRequestError(c, "unacceptable speaker parameters: "+err.Error())
	}
	speaker, err := h.Integrity.UpdateSpeaker(c.UserContext(), id, req.fields())
	if err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "speaker updated", speaker)
}

func (h *Handlers) DeleteSpeaker(c *fiber.Ctx) error {
	id, err := idParam(c, "id", model.KindSpeaker)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Integrity.DeleteSpeaker(c.UserContext(), id); err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "entity deleted", "speaker with id "+id.Hex()+" was deleted")
}
