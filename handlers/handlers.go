package handlers

import (
	"conference-webapp/auth"
	"conference-webapp/database"
	"conference-webapp/errors"
	"conference-webapp/integrity"
	"conference-webapp/logger"
	"conference-webapp/middleware"
	"conference-webapp/model"
	"conference-webapp/stats"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Handlers carries the collaborators of every route. Nothing request related
// is kept here; the acting identity travels in the request locals.
type Handlers struct {
	Entities  *database.Entities
	Integrity *integrity.Engine
	Stats     *stats.Engine
	Auth      *auth.Engine
	Log       *logger.Logger
}

func New(entities *database.Entities, graph *integrity.Engine, aggregates *stats.Engine, sessions *auth.Engine, log *logger.Logger) *Handlers {
	return &Handlers{
		Entities:  entities,
		Integrity: graph,
		Stats:     aggregates,
		Auth:      sessions,
		Log:       log.With("component", "http"),
	}
}

func (h *Handlers) GetHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "success", "message": "ok", "data": nil})
}

func success(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "success",
		"message": message,
		"data":    data})
}

func (h *Handlers) fail(c *fiber.Ctx, err error) error {
	if errors.StatusOf(err) >= fiber.StatusInternalServerError {
		h.Log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return errors.Respond(c, err)
}

// idParam parses the route parameter name. A malformed id cannot exist, so it
// is reported as not found.
func idParam(c *fiber.Ctx, name string, kind model.Kind) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Params(name))
	if err != nil {
		return primitive.NilObjectID, &errors.NotFoundError{Kind: kind.Singular(), ID: c.Params(name)}
	}
	return id, nil
}

// reference parses an id given in a request body. An empty value stays the
// nil id so that required field checks report it; a malformed one cannot
// resolve.
func reference(field, value string) (primitive.ObjectID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return primitive.NilObjectID, nil
	}
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		return primitive.NilObjectID, &errors.ReferenceError{Field: field, ID: value}
	}
	return id, nil
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Invalid(field, "expected a date like 2006-01-02")
}

// fill decodes fields into rec, the way the store would hand it back.
func fill(fields database.Fields, rec model.Record) error {
	raw, err := bson.Marshal(fields)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, rec)
}

func actor(c *fiber.Ctx) primitive.ObjectID {
	if identity := middleware.CurrentIdentity(c); identity != nil {
		return identity.User.Id
	}
	return primitive.NilObjectID
}

var sortable = map[string]bool{
	"name": true, "email": true, "title": true, "capacity": true, "fee": true,
	"date": true, "start_date": true, "created_at": true, "status": true,
}

// listOptions reads ?sort=<field>&order=desc and an optional ?conference=<id>
// filter.
func listOptions(c *fiber.Ctx, byConference bool) (bson.M, database.FindOptions, error) {
	opts := database.FindOptions{}
	if sortBy := c.Query("sort"); sortBy != "" {
		if !sortable[sortBy] {
			return nil, opts, errors.Invalid("sort", "field cannot be sorted on")
		}
		opts.SortBy = sortBy
		opts.Descending = strings.EqualFold(c.Query("order"), "desc")
	}

	filter := bson.M{}
	if conf := c.Query("conference"); byConference && conf != "" {
		id, err := primitive.ObjectIDFromHex(conf)
		if err != nil {
			return nil, opts, errors.Invalid("conference", "malformed conference id")
		}
		filter["conference"] = id
	}
	return filter, opts, nil
}

func (h *Handlers) list(c *fiber.Ctx, kind model.Kind, filter bson.M, opts database.FindOptions) error {
	records, err := database.Collect(h.Entities.List(c.UserContext(), kind, filter, opts))
	if err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "", records)
}
