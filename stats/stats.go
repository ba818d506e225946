// Package stats derives read-only figures from the current conference graph.
// Nothing here is stored or cached; every call reads the store again.
package stats

import (
	"conference-webapp/database"
	"conference-webapp/model"
	"context"
	"math"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// TicketPrices is the price list used for revenue, in whole dollars. Speaker
// fees are not deducted.
var TicketPrices = map[model.TicketType]int{
	model.TicketStandard: 299,
	model.TicketPremium:  499,
	model.TicketVIP:      799,
}

type Counts struct {
	Conferences int `json:"conferences"`
	Attendees   int `json:"attendees"`
	Speakers    int `json:"speakers"`
	Sessions    int `json:"sessions"`
}

type Rollup struct {
	Conference       primitive.ObjectID `json:"conference"`
	Name             string             `json:"name"`
	AttendeeCount    int                `json:"attendee_count"`
	SessionCount     int                `json:"session_count"`
	Revenue          int                `json:"revenue"`
	RegistrationRate int                `json:"registration_rate"`
}

type Dashboard struct {
	Counts        Counts   `json:"counts"`
	ConfirmedRate int      `json:"confirmed_rate"`
	TotalRevenue  int      `json:"total_revenue"`
	Conferences   []Rollup `json:"conferences"`
}

type Engine struct {
	entities *database.Entities
}

func New(entities *database.Entities) *Engine {
	return &Engine{entities: entities}
}

// Revenue sums the ticket prices of attendees, skipping cancelled ones.
func Revenue(attendees []*model.Attendee) int {
	total := 0
	for _, a := range attendees {
		if a.Status == model.AttendeeCancelled {
			continue
		}
		total += TicketPrices[a.TicketType]
	}
	return total
}

// RegistrationRate is registered/capacity as a rounded percentage, 0 when
// capacity is not positive.
func RegistrationRate(registered, capacity int) int {
	if capacity <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(registered) / float64(capacity)))
}

func active(attendees []*model.Attendee) int {
	n := 0
	for _, a := range attendees {
		if a.Status != model.AttendeeCancelled {
			n++
		}
	}
	return n
}

func (e *Engine) conference(ctx context.Context, id primitive.ObjectID) (*model.Conference, []*model.Attendee, error) {
	conf := &model.Conference{}
	if err := e.entities.Get(ctx, id, conf); err != nil {
		return nil, nil, err
	}
	attendees, err := database.Collect(database.List[model.Attendee](ctx, e.entities, bson.M{"conference": id}, database.FindOptions{}))
	if err != nil {
		return nil, nil, err
	}
	return conf, attendees, nil
}

// RegistrationRate of the conference with id. Pending and confirmed attendees
// count as registered.
func (e *Engine) RegistrationRate(ctx context.Context, id primitive.ObjectID) (int, error) {
	conf, attendees, err := e.conference(ctx, id)
	if err != nil {
		return 0, err
	}
	return RegistrationRate(active(attendees), conf.Capacity), nil
}

func (e *Engine) Revenue(ctx context.Context, id primitive.ObjectID) (int, error) {
	_, attendees, err := e.conference(ctx, id)
	if err != nil {
		return 0, err
	}
	return Revenue(attendees), nil
}

func (e *Engine) PerConferenceRollup(ctx context.Context, id primitive.ObjectID) (Rollup, error) {
	conf, attendees, err := e.conference(ctx, id)
	if err != nil {
		return Rollup{}, err
	}
	sessions, err := e.entities.Count(ctx, model.KindSession, bson.M{"conference": id})
	if err != nil {
		return Rollup{}, err
	}
	return Rollup{
		Conference:       conf.Id,
		Name:             conf.Name,
		AttendeeCount:    len(attendees),
		SessionCount:     sessions,
		Revenue:          Revenue(attendees),
		RegistrationRate: RegistrationRate(active(attendees), conf.Capacity),
	}, nil
}

// GlobalDashboardCounts counts every entity kind, one concurrent query per kind.
func (e *Engine) GlobalDashboardCounts(ctx context.Context) (Counts, error) {
	var counts Counts
	g, ctx := errgroup.WithContext(ctx)
	targets := map[model.Kind]*int{
		model.KindConference: &counts.Conferences,
		model.KindAttendee:   &counts.Attendees,
		model.KindSpeaker:    &counts.Speakers,
		model.KindSession:    &counts.Sessions,
	}
	for kind, target := range targets {
		g.Go(func() error {
			n, err := e.entities.Count(ctx, kind, nil)
			if err != nil {
				return err
			}
			*target = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Counts{}, err
	}
	return counts, nil
}

// Dashboard combines the global counts, the share of confirmed attendees, the
// revenue over all conferences and a rollup per conference.
func (e *Engine) Dashboard(ctx context.Context) (Dashboard, error) {
	var (
		counts      Counts
		conferences []*model.Conference
		attendees   []*model.Attendee
		sessions    []*model.Session
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		counts, err = e.GlobalDashboardCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		conferences, err = database.Collect(database.List[model.Conference](gctx, e.entities, nil, database.FindOptions{}))
		return err
	})
	g.Go(func() (err error) {
		attendees, err = database.Collect(database.List[model.Attendee](gctx, e.entities, nil, database.FindOptions{}))
		return err
	})
	g.Go(func() (err error) {
		sessions, err = database.Collect(database.List[model.Session](gctx, e.entities, nil, database.FindOptions{}))
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	byConference := map[primitive.ObjectID][]*model.Attendee{}
	confirmed := 0
	for _, a := range attendees {
		byConference[a.Conference] = append(byConference[a.Conference], a)
		if a.Status == model.AttendeeConfirmed {
			confirmed++
		}
	}
	sessionCount := map[primitive.ObjectID]int{}
	for _, s := range sessions {
		sessionCount[s.Conference]++
	}

	dashboard := Dashboard{
		Counts:      counts,
		Conferences: make([]Rollup, 0, len(conferences)),
	}
	if len(attendees) > 0 {
		dashboard.ConfirmedRate = int(math.Round(100 * float64(confirmed) / float64(len(attendees))))
	}
	for _, conf := range conferences {
		own := byConference[conf.Id]
		rollup := Rollup{
			Conference:       conf.Id,
			Name:             conf.Name,
			AttendeeCount:    len(own),
			SessionCount:     sessionCount[conf.Id],
			Revenue:          Revenue(own),
			RegistrationRate: RegistrationRate(active(own), conf.Capacity),
		}
		dashboard.TotalRevenue += rollup.Revenue
		dashboard.Conferences = append(dashboard.Conferences, rollup)
	}
	return dashboard, nil
}
