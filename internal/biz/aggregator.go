package biz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"InstantMBTA/internal/conf"
	"InstantMBTA/internal/model"
)

// Aggregator turns one cycle's fetched predictions into a view model.
// The variant (single-station, bidirectional, journey) is chosen once at
// construction; Build is a pure function of its inputs, so re-running it on
// the same fetch set yields an identical view model.
type Aggregator interface {
	// Requests returns the tracked requests for a cycle, in display order.
	Requests() []model.PredictionRequest
	// Build consumes fetch results aligned by index with Requests().
	// A failed fetch contributes an empty slice, never an error.
	Build(results [][]model.Prediction, now time.Time) *model.ViewModel
}

// NewAggregator resolves the configured names and returns the variant for
// the configured mode. Tracks whose names fail resolution are dropped with a
// warning; a mode whose primary station or route fails resolution is a
// startup error.
func NewAggregator(bc *conf.Bootstrap, resolver *NameResolver, logger log.Logger) (Aggregator, error) {
	helper := log.NewHelper(logger)
	switch bc.Mode {
	case conf.ModeSingleStation:
		return newSingleStation(bc, resolver, helper)
	case conf.ModeBidirectional:
		return newBidirectional(bc, resolver, helper)
	case conf.ModeJourney:
		return newJourney(bc, resolver, helper)
	}
	return nil, fmt.Errorf("unknown display mode %q", bc.Mode)
}

// selectForRequest filters predictions to the request's route and direction,
// drops entries without any usable time, already in the past, or on a later
// service date, orders by effective time ascending with route id as
// tie-break, and caps at the requested count.
func selectForRequest(req model.PredictionRequest, preds []model.Prediction, now time.Time) []model.Prediction {
	selected := make([]model.Prediction, 0, len(preds))
	for _, p := range preds {
		if p.Direction != req.Direction || !routeMatches(req.RouteID, p.RouteID) {
			continue
		}
		if p.Status == model.StatusCancelled {
			continue
		}
		t, ok := p.EffectiveTime()
		if !ok || !t.After(now) || !sameDay(t, now) {
			continue
		}
		selected = append(selected, p)
	}
	sort.SliceStable(selected, func(i, j int) bool {
		ti, _ := selected[i].EffectiveTime()
		tj, _ := selected[j].EffectiveTime()
		if ti.Equal(tj) {
			return selected[i].RouteID < selected[j].RouteID
		}
		return ti.Before(tj)
	})
	if len(selected) > req.Count {
		selected = selected[:req.Count]
	}
	return selected
}

// routeMatches handles composite route ids: the Green Line resolves to a
// comma-joined id list that the API accepts as a filter, so a prediction
// matches when its route id is any member.
func routeMatches(requestRouteID, predictionRouteID string) bool {
	if requestRouteID == predictionRouteID {
		return true
	}
	for _, id := range strings.Split(requestRouteID, ",") {
		if id == predictionRouteID {
			return true
		}
	}
	return false
}

// sameDay reports whether t falls on now's calendar date. The display shows
// bare clock times, so a next-day prediction arriving near midnight would
// read as an early departure.
func sameDay(t, now time.Time) bool {
	y1, m1, d1 := t.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func formatTime(t time.Time, format string) string {
	if format == "24h" {
		return t.Format("15:04")
	}
	return t.Format("3:04 PM")
}

// groupRows renders a selected prediction run. The first row carries the
// label, continuation rows are indented under it.
func groupRows(label string, preds []model.Prediction, display *conf.Display) []model.ViewRow {
	rows := make([]model.ViewRow, 0, len(preds))
	for i, p := range preds {
		t, _ := p.EffectiveTime()
		row := model.ViewRow{
			Time:      formatTime(t, display.TimeFormat),
			Direction: p.Direction.Marker(),
		}
		if i == 0 {
			row.Label = label
		} else {
			row.Indent = true
		}
		rows = append(rows, row)
	}
	return rows
}

// routeLabel picks the display label for a route, applying the configured
// abbreviation.
func routeLabel(resolver *NameResolver, routeID, friendly string, display *conf.Display) string {
	if display.Abbreviate {
		return resolver.Abbreviate(routeID, friendly)
	}
	return friendly
}

// trackCount falls back to one prediction per track when the config leaves
// the count out.
func trackCount(c int) int {
	if c <= 0 {
		return 1
	}
	return c
}

// singleStation tracks several route/direction pairs at one station. Rows
// are grouped per track in configuration order, never interleaved globally.
type singleStation struct {
	station  string
	requests []model.PredictionRequest
	display  *conf.Display
}

func newSingleStation(bc *conf.Bootstrap, resolver *NameResolver, helper *log.Helper) (*singleStation, error) {
	stationID, err := resolver.Resolve(KindStation, bc.Station)
	if err != nil {
		return nil, err
	}

	requests := make([]model.PredictionRequest, 0, len(bc.Tracks))
	for _, track := range bc.Tracks {
		routeID, err := resolver.Resolve(KindRoute, track.Route)
		if err != nil {
			// Resolution failure drops this track; the rest still render.
			helper.Warnw("dropping unresolvable track", "route", track.Route, "error", err)
			continue
		}
		direction, _ := model.ParseDirection(track.Direction)
		requests = append(requests, model.PredictionRequest{
			StationID:  stationID,
			RouteID:    routeID,
			RouteLabel: routeLabel(resolver, routeID, track.Route, bc.Display),
			Direction:  direction,
			Count:      trackCount(track.Count),
		})
	}
	if len(requests) == 0 {
		return nil, fmt.Errorf("no tracked route resolved for station %q", bc.Station)
	}
	return &singleStation{station: bc.Station, requests: requests, display: bc.Display}, nil
}

func (a *singleStation) Requests() []model.PredictionRequest { return a.requests }

func (a *singleStation) Build(results [][]model.Prediction, now time.Time) *model.ViewModel {
	vm := &model.ViewModel{Title: a.station, GeneratedAt: now}
	for i, req := range a.requests {
		var preds []model.Prediction
		if i < len(results) {
			preds = selectForRequest(req, results[i], now)
		}
		vm.Groups = append(vm.Groups, model.ViewGroup{
			Title: fmt.Sprintf("%s %s", req.RouteLabel, req.Direction.Marker()),
			Rows:  groupRows(req.RouteLabel, preds, a.display),
		})
	}
	return vm
}

// bidirectional tracks one route at one station in both directions, each
// direction capped independently.
type bidirectional struct {
	station  string
	requests []model.PredictionRequest
	display  *conf.Display
}

func newBidirectional(bc *conf.Bootstrap, resolver *NameResolver, helper *log.Helper) (*bidirectional, error) {
	stationID, err := resolver.Resolve(KindStation, bc.Station)
	if err != nil {
		return nil, err
	}
	routeID, err := resolver.Resolve(KindRoute, bc.Route)
	if err != nil {
		return nil, err
	}

	label := routeLabel(resolver, routeID, bc.Route, bc.Display)
	inboundCount := bc.Inbound.Show
	if inboundCount <= 0 {
		inboundCount = 2
	}
	outboundCount := bc.Outbound.Show
	if outboundCount <= 0 {
		outboundCount = 2
	}
	requests := []model.PredictionRequest{
		{StationID: stationID, RouteID: routeID, RouteLabel: label, Direction: model.DirectionInbound, Count: inboundCount},
		{StationID: stationID, RouteID: routeID, RouteLabel: label, Direction: model.DirectionOutbound, Count: outboundCount},
	}
	return &bidirectional{station: bc.Station, requests: requests, display: bc.Display}, nil
}

func (a *bidirectional) Requests() []model.PredictionRequest { return a.requests }

func (a *bidirectional) Build(results [][]model.Prediction, now time.Time) *model.ViewModel {
	vm := &model.ViewModel{Title: a.station, GeneratedAt: now}
	titles := [2]string{"Inbound", "Outbound"}
	for i, req := range a.requests {
		var preds []model.Prediction
		if i < len(results) {
			preds = selectForRequest(req, results[i], now)
		}
		vm.Groups = append(vm.Groups, model.ViewGroup{
			Title: titles[i],
			Rows:  groupRows(req.RouteLabel, preds, a.display),
		})
	}
	return vm
}

// journey tracks a linear commute on one route: inbound only at the origin,
// both directions at the destination.
type journey struct {
	route     string
	from      string
	to        string
	requests  []model.PredictionRequest
	display   *conf.Display
	showRoute bool
}

func newJourney(bc *conf.Bootstrap, resolver *NameResolver, helper *log.Helper) (*journey, error) {
	routeID, err := resolver.Resolve(KindRoute, bc.Route)
	if err != nil {
		return nil, err
	}
	fromID, err := resolver.Resolve(KindStation, bc.From)
	if err != nil {
		return nil, err
	}
	toID, err := resolver.Resolve(KindStation, bc.To)
	if err != nil {
		return nil, err
	}

	label := routeLabel(resolver, routeID, bc.Route, bc.Display)
	requests := []model.PredictionRequest{
		{StationID: fromID, RouteID: routeID, RouteLabel: label, Direction: model.DirectionInbound, Count: 1},
		{StationID: toID, RouteID: routeID, RouteLabel: label, Direction: model.DirectionInbound, Count: 1},
		{StationID: toID, RouteID: routeID, RouteLabel: label, Direction: model.DirectionOutbound, Count: 1},
	}
	return &journey{
		route:     bc.Route,
		from:      bc.From,
		to:        bc.To,
		requests:  requests,
		display:   bc.Display,
		showRoute: bc.Display.ShowRoute,
	}, nil
}

func (a *journey) Requests() []model.PredictionRequest { return a.requests }

func (a *journey) Build(results [][]model.Prediction, now time.Time) *model.ViewModel {
	title := ""
	if a.showRoute {
		title = a.route
	}
	vm := &model.ViewModel{Title: title, GeneratedAt: now}

	slot := func(i int) []model.Prediction {
		if i < len(results) {
			return selectForRequest(a.requests[i], results[i], now)
		}
		return nil
	}

	fromGroup := model.ViewGroup{Title: a.from}
	for _, p := range slot(0) {
		t, _ := p.EffectiveTime()
		fromGroup.Rows = append(fromGroup.Rows, model.ViewRow{
			Label:     "Next Inbound",
			Time:      formatTime(t, a.display.TimeFormat),
			Direction: p.Direction.Marker(),
		})
	}
	vm.Groups = append(vm.Groups, fromGroup)

	toGroup := model.ViewGroup{Title: a.to}
	for _, p := range slot(1) {
		t, _ := p.EffectiveTime()
		toGroup.Rows = append(toGroup.Rows, model.ViewRow{
			Label:     "Next Inbound",
			Time:      formatTime(t, a.display.TimeFormat),
			Direction: p.Direction.Marker(),
		})
	}
	for _, p := range slot(2) {
		t, _ := p.EffectiveTime()
		toGroup.Rows = append(toGroup.Rows, model.ViewRow{
			Label:     "Next Outbound",
			Time:      formatTime(t, a.display.TimeFormat),
			Direction: p.Direction.Marker(),
		})
	}
	vm.Groups = append(vm.Groups, toGroup)

	return vm
}
