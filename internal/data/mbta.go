// Package data implements the upstream API boundary: the MBTA V3 prediction
// client behind the business layer's Fetcher interface.
package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"InstantMBTA/internal/biz"
	"InstantMBTA/internal/conf"
	"InstantMBTA/internal/model"
	apperrors "InstantMBTA/pkg/errors"
)

const userAgent = "InstantMBTA/1.0"

// MBTAClient fetches predictions from the MBTA V3 API. Every call goes
// through the shared circuit breaker: transport errors, timeouts, and non-2xx
// responses count toward opening it, while malformed payloads do not (the
// upstream was reachable; only the payload shape was off).
type MBTAClient struct {
	baseURL    string
	apiKey     string
	breaker    *biz.Breaker
	httpClient *http.Client
	logger     *log.Helper
}

// NewMBTAClient creates a prediction client for the configured API.
func NewMBTAClient(cfg *conf.API, breaker *biz.Breaker, logger log.Logger) *MBTAClient {
	return &MBTAClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.Key,
		breaker: breaker,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: log.NewHelper(logger),
	}
}

// Fetch retrieves predictions for one tracked request. It fails fast with a
// CircuitOpenError while the breaker is open, without a network attempt and
// without consuming the per-cycle timeout budget. No retry happens here; the
// next scheduled cycle is the retry.
func (c *MBTAClient) Fetch(ctx context.Context, req model.PredictionRequest) ([]model.Prediction, error) {
	const op = "fetch predictions"

	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}

	requestURL := c.predictionsURL(req)
	c.logger.Debugw("fetching predictions", "url", requestURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		c.breaker.Record(biz.OutcomeFailure)
		return nil, &apperrors.UpstreamError{Op: op, Err: err}
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "application/vnd.api+json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.breaker.Record(biz.OutcomeFailure)
		return nil, &apperrors.UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		c.breaker.Record(biz.OutcomeFailure)
		return nil, &apperrors.UpstreamError{Op: op, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.Record(biz.OutcomeFailure)
		return nil, &apperrors.UpstreamError{Op: op, Err: err}
	}

	var payload jsonAPIResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		// The upstream answered; the circuit tracks availability, not
		// payload shape.
		c.breaker.Record(biz.OutcomeSuccess)
		return nil, &apperrors.DecodeError{Op: op, Err: err}
	}

	c.breaker.Record(biz.OutcomeSuccess)
	return c.decodePredictions(req, &payload)
}

// predictionsURL builds the filtered predictions query. The page limit asks
// for twice the requested count so post-filtering (past departures, missing
// times) still leaves enough rows; the static credential rides along as a
// query parameter the way the V3 API expects.
func (c *MBTAClient) predictionsURL(req model.PredictionRequest) string {
	q := url.Values{}
	q.Set("filter[stop]", req.StationID)
	q.Set("filter[route]", req.RouteID)
	q.Set("filter[direction_id]", req.Direction.ID())
	q.Set("sort", "departure_time")
	q.Set("page[limit]", strconv.Itoa(req.Count*2))
	q.Set("include", "schedule,trip")
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	return fmt.Sprintf("%s/predictions?%s", c.baseURL, q.Encode())
}

// decodePredictions maps the JSON:API payload into canonical predictions.
// Entries carrying neither a time nor an included schedule are dropped.
func (c *MBTAClient) decodePredictions(req model.PredictionRequest, payload *jsonAPIResponse) ([]model.Prediction, error) {
	const op = "fetch predictions"

	schedules := make(map[string]*resourceAttributes)
	headsigns := make(map[string]string)
	for i := range payload.Included {
		inc := &payload.Included[i]
		switch inc.Type {
		case "schedule":
			schedules[inc.ID] = &inc.Attributes
		case "trip":
			headsigns[inc.ID] = inc.Attributes.Headsign
		}
	}

	predictions := make([]model.Prediction, 0, len(payload.Data))
	for _, item := range payload.Data {
		attrs := item.Attributes

		predicted, err := parseTimestamp(attrs.DepartureTime)
		if err != nil {
			return nil, &apperrors.DecodeError{Op: op, Err: err}
		}
		if predicted == nil {
			if predicted, err = parseTimestamp(attrs.ArrivalTime); err != nil {
				return nil, &apperrors.DecodeError{Op: op, Err: err}
			}
		}

		var scheduled *time.Time
		if rel := item.Relationships.Schedule; rel != nil && rel.Data != nil {
			if schedAttrs, ok := schedules[rel.Data.ID]; ok {
				if scheduled, err = parseTimestamp(schedAttrs.DepartureTime); err != nil {
					return nil, &apperrors.DecodeError{Op: op, Err: err}
				}
			}
		}

		if predicted == nil && scheduled == nil {
			continue
		}

		p := model.Prediction{
			RouteID:   req.RouteID,
			Direction: req.Direction,
			StopID:    req.StationID,
			Scheduled: scheduled,
			Predicted: predicted,
			Status:    model.ParseStatus(attrs.Status),
		}
		if rel := item.Relationships.Route; rel != nil && rel.Data != nil {
			p.RouteID = rel.Data.ID
		}
		if rel := item.Relationships.Stop; rel != nil && rel.Data != nil {
			p.StopID = rel.Data.ID
		}
		if attrs.DirectionID != nil {
			if *attrs.DirectionID == 1 {
				p.Direction = model.DirectionOutbound
			} else {
				p.Direction = model.DirectionInbound
			}
		}
		if rel := item.Relationships.Trip; rel != nil && rel.Data != nil {
			p.Destination = headsigns[rel.Data.ID]
		}

		predictions = append(predictions, p)
	}

	return predictions, nil
}

func parseTimestamp(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, fmt.Errorf("bad timestamp %q: %w", *s, err)
	}
	return &t, nil
}
