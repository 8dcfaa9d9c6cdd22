package data

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InstantMBTA/internal/biz"
	"InstantMBTA/internal/conf"
	"InstantMBTA/internal/model"
	apperrors "InstantMBTA/pkg/errors"
)

const predictionsPayload = `{
  "data": [
    {
      "id": "prediction-1",
      "type": "prediction",
      "attributes": {
        "arrival_time": "2025-03-10T10:08:30-04:00",
        "departure_time": "2025-03-10T10:09:00-04:00",
        "direction_id": 0,
        "status": null
      },
      "relationships": {
        "route": {"data": {"id": "Orange", "type": "route"}},
        "stop": {"data": {"id": "70036", "type": "stop"}},
        "trip": {"data": {"id": "trip-1", "type": "trip"}},
        "schedule": {"data": {"id": "schedule-1", "type": "schedule"}}
      }
    },
    {
      "id": "prediction-2",
      "type": "prediction",
      "attributes": {
        "arrival_time": "2025-03-10T10:15:00-04:00",
        "departure_time": null,
        "direction_id": 1,
        "status": "Delayed"
      },
      "relationships": {
        "route": {"data": {"id": "Orange", "type": "route"}}
      }
    },
    {
      "id": "prediction-3",
      "type": "prediction",
      "attributes": {
        "arrival_time": null,
        "departure_time": null,
        "direction_id": 0,
        "status": null
      },
      "relationships": {}
    }
  ],
  "included": [
    {
      "id": "schedule-1",
      "type": "schedule",
      "attributes": {"departure_time": "2025-03-10T10:07:00-04:00"}
    },
    {
      "id": "trip-1",
      "type": "trip",
      "attributes": {"headsign": "Forest Hills"}
    }
  ]
}`

func testRequest() model.PredictionRequest {
	return model.PredictionRequest{
		StationID:  "place-ogmnl",
		RouteID:    "Orange",
		RouteLabel: "OL",
		Direction:  model.DirectionInbound,
		Count:      2,
	}
}

func newTestClient(t *testing.T, serverURL string, threshold int) (*MBTAClient, *biz.Breaker) {
	t.Helper()
	logger := log.NewStdLogger(os.Stdout)
	breaker := biz.NewBreaker(threshold, time.Minute, biz.SystemClock(), logger)
	cfg := &conf.API{BaseURL: serverURL, Key: "test-key", Timeout: 5 * time.Second}
	return NewMBTAClient(cfg, breaker, logger), breaker
}

func TestFetch_DecodesPredictions(t *testing.T) {
	var gotQuery atomic.Pointer[http.Request]
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r)
		w.Header().Set("Content-Type", "application/vnd.api+json")
		w.Write([]byte(predictionsPayload))
	}))
	defer server.Close()

	client, breaker := newTestClient(t, server.URL, 5)
	preds, err := client.Fetch(context.Background(), testRequest())
	require.NoError(t, err)

	// The entry with neither a time nor a schedule is dropped.
	require.Len(t, preds, 2)

	first := preds[0]
	assert.Equal(t, "Orange", first.RouteID)
	assert.Equal(t, model.DirectionInbound, first.Direction)
	assert.Equal(t, "70036", first.StopID)
	require.NotNil(t, first.Predicted)
	assert.Equal(t, "10:09", first.Predicted.Format("15:04"))
	require.NotNil(t, first.Scheduled)
	assert.Equal(t, "10:07", first.Scheduled.Format("15:04"))
	assert.Equal(t, "Forest Hills", first.Destination)
	assert.Equal(t, model.StatusUnknown, first.Status)

	second := preds[1]
	// departure_time absent: arrival_time fills the prediction.
	require.NotNil(t, second.Predicted)
	assert.Equal(t, "10:15", second.Predicted.Format("15:04"))
	assert.Nil(t, second.Scheduled)
	assert.Equal(t, model.DirectionOutbound, second.Direction)
	assert.Equal(t, model.StatusDelayed, second.Status)

	// Success keeps the breaker closed with a clean counter.
	assert.Equal(t, model.CircuitClosed, breaker.State().Status)
	assert.Zero(t, breaker.State().Failures)

	q := gotQuery.Load().URL.Query()
	assert.Equal(t, "place-ogmnl", q.Get("filter[stop]"))
	assert.Equal(t, "Orange", q.Get("filter[route]"))
	assert.Equal(t, "0", q.Get("filter[direction_id]"))
	assert.Equal(t, "departure_time", q.Get("sort"))
	assert.Equal(t, "4", q.Get("page[limit]"))
	assert.Equal(t, "test-key", q.Get("api_key"))
}

func TestFetch_NoAPIKeyOmitsCredential(t *testing.T) {
	var gotQuery atomic.Pointer[http.Request]
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r)
		w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	logger := log.NewStdLogger(os.Stdout)
	breaker := biz.NewBreaker(5, time.Minute, biz.SystemClock(), logger)
	client := NewMBTAClient(&conf.API{BaseURL: server.URL, Timeout: 5 * time.Second}, breaker, logger)

	preds, err := client.Fetch(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Empty(t, preds)
	assert.False(t, gotQuery.Load().URL.Query().Has("api_key"))
}

func TestFetch_HTTPErrorCountsTowardCircuit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, breaker := newTestClient(t, server.URL, 5)
	_, err := client.Fetch(context.Background(), testRequest())
	require.Error(t, err)

	var upErr *apperrors.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusTooManyRequests, upErr.StatusCode)
	assert.Equal(t, 1, breaker.State().Failures)
}

func TestFetch_MalformedPayloadIsNotACircuitFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [`))
	}))
	defer server.Close()

	client, breaker := newTestClient(t, server.URL, 5)
	_, err := client.Fetch(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, apperrors.IsDecode(err))
	assert.False(t, apperrors.IsUpstream(err))

	// The upstream was reachable: connectivity accounting stays clean.
	assert.Equal(t, model.CircuitClosed, breaker.State().Status)
	assert.Zero(t, breaker.State().Failures)
}

func TestFetch_BadTimestampIsDecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [{"id": "p", "type": "prediction", "attributes": {"departure_time": "half past ten"}}]}`))
	}))
	defer server.Close()

	client, breaker := newTestClient(t, server.URL, 5)
	_, err := client.Fetch(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, apperrors.IsDecode(err))
	assert.Zero(t, breaker.State().Failures)
}

func TestFetch_TransportErrorCountsTowardCircuit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client, breaker := newTestClient(t, server.URL, 5)
	_, err := client.Fetch(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, apperrors.IsUpstream(err))
	assert.Equal(t, 1, breaker.State().Failures)
}

func TestFetch_ContextDeadlineIsUpstreamFailure(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		server.Close()
	}()

	client, breaker := newTestClient(t, server.URL, 5)
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	_, err := client.Fetch(ctx, testRequest())
	require.Error(t, err)
	assert.True(t, apperrors.IsUpstream(err))
	assert.Equal(t, 1, breaker.State().Failures)
}

func TestFetch_OpenCircuitFailsFastWithoutNetworkAttempt(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	// Threshold 3: the first three cycles reach the upstream, everything
	// after fails fast until the cooldown elapses.
	client, _ := newTestClient(t, server.URL, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.Fetch(ctx, testRequest())
		assert.True(t, apperrors.IsUpstream(err), "cycle %d", i+1)
	}
	for i := 3; i < 5; i++ {
		_, err := client.Fetch(ctx, testRequest())
		assert.True(t, apperrors.IsCircuitOpen(err), "cycle %d", i+1)
	}

	assert.EqualValues(t, 3, hits.Load())
}
