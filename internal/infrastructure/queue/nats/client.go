package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
	"github.com/kirillkom/apartment-recommender/internal/infrastructure/resilience"
)

// Client sends recommend and nearby requests to workers. It satisfies
// ports.Recommender and ports.NearbyFinder.
type Client struct {
	conn     *nats.Conn
	subjects Subjects
	timeout  time.Duration
	executor *resilience.Executor
}

func NewClient(conn *nats.Conn, subjects Subjects, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{conn: conn, subjects: subjects, timeout: timeout, executor: executor}
}

func (c *Client) Recommend(ctx context.Context, propertyName string, topN int, weights []float64) (*domain.Recommendation, error) {
	req := recommendRequest{
		RequestID: uuid.NewString(),
		Property:  propertyName,
		TopN:      topN,
		Weights:   weights,
	}
	return request[domain.Recommendation](ctx, c, "recommend", c.subjects.Recommend, req.RequestID, req)
}

func (c *Client) Nearby(ctx context.Context, locationName string, radiusKM float64) (*domain.NearbyResult, error) {
	req := nearbyRequest{
		RequestID: uuid.NewString(),
		Location:  locationName,
		RadiusKM:  radiusKM,
	}
	return request[domain.NearbyResult](ctx, c, "nearby", c.subjects.Nearby, req.RequestID, req)
}

func request[T any](ctx context.Context, c *Client, operation, subject, requestID string, payload any) (*T, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", operation, err)
	}

	call := func(ctx context.Context) (*T, error) {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		msg, err := c.conn.RequestWithContext(reqCtx, subject, data)
		if err != nil {
			if ctx.Err() == nil && errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
				err = nats.ErrTimeout
			}
			return nil, wrapTemporaryIfNeeded("nats "+operation, err)
		}

		var out reply[T]
		if err := json.Unmarshal(msg.Data, &out); err != nil {
			return nil, fmt.Errorf("decode %s reply: %w", operation, err)
		}
		if out.RequestID != "" && out.RequestID != requestID {
			return nil, fmt.Errorf("%s reply for request %s, expected %s", operation, out.RequestID, requestID)
		}
		if out.Error != nil {
			return nil, out.Error.asError(operation)
		}
		if out.Result == nil {
			return nil, fmt.Errorf("%s reply has neither result nor error", operation)
		}
		return out.Result, nil
	}

	result, err := resilience.Do(ctx, c.executor, "nats."+operation, call, classifyNATSError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("nats "+operation, err)
	}
	return result, nil
}
