package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
	"github.com/kirillkom/apartment-recommender/internal/core/ports"
)

// RequestObserver receives per-message timings, e.g. worker metrics.
type RequestObserver interface {
	StartRequest()
	FinishRequest(operation string, duration time.Duration, err error)
}

// Server answers recommend and nearby requests on a queue group so several
// workers share the load.
type Server struct {
	conn        *nats.Conn
	subjects    Subjects
	queueGroup  string
	recommender ports.Recommender
	nearby      ports.NearbyFinder
	observer    RequestObserver
}

func NewServer(
	conn *nats.Conn,
	subjects Subjects,
	queueGroup string,
	recommender ports.Recommender,
	nearby ports.NearbyFinder,
	observer RequestObserver,
) *Server {
	if queueGroup == "" {
		queueGroup = "workers"
	}
	return &Server{
		conn:        conn,
		subjects:    subjects,
		queueGroup:  queueGroup,
		recommender: recommender,
		nearby:      nearby,
		observer:    observer,
	}
}

// Serve subscribes and blocks until ctx is done, then drains.
func (s *Server) Serve(ctx context.Context) error {
	recommendSub, err := s.conn.QueueSubscribe(s.subjects.Recommend, s.queueGroup, func(msg *nats.Msg) {
		s.handle(ctx, "recommend", msg, s.handleRecommend)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", s.subjects.Recommend, err)
	}
	nearbySub, err := s.conn.QueueSubscribe(s.subjects.Nearby, s.queueGroup, func(msg *nats.Msg) {
		s.handle(ctx, "nearby", msg, s.handleNearby)
	})
	if err != nil {
		_ = recommendSub.Unsubscribe()
		return fmt.Errorf("nats subscribe %s: %w", s.subjects.Nearby, err)
	}

	if err := s.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	slog.Info("nats_server_started", "recommend", s.subjects.Recommend, "nearby", s.subjects.Nearby, "queue", s.queueGroup)

	<-ctx.Done()
	for _, sub := range []*nats.Subscription{recommendSub, nearbySub} {
		if err := sub.Drain(); err != nil {
			return fmt.Errorf("nats drain subscription: %w", err)
		}
	}
	if err := s.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

type handlerFunc func(ctx context.Context, data []byte) (requestID string, payload []byte, err error)

func (s *Server) handle(ctx context.Context, operation string, msg *nats.Msg, fn handlerFunc) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if s.observer != nil {
		s.observer.StartRequest()
	}

	requestID, payload, err := fn(ctx, msg.Data)
	duration := time.Since(start)
	if s.observer != nil {
		s.observer.FinishRequest(operation, duration, err)
	}

	attrs := []any{
		"operation", operation,
		"request_id", requestID,
		"duration_ms", float64(duration.Microseconds()) / 1000.0,
	}
	if err != nil {
		attrs = append(attrs, "error", err, "kind", domain.KindName(err))
	}
	slog.Info("nats_request", attrs...)

	if err := msg.Respond(payload); err != nil {
		slog.Error("nats_respond_failed", "operation", operation, "request_id", requestID, "error", err)
	}
}

func (s *Server) handleRecommend(ctx context.Context, data []byte) (string, []byte, error) {
	var req recommendRequest
	if err := json.Unmarshal(data, &req); err != nil {
		err = domain.WrapError(domain.ErrInvalidInput, "decode recommend request", err)
		return "", encodeReply(reply[domain.Recommendation]{Error: newErrorBody(err)}), err
	}
	rec, err := s.recommender.Recommend(ctx, req.Property, req.TopN, req.Weights)
	if err != nil {
		return req.RequestID, encodeReply(reply[domain.Recommendation]{RequestID: req.RequestID, Error: newErrorBody(err)}), err
	}
	return req.RequestID, encodeReply(reply[domain.Recommendation]{RequestID: req.RequestID, Result: rec}), nil
}

func (s *Server) handleNearby(ctx context.Context, data []byte) (string, []byte, error) {
	var req nearbyRequest
	if err := json.Unmarshal(data, &req); err != nil {
		err = domain.WrapError(domain.ErrInvalidInput, "decode nearby request", err)
		return "", encodeReply(reply[domain.NearbyResult]{Error: newErrorBody(err)}), err
	}
	res, err := s.nearby.Nearby(ctx, req.Location, req.RadiusKM)
	if err != nil {
		return req.RequestID, encodeReply(reply[domain.NearbyResult]{RequestID: req.RequestID, Error: newErrorBody(err)}), err
	}
	return req.RequestID, encodeReply(reply[domain.NearbyResult]{RequestID: req.RequestID, Result: res}), nil
}

func encodeReply[T any](r reply[T]) []byte {
	data, err := json.Marshal(r)
	if err != nil {
		data, _ = json.Marshal(reply[T]{
			RequestID: r.RequestID,
			Error:     &errorBody{Kind: "internal", Message: "encode reply: " + err.Error()},
		})
	}
	return data
}
