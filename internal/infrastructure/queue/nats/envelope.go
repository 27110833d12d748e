package nats

import (
	"errors"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
)

type recommendRequest struct {
	RequestID string    `json:"request_id"`
	Property  string    `json:"property"`
	TopN      int       `json:"top_n,omitempty"`
	Weights   []float64 `json:"weights,omitempty"`
}

type nearbyRequest struct {
	RequestID string  `json:"request_id"`
	Location  string  `json:"location"`
	RadiusKM  float64 `json:"radius_km,omitempty"`
}

type reply[T any] struct {
	RequestID string     `json:"request_id"`
	Result    *T         `json:"result,omitempty"`
	Error     *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Axis      string `json:"axis,omitempty"`
	Requested string `json:"requested,omitempty"`
}

func newErrorBody(err error) *errorBody {
	body := &errorBody{Kind: domain.KindName(err), Message: err.Error()}
	var lookupErr *domain.LookupError
	if errors.As(err, &lookupErr) {
		body.Axis = lookupErr.Axis
		body.Requested = lookupErr.Requested
	}
	return body
}

// asError rebuilds a typed error on the requesting side.
func (b *errorBody) asError(op string) error {
	if b.Kind == "not_found" && b.Requested != "" {
		return &domain.LookupError{Axis: b.Axis, Requested: b.Requested}
	}
	kind := domain.KindFromName(b.Kind)
	if kind == nil {
		return errors.New(op + ": remote error: " + b.Message)
	}
	return domain.WrapError(kind, op, errors.New(b.Message))
}
