package grpcsvc

import (
	"context"
	"encoding/json"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/idempotency"
	fulfillmentv1 "github.com/vladislavdragonenkov/fulfillment/pkg/api/fulfillment/v1"
)

const idempotencyKeyHeader = "idempotency-key"

// idempotencyErrorPayload: закэшированная ошибка, воспроизводимая при повторе.
type idempotencyErrorPayload struct {
	Code     int32             `json:"code"`
	Message  string            `json:"message"`
	Reason   string            `json:"reason,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// withIdempotency выполняет run не больше одного раза на idempotency-key.
// hashInput: запрос после подстановки пользователя из токена.
func withIdempotency[T any](
	s *FulfillmentService,
	ctx context.Context,
	method string,
	hashInput any,
	run func(ctx context.Context) (*T, error),
) (*T, error) {
	key, err := readIdempotencyKey(ctx)
	if err != nil {
		return nil, err
	}

	requestHash, err := idempotency.HashRequest(method, hashInput)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "failed to build idempotency hash")
	}

	var fresh *T
	outcome, err := s.idem.Execute(ctx, key, requestHash, func(ctx context.Context) (idempotency.Response, bool, error) {
		resp, runErr := run(ctx)
		if runErr != nil {
			if domain.IsRetryable(runErr) {
				return idempotency.Response{}, false, runErr
			}
			return encodeFailure(runErr), true, nil
		}

		body, marshalErr := fulfillmentv1.Codec{}.Marshal(resp)
		if marshalErr != nil {
			return idempotency.Response{}, false, marshalErr
		}
		fresh = resp
		return idempotency.Response{Body: body, Status: int(codes.OK)}, false, nil
	})
	if err != nil {
		if !domain.IsRetryable(err) && !domain.IsIdempotencyConflict(err) {
			s.logger.WithError(err).WithField("idempotency_key", key).Warn("idempotent request failed")
		}
		return nil, toStatusError(err)
	}

	if outcome.Failed {
		return nil, decodeFailure(outcome.Body, outcome.Status)
	}
	if fresh != nil && !outcome.Replayed {
		return fresh, nil
	}

	out := new(T)
	if err := (fulfillmentv1.Codec{}).Unmarshal(outcome.Body, out); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to decode cached response")
		return nil, status.Error(codes.Internal, "failed to decode cached response")
	}
	return out, nil
}

func encodeFailure(runErr error) idempotency.Response {
	st := status.Convert(toStatusError(runErr))
	code := st.Code()
	if code == codes.OK {
		code = codes.Internal
	}

	payload := idempotencyErrorPayload{
		Code:    int32(code), //nolint:gosec // codes.Code is a bounded enum value.
		Message: st.Message(),
	}
	if info, ok := ErrorInfo(st.Err()); ok {
		payload.Reason = info.GetReason()
		payload.Metadata = info.GetMetadata()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		body = nil
	}
	return idempotency.Response{Body: body, Status: int(code)}
}

func decodeFailure(body []byte, storedCode int) error {
	if len(body) > 0 {
		var payload idempotencyErrorPayload
		if err := json.Unmarshal(body, &payload); err == nil {
			if code, ok := grpcCodeFromInt(int(payload.Code)); ok && code != codes.OK {
				if payload.Message == "" {
					payload.Message = "previous request with the same idempotency key failed"
				}
				if payload.Reason != "" {
					return statusWithReason(code, payload.Message, payload.Reason, payload.Metadata)
				}
				return status.Error(code, payload.Message)
			}
		}
	}

	if code, ok := grpcCodeFromInt(storedCode); ok && code != codes.OK {
		return status.Error(code, "previous request with the same idempotency key failed")
	}
	return status.Error(codes.Internal, "previous request with the same idempotency key failed")
}

func grpcCodeFromInt(value int) (codes.Code, bool) {
	if value < int(codes.OK) || value > int(codes.Unauthenticated) {
		return codes.Internal, false
	}
	return codes.Code(uint32(value)), true
}

func readIdempotencyKey(ctx context.Context) (string, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(idempotencyKeyHeader)
		if len(values) > 0 && strings.TrimSpace(values[0]) != "" {
			return strings.TrimSpace(values[0]), nil
		}
	}

	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		values := md.Get(idempotencyKeyHeader)
		if len(values) > 0 && strings.TrimSpace(values[0]) != "" {
			return strings.TrimSpace(values[0]), nil
		}
	}

	return "", status.Error(codes.InvalidArgument, "idempotency-key metadata is required")
}
