package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/auth"
	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/idempotency"
)

// Коды ошибок уровня HTTP, которых нет в доменной таксономии.
const (
	codeUnauthenticated     = "UNAUTHENTICATED"
	codeForbidden           = "FORBIDDEN"
	codeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	codeRequestInProgress   = "REQUEST_IN_PROGRESS"
)

// errorBody: тело ответа с ошибкой.
type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	ProductID string `json:"product_id,omitempty"`
	Retryable bool   `json:"retryable"`
}

func httpStatusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeEmptyCart:
		return http.StatusUnprocessableEntity
	case domain.CodeInsufficientStock, domain.CodeStockConflict, domain.CodeInvalidTransition:
		return http.StatusConflict
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodePersistenceFailure:
		return http.StatusServiceUnavailable
	case domain.CodeInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse собирает HTTP-статус и тело для ошибки.
func errorResponse(err error) (int, errorBody) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, errorBody{Code: codeUnauthenticated, Message: "authentication required"}
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, errorBody{Code: codeForbidden, Message: err.Error()}
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusUnprocessableEntity, errorBody{Code: codeIdempotencyConflict, Message: "idempotency key was used with a different request"}
	case errors.Is(err, idempotency.ErrInProgress):
		return http.StatusConflict, errorBody{Code: codeRequestInProgress, Message: err.Error(), Retryable: true}
	}

	code := domain.CodeOf(err)
	body := errorBody{
		Code:      string(code),
		Message:   err.Error(),
		Retryable: domain.IsRetryable(err),
	}
	if code == domain.CodeInternal {
		body.Message = "internal error"
	}
	if productID, ok := domain.InsufficientStockProduct(err); ok {
		body.ProductID = productID
	}
	return httpStatusFor(code), body
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode, body := errorResponse(err)
	if statusCode >= http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
	}
	writeJSON(w, statusCode, body)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeRaw(w http.ResponseWriter, statusCode int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}
