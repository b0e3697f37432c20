// Package rest публикует движок оформления заказов по HTTP.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/auth"
	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/fulfillment"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/idempotency"
)

// IdempotencyKeyHeader: заголовок с ключом идемпотентности.
const IdempotencyKeyHeader = "Idempotency-Key"

// Handler обслуживает REST API заказов.
type Handler struct {
	engine   fulfillment.Engine
	catalog  domain.CatalogAdmin
	cart     domain.CartWriter
	idem     *idempotency.Executor
	verifier *auth.Verifier
	logger   *log.Entry
}

// Option настраивает Handler.
type Option func(*Handler)

// WithLogger задаёт логгер обработчика.
func WithLogger(logger *log.Entry) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithCatalog включает эндпоинт наполнения каталога.
func WithCatalog(catalog domain.CatalogAdmin) Option {
	return func(h *Handler) { h.catalog = catalog }
}

// WithCart включает эндпоинт наполнения корзины.
func WithCart(cart domain.CartWriter) Option {
	return func(h *Handler) { h.cart = cart }
}

// WithIdempotency включает обработку заголовка Idempotency-Key.
func WithIdempotency(executor *idempotency.Executor) Option {
	return func(h *Handler) { h.idem = executor }
}

// NewHandler создаёт обработчик. verifier обязателен: REST API не работает без аутентификации.
func NewHandler(engine fulfillment.Engine, verifier *auth.Verifier, options ...Option) (*Handler, error) {
	if engine == nil {
		return nil, errors.New("fulfillment engine is required")
	}
	if verifier == nil {
		return nil, auth.ErrSecretRequired
	}

	h := &Handler{
		engine:   engine,
		verifier: verifier,
		logger:   log.WithField("component", "rest-handler"),
	}
	for _, option := range options {
		option(h)
	}
	return h, nil
}

// Routes собирает роутер со всеми эндпоинтами.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authenticate)

		r.Get("/orders", h.listUserOrders)
		r.Post("/orders", h.createOrder)
		r.Get("/orders/{id}", h.getOrder)
		r.Get("/orders/{id}/timeline", h.getTimeline)
		r.Post("/cart/items", h.addCartLine)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin)

			r.Get("/orders", h.listAllOrders)
			r.Get("/orders/status/{status}", h.listOrdersByStatus)
			r.Put("/orders/{id}/status", h.updateStatus)
			r.Put("/products/{id}", h.upsertProduct)
		})
	})
	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)

		h.logger.WithFields(log.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(started).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			h.writeError(w, r, auth.ErrUnauthenticated)
			return
		}
		identity, err := h.verifier.Verify(token)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := auth.FromContext(r.Context())
		if !identity.IsAdmin() {
			statusCode, body := errorResponse(auth.ErrForbidden)
			writeJSON(w, statusCode, body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	orders, err := h.engine.GetUserOrders(r.Context(), identity.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	method, err := domain.ParsePaymentMethod(r.URL.Query().Get("paymentMethod"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	hashInput := struct {
		UserID        string `json:"user_id"`
		PaymentMethod string `json:"payment_method,omitempty"`
	}{UserID: identity.UserID}
	if method != nil {
		hashInput.PaymentMethod = string(*method)
	}

	h.idempotent(w, r, "create_order", hashInput, http.StatusCreated, func(r *http.Request) (any, error) {
		order, err := h.engine.CreateOrderFromCart(r.Context(), identity.UserID, method)
		if err != nil {
			return nil, err
		}
		return toOrderResponse(order), nil
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadOwnedOrder(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) getTimeline(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadOwnedOrder(w, r)
	if !ok {
		return
	}
	events, err := h.engine.GetOrderTimeline(r.Context(), order.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimelineResponse(events))
}

// loadOwnedOrder читает заказ и проверяет, что он принадлежит вызывающему.
// Чужой заказ для обычного пользователя выглядит как несуществующий.
func (h *Handler) loadOwnedOrder(w http.ResponseWriter, r *http.Request) (domain.Order, bool) {
	identity, _ := auth.FromContext(r.Context())
	order, err := h.engine.GetOrderByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return domain.Order{}, false
	}
	if !identity.CanAccess(order.UserID) {
		h.writeError(w, r, domain.ErrOrderNotFound)
		return domain.Order{}, false
	}
	return order, true
}

func (h *Handler) addCartLine(w http.ResponseWriter, r *http.Request) {
	if h.cart == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Code: "NOT_IMPLEMENTED", Message: "cart is not configured"})
		return
	}
	identity, _ := auth.FromContext(r.Context())

	var req cartLineRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	line := domain.CartLine{ProductID: strings.TrimSpace(req.ProductID), Quantity: req.Quantity}
	if err := line.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.cart.AddLine(r.Context(), identity.UserID, line); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.engine.GetAllOrders(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *Handler) listOrdersByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := domain.ParseOrderStatus(chi.URLParam(r, "status"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	orders, err := h.engine.GetOrdersByStatus(r.Context(), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	next, err := domain.ParseOrderStatus(r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cmd := domain.TransitionStatus{OrderID: strings.TrimSpace(chi.URLParam(r, "id")), NewStatus: next}
	if err := cmd.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.idempotent(w, r, "update_order_status", cmd, http.StatusOK, func(r *http.Request) (any, error) {
		order, err := h.engine.UpdateOrderStatus(r.Context(), cmd)
		if err != nil {
			return nil, err
		}
		return toOrderResponse(order), nil
	})
}

func (h *Handler) upsertProduct(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Code: "NOT_IMPLEMENTED", Message: "catalog is not configured"})
		return
	}

	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.UnitPrice))
	if err != nil {
		h.writeError(w, r, domain.ErrPriceInvalid)
		return
	}
	product := domain.Product{
		ID:        strings.TrimSpace(chi.URLParam(r, "id")),
		Name:      strings.TrimSpace(req.Name),
		UnitPrice: price.Round(2),
		Stock:     req.Stock,
	}
	if err := product.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	saved, err := h.catalog.UpsertProduct(r.Context(), product)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(saved))
}

// idempotent выполняет run с учётом Idempotency-Key. Без заголовка запрос выполняется как есть.
func (h *Handler) idempotent(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	hashInput any,
	successStatus int,
	run func(r *http.Request) (any, error),
) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key == "" || h.idem == nil {
		payload, err := run(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, successStatus, payload)
		return
	}

	requestHash, err := idempotency.HashRequest(operation, hashInput)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	outcome, err := h.idem.Execute(r.Context(), key, requestHash, func(ctx context.Context) (idempotency.Response, bool, error) {
		payload, runErr := run(r.WithContext(ctx))
		if runErr != nil {
			if domain.IsRetryable(runErr) {
				return idempotency.Response{}, false, runErr
			}
			statusCode, body := errorResponse(runErr)
			raw, marshalErr := json.Marshal(body)
			if marshalErr != nil {
				return idempotency.Response{}, false, marshalErr
			}
			return idempotency.Response{Body: raw, Status: statusCode}, true, nil
		}

		raw, marshalErr := json.Marshal(payload)
		if marshalErr != nil {
			return idempotency.Response{}, false, marshalErr
		}
		return idempotency.Response{Body: raw, Status: successStatus}, false, nil
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if outcome.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	writeRaw(w, outcome.Status, outcome.Body)
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", domain.ErrValidation, err)
	}
	return nil
}
