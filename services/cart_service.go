package services

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/norun9/gomarketplace/cartservice/cart"
)

const requestIDHeader = "X-Request-Id"

// CartProvider scopes requests to a cart and streams its snapshots.
// *cart.Store satisfies it.
type CartProvider interface {
	Provide(ctx context.Context) context.Context
	Subscribe() (<-chan []cart.Product, func())
}

type ctxKeyLog struct{}

type cartResponse struct {
	Products []cart.Product `json:"products"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// CartHandler serves the cart over HTTP. Every request runs inside the
// provider's scope and reaches the cart through cart.Use.
type CartHandler struct {
	provider CartProvider
	tracer   trace.Tracer
	log      logrus.FieldLogger

	closeOnce sync.Once
	closed    chan struct{}
}

// NewCartHandler creates a handler with the cart provider and logger injected.
func NewCartHandler(provider CartProvider, log logrus.FieldLogger) *CartHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CartHandler{
		provider: provider,
		tracer:   otel.Tracer("cartservice"),
		log:      log,
		closed:   make(chan struct{}),
	}
}

// Close ends every open event stream. Register it with
// http.Server.RegisterOnShutdown so Shutdown is not held up by them.
func (h *CartHandler) Close() {
	h.closeOnce.Do(func() { close(h.closed) })
}

// Router returns the HTTP routes of the cart API.
func (h *CartHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequest, h.provideCart)

	r.HandleFunc("/cart", h.getCart).Methods(http.MethodGet)
	r.HandleFunc("/cart/items", h.addItem).Methods(http.MethodPost)
	r.HandleFunc("/cart/items/{id}/increment", h.increment).Methods(http.MethodPost)
	r.HandleFunc("/cart/items/{id}/decrement", h.decrement).Methods(http.MethodPost)
	r.HandleFunc("/cart/events", h.events).Methods(http.MethodGet)
	return r
}

func (h *CartHandler) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		log := h.log.WithFields(logrus.Fields{
			"http.req.id":     requestID,
			"http.req.path":   r.URL.Path,
			"http.req.method": r.Method,
		})
		log.Debug("request started")
		ctx := context.WithValue(r.Context(), ctxKeyLog{}, log)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *CartHandler) provideCart(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(h.provider.Provide(r.Context())))
	})
}

// GET /cart
func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetCart")
	defer span.End()

	h.writeCart(w, r, cart.Use(ctx))
}

// POST /cart/items
func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AddToCart")
	defer span.End()

	var in cart.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.renderError(w, r, span, errors.Wrap(err, "decode product"), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(in.ID) == "" {
		h.renderError(w, r, span, errors.New("product id is required"), http.StatusBadRequest)
		return
	}
	span.SetAttributes(
		attribute.String("app.product_id", in.ID),
		attribute.Float64("app.product_price", in.Price),
	)

	c := cart.Use(ctx)
	if err := c.AddToCart(ctx, in); err != nil {
		h.renderError(w, r, span, errors.Wrap(err, "AddToCart failed"), statusFor(err))
		return
	}
	h.writeCart(w, r, c)
}

// POST /cart/items/{id}/increment
func (h *CartHandler) increment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Increment")
	defer span.End()

	id := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("app.product_id", id))

	c := cart.Use(ctx)
	if err := c.Increment(ctx, id); err != nil {
		h.renderError(w, r, span, errors.Wrap(err, "Increment failed"), statusFor(err))
		return
	}
	h.writeCart(w, r, c)
}

// POST /cart/items/{id}/decrement
func (h *CartHandler) decrement(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Decrement")
	defer span.End()

	id := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("app.product_id", id))

	c := cart.Use(ctx)
	if err := c.Decrement(ctx, id); err != nil {
		h.renderError(w, r, span, errors.Wrap(err, "Decrement failed"), statusFor(err))
		return
	}
	h.writeCart(w, r, c)
}

// GET /cart/events streams one JSON document per published cart.
func (h *CartHandler) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates, cancel := h.provider.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.closed:
			return
		case products, ok := <-updates:
			if !ok {
				return
			}
			if err := enc.Encode(cartResponse{Products: products}); err != nil {
				requestLogger(r, h.log).WithError(err).Debug("event stream closed")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *CartHandler) writeCart(w http.ResponseWriter, r *http.Request, c cart.Cart) {
	writeJSON(w, r, h.log, http.StatusOK, cartResponse{Products: c.Products()})
}

func (h *CartHandler) renderError(w http.ResponseWriter, r *http.Request, span trace.Span, err error, code int) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	requestLogger(r, h.log).WithError(err).WithField("http.resp.status", code).Warn("request failed")
	writeJSON(w, r, h.log, code, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, cart.ErrClosed), errors.Is(err, cart.ErrNotStarted):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		requestLogger(r, log).WithError(err).Warn("failed to write response")
	}
}

func requestLogger(r *http.Request, fallback logrus.FieldLogger) logrus.FieldLogger {
	if log, ok := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger); ok {
		return log
	}
	return fallback
}
