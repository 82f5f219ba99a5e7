// Package paymentwebhook принимает события платёжного шлюза.
package paymentwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/Moshfiqmoon/Championyourpicks/internal/http/response"
	"github.com/Moshfiqmoon/Championyourpicks/internal/lib/sl"
	"github.com/Moshfiqmoon/Championyourpicks/internal/paymentprovider"
	paymentservice "github.com/Moshfiqmoon/Championyourpicks/internal/services/payment"
)

// SignatureHeader заголовок с подписью события.
const SignatureHeader = "Stripe-Signature"

// Service обрабатывает проверенные события шлюза.
type Service interface {
	HandleEvent(ctx context.Context, event *paymentprovider.Event) error
}

// Handler HTTP-обработчик webhook-событий.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string
	validate      *validator.Validate
	now           func() time.Time
}

// New создает обработчик webhook-событий. nowFn nil означает time.Now.
func New(log *slog.Logger, service Service, secret string, nowFn func() time.Time) *Handler {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
		validate:      validator.New(),
		now:           nowFn,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.paymentwebhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to read request body"))
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get(SignatureHeader)
	if err := paymentprovider.VerifySignature(body, signature, h.webhookSecret,
		paymentprovider.DefaultSignatureTolerance, h.now()); err != nil {
		log.Error("webhook signature rejected", sl.Err(err))
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	var event paymentprovider.Event
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(event); err != nil {
		var validateErrs validator.ValidationErrors
		if errors.As(err, &validateErrs) {
			log.Error("webhook payload failed validation", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErrs))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.service.HandleEvent(r.Context(), &event); err != nil {
		switch {
		case errors.Is(err, paymentservice.ErrEventIgnored):
			// неинтересное событие подтверждаем, чтобы шлюз не повторял его
			log.Info("webhook event ignored", slog.String("type", event.Type))
			w.WriteHeader(http.StatusOK)
			render.JSON(w, r, response.OK())
			return
		case errors.Is(err, paymentservice.ErrMalformedEvent):
			log.Error("malformed webhook event", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("malformed event"))
			return
		default:
			log.Error("failed to process webhook event", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}
	}

	log.Info("webhook event applied",
		slog.String("type", event.Type),
		slog.String("session_id", event.Data.Object.ID))
	w.WriteHeader(http.StatusOK)
	render.JSON(w, r, response.OK())
}
