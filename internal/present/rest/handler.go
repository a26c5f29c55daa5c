package rest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/poapbot"
	"github.com/totegamma/poapbot/internal/infrastructure/bus"
	"github.com/totegamma/poapbot/internal/interaction"
	"github.com/totegamma/poapbot/internal/present/rest/middleware"
	"github.com/totegamma/poapbot/internal/present/rest/presenter"
)

const (
	maxInteractionBody = 1 << 20
	writeWait          = 10 * time.Second
)

type InteractionGateway interface {
	Handle(ctx context.Context, method string, header http.Header, body []byte) interaction.Result
}

type Handler struct {
	gateway InteractionGateway
	bus     bus.Bus
}

func NewHandler(gateway InteractionGateway, b bus.Bus) *Handler {
	return &Handler{
		gateway: gateway,
		bus:     b,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo, auth *middleware.AuthMiddleware) {
	e.Any("/interactions", h.handleInteraction)
	e.POST("/events", h.handleEvent, auth.VerifyRelay)
	e.GET("/realtime", h.handleRealtime, auth.RequireBearer)
	e.GET("/healthz", h.handleHealthz)
}

func (h *Handler) handleHealthz(c echo.Context) error {
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleInteraction(c echo.Context) error {
	req := c.Request()

	var body []byte
	if req.Method == http.MethodPost {
		var err error
		body, err = io.ReadAll(io.LimitReader(req.Body, maxInteractionBody))
		if err != nil {
			return presenter.BadRequestMessage(c, "unreadable body")
		}
	}

	res := h.gateway.Handle(req.Context(), req.Method, req.Header, body)
	return c.JSON(res.Status, res.Body)
}

// handleEvent accepts platform events relayed by an external listener.
func (h *Handler) handleEvent(c echo.Context) error {
	ctx := c.Request().Context()

	var trigger poapbot.Trigger
	if err := c.Bind(&trigger); err != nil {
		return presenter.BadRequest(c, err)
	}
	if !trigger.Type.IsRuleTrigger() {
		return presenter.BadRequestMessage(c, "unsupported trigger type")
	}
	if trigger.CommunityID == "" || trigger.UserID == "" {
		return presenter.BadRequestMessage(c, "communityId and userId are required")
	}

	trigger = bus.Stamp(trigger)
	if err := h.bus.Publish(ctx, trigger); err != nil {
		return presenter.InternalError(c, err)
	}

	return presenter.Accepted(c, echo.Map{"status": "accepted", "id": trigger.ID})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Request struct {
	Type        string   `json:"type"`
	Communities []string `json:"communities"`
}

// handleRealtime streams bus envelopes of the listened communities.
func (h *Handler) handleRealtime(c echo.Context) error {
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	triggers, unsubscribe, err := h.bus.Subscribe(ctx)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	defer unsubscribe()

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer ws.Close()

	listening := map[string]bool{}
	if community := c.QueryParam("community"); community != "" {
		listening[community] = true
	}

	input := make(chan []string)
	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else if ctx.Err() == nil {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			switch req.Type {
			case "listen":
				select {
				case input <- req.Communities:
				case <-ctx.Done():
					return
				}
			case "h": // heartbeat
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case <-ctx.Done():
			return nil
		case communities := <-input:
			listening = make(map[string]bool, len(communities))
			for _, id := range communities {
				listening[id] = true
			}
			slog.DebugContext(ctx, "Socket subscribe", slog.Any("communities", communities), slog.String("module", "socket"))
		case trigger, ok := <-triggers:
			if !ok {
				return nil
			}
			if !listening[trigger.CommunityID] {
				continue
			}
			payload, err := json.Marshal(trigger)
			if err != nil {
				continue
			}
			if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return nil
			}
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
