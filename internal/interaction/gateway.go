package interaction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("interaction")

const (
	DefaultAckDeadline    = 2500 * time.Millisecond
	defaultHandlerTimeout = 10 * time.Minute
)

type errorBody struct {
	Error string `json:"error"`
}

// Result is the HTTP answer of the gateway.
type Result struct {
	Status int
	Body   any
}

// Gateway authenticates, classifies and dispatches inbound interactions.
type Gateway struct {
	verifier       *Verifier
	registry       *Registry
	editor         Editor
	ackDeadline    time.Duration
	handlerTimeout time.Duration
	inflight       sync.WaitGroup
}

func NewGateway(verifier *Verifier, registry *Registry, editor Editor, ackDeadline time.Duration) *Gateway {
	if ackDeadline <= 0 {
		ackDeadline = DefaultAckDeadline
	}
	return &Gateway{
		verifier:       verifier,
		registry:       registry,
		editor:         editor,
		ackDeadline:    ackDeadline,
		handlerTimeout: defaultHandlerTimeout,
	}
}

func (g *Gateway) Handle(ctx context.Context, method string, header http.Header, body []byte) (result Result) {
	ctx, span := tracer.Start(ctx, "Interaction.Gateway.Handle")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "interaction gateway panic", slog.Any("panic", r), slog.String("stack", string(debug.Stack())), slog.String("module", "interaction"))
			result = Result{Status: http.StatusInternalServerError, Body: errorBody{Error: "internal server error"}}
		}
	}()

	if method != http.MethodPost {
		return Result{Status: http.StatusMethodNotAllowed, Body: errorBody{Error: "method not allowed"}}
	}

	if err := g.verifier.Verify(header.Get(HeaderSignature), header.Get(HeaderTimestamp), body); err != nil {
		span.RecordError(err)
		slog.WarnContext(ctx, "rejected interaction", slog.String("error", err.Error()), slog.String("module", "interaction"))
		return Result{Status: http.StatusUnauthorized, Body: errorBody{Error: "invalid request signature"}}
	}

	var in discordgo.Interaction
	if err := json.Unmarshal(body, &in); err != nil {
		return Result{Status: http.StatusBadRequest, Body: errorBody{Error: "malformed interaction"}}
	}
	span.SetAttributes(attribute.Int("type", int(in.Type)))

	switch in.Type {
	case discordgo.InteractionPing:
		sink := newHTTPSink(&in, nil)
		_ = sink.Acknowledge(ctx)
		return Result{Status: http.StatusOK, Body: <-sink.first}
	case discordgo.InteractionApplicationCommand:
		inv, ok := newInvocation(&in)
		if !ok {
			break
		}
		cmd, ok := g.registry.Lookup(inv.CommandName())
		if !ok {
			break
		}
		span.SetAttributes(attribute.String("command", cmd.Name))
		return g.dispatch(ctx, cmd, inv)
	}

	return Result{Status: http.StatusBadRequest, Body: errorBody{Error: "unhandled interaction"}}
}

// dispatch runs the handler detached from the request. The HTTP answer is
// the handler's first answer, or a deferred acknowledgement once the
// deadline passes.
func (g *Gateway) dispatch(ctx context.Context, cmd Command, inv *Invocation) Result {
	sink := newHTTPSink(inv.Interaction, g.editor)

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.handlerTimeout)
	g.inflight.Add(1)
	go func() {
		defer g.inflight.Done()
		defer cancel()
		g.run(hctx, cmd, inv, sink)
	}()

	timer := time.NewTimer(g.ackDeadline)
	defer timer.Stop()

	select {
	case resp := <-sink.first:
		return Result{Status: http.StatusOK, Body: resp}
	case <-timer.C:
	case <-ctx.Done():
	}

	sink.expire()
	return Result{Status: http.StatusOK, Body: <-sink.first}
}

func (g *Gateway) run(ctx context.Context, cmd Command, inv *Invocation, sink *httpSink) {
	logger := slog.With(
		slog.String("command", cmd.Name),
		slog.String("user", inv.UserID()),
		slog.String("guild", inv.CommunityID()),
		slog.String("module", "interaction"),
	)

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "command panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			_ = sink.Respond(ctx, ErrorMessage(fmt.Errorf("panic: %v", r)))
		}
	}()

	if cmd.AdminOnly && !inv.IsAdmin() {
		_ = sink.Respond(ctx, ephemeral("❌ You need the **Manage Server** permission to use this command."))
		return
	}

	err := cmd.Handler(ctx, inv, sink)
	if err != nil {
		logger.ErrorContext(ctx, "command failed", slog.String("error", err.Error()))
		if rerr := sink.Respond(ctx, ErrorMessage(err)); rerr != nil {
			logger.ErrorContext(ctx, "failed to deliver error message", slog.String("error", rerr.Error()))
		}
		return
	}

	sink.answer(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: "✅ Done."},
	}, stateAnswered)
}

// Wait blocks until every dispatched handler has returned.
func (g *Gateway) Wait() {
	g.inflight.Wait()
}
