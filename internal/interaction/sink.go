package interaction

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/totegamma/poapbot"
)

// ResponseSink is how a handler answers an interaction.
type ResponseSink interface {
	// Acknowledge answers with the bare acknowledgement.
	Acknowledge(ctx context.Context) error
	// DeferredAcknowledge tells the platform the answer will follow.
	DeferredAcknowledge(ctx context.Context, ephemeral bool) error
	// Respond delivers a message. After a deferred acknowledgement it edits the original response.
	Respond(ctx context.Context, msg poapbot.Message) error
}

// Editor edits the original response of an interaction.
type Editor interface {
	EditOriginal(ctx context.Context, in *discordgo.Interaction, msg poapbot.Message) error
}

type sinkState int

const (
	stateOpen sinkState = iota
	stateAnswered
	stateDeferred
)

// httpSink binds ResponseSink to one HTTP request. The first answer becomes
// the HTTP response body; later answers are delivered through the Editor.
type httpSink struct {
	mu          sync.Mutex
	state       sinkState
	first       chan *discordgo.InteractionResponse
	interaction *discordgo.Interaction
	editor      Editor
}

func newHTTPSink(in *discordgo.Interaction, editor Editor) *httpSink {
	return &httpSink{
		first:       make(chan *discordgo.InteractionResponse, 1),
		interaction: in,
		editor:      editor,
	}
}

func (s *httpSink) answer(resp *discordgo.InteractionResponse, next sinkState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateOpen {
		return false
	}
	s.state = next
	s.first <- resp
	return true
}

func (s *httpSink) Acknowledge(ctx context.Context) error {
	s.answer(&discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong}, stateAnswered)
	return nil
}

func (s *httpSink) DeferredAcknowledge(ctx context.Context, ephemeral bool) error {
	resp := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredChannelMessageWithSource}
	if ephemeral {
		resp.Data = &discordgo.InteractionResponseData{Flags: FlagEphemeral}
	}
	s.answer(resp, stateDeferred)
	return nil
}

func (s *httpSink) Respond(ctx context.Context, msg poapbot.Message) error {
	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: msg.ResponseData(),
	}
	if s.answer(resp, stateAnswered) {
		return nil
	}
	if s.editor == nil {
		return nil
	}
	return s.editor.EditOriginal(ctx, s.interaction, msg)
}

// expire is called when the acknowledgement deadline passes. If nothing was
// answered yet it switches to the deferred state and reports true.
func (s *httpSink) expire() bool {
	return s.answer(&discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredChannelMessageWithSource}, stateDeferred)
}
