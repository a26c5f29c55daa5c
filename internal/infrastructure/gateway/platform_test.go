package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/poapbot"
	"github.com/totegamma/poapbot/internal/domain"
)

const (
	guild   = "1100000000000000001"
	user    = "1100000000000000002"
	role    = "1100000000000000003"
	channel = "1100000000000000004"
	appID   = "1100000000000000005"
)

func newTestGateway(t *testing.T, handler http.Handler) *PlatformGateway {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	session, err := NewSession("token", srv.URL)
	require.NoError(t, err)
	session.MaxRestRetries = 0
	return NewPlatformGateway(session, appID)
}

func TestValidID(t *testing.T) {
	require.True(t, ValidID(guild))
	require.False(t, ValidID("abc"))
	require.False(t, ValidID("../../users"))
	require.False(t, ValidID(""))
}

func TestHasRoleAndAddRole(t *testing.T) {
	var added atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /guilds/"+guild+"/members/"+user, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bot token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{"roles": []string{role}})
	})
	mux.HandleFunc("PUT /guilds/"+guild+"/members/"+user+"/roles/"+role, func(w http.ResponseWriter, r *http.Request) {
		added.Store(true)
		w.WriteHeader(http.StatusNoContent)
	})
	g := newTestGateway(t, mux)

	has, err := g.HasRole(context.Background(), guild, user, role)
	require.NoError(t, err)
	require.True(t, has)

	require.NoError(t, g.AddRole(context.Background(), guild, user, role))
	require.True(t, added.Load())

	_, err = g.HasRole(context.Background(), guild, "bad", role)
	require.ErrorIs(t, err, domain.InvalidInputError{})
}

func TestChannelAccessAndGrant(t *testing.T) {
	var body struct {
		Type  int    `json:"type"`
		Allow string `json:"allow"`
		Deny  string `json:"deny"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /channels/"+channel, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id": channel,
			"permission_overwrites": []map[string]any{
				{"id": role, "type": 0, "allow": "68608", "deny": "0"},
			},
		})
	})
	mux.HandleFunc("PUT /channels/"+channel+"/permissions/"+user, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	})
	g := newTestGateway(t, mux)

	has, err := g.HasChannelAccess(context.Background(), channel, user)
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, g.GrantChannel(context.Background(), channel, user, domain.GatedChannelAllow))
	require.Equal(t, "68608", body.Allow)
	require.Equal(t, "0", body.Deny)
	require.Equal(t, 1, body.Type)
}

func TestChannelAccessRequiresGatedAllow(t *testing.T) {
	cases := map[string]bool{
		"68608": true,  // view, send, read history
		"68616": true,  // view, send, read history and more
		"1024":  false, // view only
		"0":     false, // deny-only override
	}
	for allow, want := range cases {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /channels/"+channel, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"id": channel,
				"permission_overwrites": []map[string]any{
					{"id": user, "type": 1, "allow": allow, "deny": "1024"},
				},
			})
		})
		g := newTestGateway(t, mux)

		has, err := g.HasChannelAccess(context.Background(), channel, user)
		require.NoError(t, err)
		require.Equal(t, want, has, allow)
	}
}

func TestFindRoleByMentionOrName(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /guilds/"+guild+"/roles", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode([]map[string]any{{"id": role, "name": "Attendee"}})
	})
	g := newTestGateway(t, mux)

	id, err := g.FindRole(context.Background(), guild, "<@&42>")
	require.NoError(t, err)
	require.Equal(t, "42", id)
	require.EqualValues(t, 0, calls.Load())

	id, err = g.FindRole(context.Background(), guild, "Attendee")
	require.NoError(t, err)
	require.Equal(t, role, id)

	_, err = g.FindRole(context.Background(), guild, "Missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.EqualValues(t, 1, calls.Load())
}

func TestSendDM(t *testing.T) {
	var recipient struct {
		RecipientID string `json:"recipient_id"`
	}
	var got struct {
		Content string `json:"content"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/@me/channels", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&recipient)
		json.NewEncoder(w).Encode(map[string]any{"id": "900", "type": 1})
	})
	mux.HandleFunc("POST /channels/900/messages", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]string{"id": "1", "channel_id": "900"})
	})
	g := newTestGateway(t, mux)

	require.NoError(t, g.SendDM(context.Background(), user, poapbot.Message{Content: "hi"}))
	require.Equal(t, user, recipient.RecipientID)
	require.Equal(t, "hi", got.Content)
}

func TestEditOriginal(t *testing.T) {
	var got struct {
		Content string            `json:"content"`
		Embeds  []json.RawMessage `json:"embeds"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /webhooks/"+appID+"/tok/messages/@original", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]string{"id": "1"})
	})
	g := newTestGateway(t, mux)

	msg := poapbot.Message{
		Content: "done",
		Embeds:  []*discordgo.MessageEmbed{{Title: "🎉"}},
		Flags:   discordgo.MessageFlagsEphemeral,
	}
	require.NoError(t, g.EditOriginal(context.Background(), &discordgo.Interaction{Token: "tok"}, msg))
	require.Equal(t, "done", got.Content)
	require.Len(t, got.Embeds, 1)
}

func TestRegisterCommands(t *testing.T) {
	var got []map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /applications/"+appID+"/commands", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte("[]"))
	})
	g := newTestGateway(t, mux)

	err := g.RegisterCommands(context.Background(), []*discordgo.ApplicationCommand{
		{Name: "badge-info", Description: "Get information about a POAP event", Type: discordgo.ChatApplicationCommand},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "badge-info", got[0]["name"])
}

func TestRESTError(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"code":50013,"message":"Missing Permissions"}`))
	}))

	err := g.AddRole(context.Background(), guild, user, role)
	var restErr *discordgo.RESTError
	require.ErrorAs(t, err, &restErr)
	require.Equal(t, http.StatusForbidden, restErr.Response.StatusCode)
}

func TestNotFoundMapsToDomain(t *testing.T) {
	g := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":10003,"message":"Unknown Channel"}`))
	}))

	_, err := g.HasChannelAccess(context.Background(), channel, user)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
