package interaction

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/totegamma/poapbot/internal/domain"
)

func TestErrorMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{domain.InvalidInputError{Message: "bad"}, "❌ bad"},
		{domain.ErrExhaustedSupply, "❌ No available claim links for this event. Check the secret code or contact the event organizer."},
		{&domain.IssuanceAPIError{Status: http.StatusNotFound}, "❌ The requested POAP event was not found."},
		{&domain.IssuanceAPIError{Status: http.StatusBadGateway}, "❌ The POAP API returned an error (502). Please try again later."},
		{&domain.IssuanceAPIError{Status: http.StatusServiceUnavailable, Cause: errors.New("dial tcp: connection refused")}, "❌ The POAP service is unavailable right now. Please try again later."},
		{domain.NotFoundError{Resource: "rule"}, "❌ Not found."},
		{errors.New("boom"), "❌ An error occurred while processing your command. Please try again."},
	}
	for _, c := range cases {
		msg := ErrorMessage(c.err)
		require.Equal(t, c.want, msg.Content, c.err.Error())
		require.Equal(t, FlagEphemeral, msg.Flags)
	}
}
