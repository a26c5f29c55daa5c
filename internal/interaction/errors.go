package interaction

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/totegamma/poapbot"
	"github.com/totegamma/poapbot/internal/domain"
)

func ephemeral(content string) poapbot.Message {
	return poapbot.Message{Content: content, Flags: FlagEphemeral}
}

// ErrorMessage turns a handler error into the message shown to the invoker.
func ErrorMessage(err error) poapbot.Message {
	var (
		invalid    domain.InvalidInputError
		resolution domain.ResolutionError
		apiErr     *domain.IssuanceAPIError
		lookup     domain.LookupError
	)

	switch {
	case errors.As(err, &invalid):
		return ephemeral("❌ " + invalid.Message)
	case errors.As(err, &resolution):
		return ephemeral("❌ " + resolution.Message)
	case errors.Is(err, domain.ErrExhaustedSupply):
		return ephemeral("❌ No available claim links for this event. Check the secret code or contact the event organizer.")
	case errors.As(err, &lookup):
		return ephemeral("❌ Could not fetch POAPs right now. Please try again later.")
	case errors.As(err, &apiErr):
		if apiErr.Status == http.StatusNotFound {
			return ephemeral("❌ The requested POAP event was not found.")
		}
		if apiErr.Unavailable() {
			return ephemeral("❌ The POAP service is unavailable right now. Please try again later.")
		}
		return ephemeral(fmt.Sprintf("❌ The POAP API returned an error (%d). Please try again later.", apiErr.Status))
	case errors.Is(err, domain.ErrNotFound):
		return ephemeral("❌ Not found.")
	}
	return ephemeral("❌ An error occurred while processing your command. Please try again.")
}
