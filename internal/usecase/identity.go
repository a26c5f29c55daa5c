package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/totegamma/poapbot"
	"github.com/totegamma/poapbot/internal/domain"
)

const defaultResolveTimeout = 15 * time.Second

type Identity struct {
	Address       string
	DisplayName   string
	WasNameLookup bool
}

// IdentityUsecase turns user input into a canonical address.
// Without a NameService it runs in address-only mode.
type IdentityUsecase struct {
	names   NameService
	timeout time.Duration
}

func NewIdentityUsecase(names NameService, timeout time.Duration) *IdentityUsecase {
	if timeout == 0 {
		timeout = defaultResolveTimeout
	}
	return &IdentityUsecase{names: names, timeout: timeout}
}

func (uc *IdentityUsecase) Resolve(ctx context.Context, input string) (Identity, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Identity{}, domain.InvalidInputError{Message: "Address or ENS name is required"}
	}

	if poapbot.IsAddress(input) {
		address := strings.ToLower(input)
		return Identity{
			Address:     address,
			DisplayName: poapbot.ShortAddress(address),
		}, nil
	}

	if !poapbot.IsName(input) {
		return Identity{}, domain.InvalidInputError{
			Message: fmt.Sprintf("%q is not a valid Ethereum address or ENS name", input),
		}
	}

	if uc.names == nil {
		return Identity{}, domain.ResolutionError{
			Name:    input,
			Message: fmt.Sprintf("ENS resolution unavailable for %q. Please use the Ethereum address directly.", input),
		}
	}

	ctx, span := tracer.Start(ctx, "Identity.Usecase.Resolve")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	address, err := uc.names.Resolve(ctx, input)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Identity{}, domain.ResolutionError{
				Name:    input,
				Message: fmt.Sprintf("ENS resolution timed out for %q. Try using the address directly.", input),
				Cause:   err,
			}
		}
		return Identity{}, domain.ResolutionError{
			Name:    input,
			Message: fmt.Sprintf("ENS name %q could not be resolved. Try using the address directly.", input),
			Cause:   err,
		}
	}
	if !poapbot.IsAddress(address) {
		return Identity{}, domain.ResolutionError{
			Name:    input,
			Message: fmt.Sprintf("ENS name %q could not be resolved. Try using the address directly.", input),
		}
	}

	return Identity{
		Address:       strings.ToLower(address),
		DisplayName:   input,
		WasNameLookup: true,
	}, nil
}

// DisplayName prefers the verified primary name and falls back to the short form.
func (uc *IdentityUsecase) DisplayName(ctx context.Context, address string) string {
	short := poapbot.ShortAddress(address)
	if uc.names == nil {
		return short
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	name, err := uc.names.LookupName(ctx, address)
	if err != nil || name == "" {
		if err != nil {
			slog.DebugContext(ctx, "reverse lookup failed", slog.String("address", address), slog.String("error", err.Error()), slog.String("module", "identity"))
		}
		return short
	}
	return name
}
