package usecase

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/totegamma/poapbot"
	"github.com/totegamma/poapbot/internal/domain"
)

type mockIssuance struct {
	mu         sync.Mutex
	events     map[int64]domain.Event
	links      map[int64][]domain.ClaimLink
	badges     map[string][]domain.Badge
	linksErr   map[int64]error
	claimErr   error
	badgesErr  error
	eventCalls int
	linkCalls  int
	claims     []string
}

func newMockIssuance() *mockIssuance {
	return &mockIssuance{
		events:   map[int64]domain.Event{},
		links:    map[int64][]domain.ClaimLink{},
		badges:   map[string][]domain.Badge{},
		linksErr: map[int64]error{},
	}
}

func (m *mockIssuance) GetEvent(ctx context.Context, eventID int64) (domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCalls++
	e, ok := m.events[eventID]
	if !ok {
		return domain.Event{}, &domain.IssuanceAPIError{Status: http.StatusNotFound, Message: "not found"}
	}
	return e, nil
}

func (m *mockIssuance) GetUserBadges(ctx context.Context, address string) ([]domain.Badge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.badgesErr != nil {
		return nil, m.badgesErr
	}
	return m.badges[address], nil
}

func (m *mockIssuance) GetClaimLinks(ctx context.Context, eventID int64, secret string) ([]domain.ClaimLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linkCalls++
	if err := m.linksErr[eventID]; err != nil {
		return nil, err
	}
	return append([]domain.ClaimLink(nil), m.links[eventID]...), nil
}

func (m *mockIssuance) Claim(ctx context.Context, token, address, secret string) (domain.ClaimResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return domain.ClaimResult{}, m.claimErr
	}
	m.claims = append(m.claims, token)
	for id, links := range m.links {
		for i := range links {
			if links[i].QRHash == token {
				m.links[id][i].Claimed = true
			}
		}
	}
	return domain.ClaimResult{TxHash: "0xtx-" + token}, nil
}

func (m *mockIssuance) GetEventStats(ctx context.Context, eventID int64) (int64, error) {
	return 3, nil
}

func (m *mockIssuance) claimCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.claims)
}

type mockNames struct {
	addrs   map[string]string
	names   map[string]string
	block   bool
	calls   int
	lookups int
}

func (m *mockNames) Resolve(ctx context.Context, name string) (string, error) {
	m.calls++
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	addr, ok := m.addrs[name]
	if !ok {
		return "", context.Canceled
	}
	return addr, nil
}

func (m *mockNames) LookupName(ctx context.Context, address string) (string, error) {
	m.lookups++
	name, ok := m.names[address]
	if !ok {
		return "", context.Canceled
	}
	return name, nil
}

type mockPlatform struct {
	mu        sync.Mutex
	roles     map[string]map[string]bool
	channels  map[string]map[string]bool
	failRoles map[string]bool
	grants    int
}

func newMockPlatform() *mockPlatform {
	return &mockPlatform{
		roles:     map[string]map[string]bool{},
		channels:  map[string]map[string]bool{},
		failRoles: map[string]bool{},
	}
}

func (m *mockPlatform) HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roles[userID][roleID], nil
}

func (m *mockPlatform) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants++
	if m.failRoles[roleID] {
		return errors.New("missing permissions")
	}
	if m.roles[userID] == nil {
		m.roles[userID] = map[string]bool{}
	}
	m.roles[userID][roleID] = true
	return nil
}

func (m *mockPlatform) HasChannelAccess(ctx context.Context, channelID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels[channelID][userID], nil
}

func (m *mockPlatform) GrantChannel(ctx context.Context, channelID, userID string, allow int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants++
	if m.channels[channelID] == nil {
		m.channels[channelID] = map[string]bool{}
	}
	m.channels[channelID][userID] = true
	return nil
}

type mockPublisher struct {
	mu       sync.Mutex
	triggers []poapbot.Trigger
}

func (m *mockPublisher) Publish(ctx context.Context, trigger poapbot.Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers = append(m.triggers, trigger)
	return nil
}

var testNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
