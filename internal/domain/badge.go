package domain

import "time"

type Event struct {
	ID          int64  `json:"id"`
	FancyID     string `json:"fancy_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	EventURL    string `json:"event_url,omitempty"`
	City        string `json:"city,omitempty"`
	Country     string `json:"country,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	Supply      int64  `json:"supply,omitempty"`
}

// Badge is one token held by an address.
type Badge struct {
	TokenID string `json:"tokenId"`
	Owner   string `json:"owner"`
	Created string `json:"created"`
	Event   Event  `json:"event"`
}

type ClaimLink struct {
	QRHash  string `json:"qr_hash"`
	Claimed bool   `json:"claimed"`
}

type ClaimResult struct {
	TxHash string `json:"tx_hash,omitempty"`
}

type CachedEvent struct {
	Event    Event
	CachedAt time.Time
}

// EventCacheTTL bounds how long a cached event is served.
const EventCacheTTL = time.Hour

func (c CachedEvent) Fresh(now time.Time) bool {
	return now.Sub(c.CachedAt) < EventCacheTTL
}
