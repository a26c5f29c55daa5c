package models

import (
	"time"

	"gorm.io/datatypes"
)

type WalletLink struct {
	UserID   string    `gorm:"primaryKey;type:text"`
	Address  string    `gorm:"type:text;not null;index"`
	Verified bool      `gorm:"not null"`
	LinkedAt time.Time `gorm:"not null"`
}

type DistributionRecord struct {
	ID            int64      `gorm:"primaryKey;autoIncrement"`
	UserID        string     `gorm:"type:text;not null;index"`
	CommunityID   string     `gorm:"type:text;not null;index"`
	EventID       int64      `gorm:"not null"`
	ClaimToken    string     `gorm:"type:text;not null"`
	Status        string     `gorm:"type:text;not null;index"`
	DistributedBy string     `gorm:"type:text;not null"`
	RuleID        *int64     `gorm:"index"`
	ClaimKey      *string    `gorm:"type:text;uniqueIndex"`
	CreatedAt     time.Time  `gorm:"not null"`
	ClaimedAt     *time.Time `gorm:""`
}

type AutomationRule struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	CommunityID string    `gorm:"type:text;not null;index:idx_rule_lookup"`
	TriggerType string    `gorm:"type:text;not null;index:idx_rule_lookup"`
	EventID     int64     `gorm:"not null"`
	TriggerData string    `gorm:"type:text"`
	SecretCode  string    `gorm:"type:text;not null"`
	Active      bool      `gorm:"not null;index:idx_rule_lookup"`
	CreatedBy   string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

type AccessGate struct {
	ID               int64                      `gorm:"primaryKey;autoIncrement"`
	CommunityID      string                     `gorm:"type:text;not null;index"`
	GateType         string                     `gorm:"type:text;not null"`
	RoleID           *string                    `gorm:"type:text"`
	ChannelID        *string                    `gorm:"type:text"`
	RequiredEventIDs datatypes.JSONSlice[int64] `gorm:"not null"`
	CreatedBy        string                     `gorm:"type:text;not null"`
	CreatedAt        time.Time                  `gorm:"not null"`
}

type EventCache struct {
	EventID  int64          `gorm:"primaryKey;autoIncrement:false"`
	Payload  datatypes.JSON `gorm:"not null"`
	CachedAt time.Time      `gorm:"not null"`
}

func (EventCache) TableName() string {
	return "event_cache"
}

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&WalletLink{},
		&DistributionRecord{},
		&AutomationRule{},
		&AccessGate{},
		&EventCache{},
	}
}
