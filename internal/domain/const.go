package domain

// DistributedByAutomation marks records written by the rule engine.
const DistributedByAutomation = "automation"

type DistributionStatus string

const (
	StatusPending DistributionStatus = "pending"
	StatusClaimed DistributionStatus = "claimed"
	StatusFailed  DistributionStatus = "failed"
)

type GateType string

const (
	GateRole    GateType = "role"
	GateChannel GateType = "channel"
)

type OutcomeKind string

const (
	OutcomeIssued           OutcomeKind = "issued"
	OutcomeSkippedUnlinked  OutcomeKind = "skipped_unlinked"
	OutcomeSkippedExhausted OutcomeKind = "skipped_exhausted"
	OutcomeSkippedDuplicate OutcomeKind = "skipped_duplicate"
	OutcomeSkippedFiltered  OutcomeKind = "skipped_filtered"
	OutcomeFailed           OutcomeKind = "failed"
)

// Platform permission bits.
const (
	PermissionAdministrator      int64 = 1 << 3
	PermissionManageGuild        int64 = 1 << 5
	PermissionViewChannel        int64 = 1 << 10
	PermissionSendMessages       int64 = 1 << 11
	PermissionReadMessageHistory int64 = 1 << 16
)

// GatedChannelAllow is granted to members passing a channel gate.
const GatedChannelAllow = PermissionViewChannel | PermissionSendMessages | PermissionReadMessageHistory
