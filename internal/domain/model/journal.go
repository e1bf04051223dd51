package model

import "time"

type JournalKind string

const (
	JournalBind     JournalKind = "bind"
	JournalDelivery JournalKind = "delivery"
	JournalDecision JournalKind = "decision"
)

// JournalEntry is an append-only audit record, read back only through the admin API.
type JournalEntry struct {
	ID         string
	Kind       JournalKind
	Ref        string
	ChatTarget string
	Outcome    string
	Detail     string
	CreatedAt  time.Time
}
