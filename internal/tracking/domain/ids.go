package domain

// Draft and message identifiers come from disjoint provider namespaces.
// Keeping them as distinct types stops a draft cleanup path from ever
// being handed a message id.

// MessageID identifies a sent or received provider message
type MessageID string

// DraftID identifies an unsent provider draft
type DraftID string

// ThreadID identifies a provider conversation
type ThreadID string

// LabelID identifies a provider label
type LabelID string
