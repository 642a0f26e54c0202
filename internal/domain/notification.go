package domain

import "time"

// NotificationKind identifies what a sync notification reports
type NotificationKind string

const (
	NotificationImportFinished   NotificationKind = "import_finished"
	NotificationWebhookProcessed NotificationKind = "webhook_processed"
	NotificationTenantAdded      NotificationKind = "tenant_added"
	NotificationTenantRemoved    NotificationKind = "tenant_removed"
)

// Notification is published whenever tenant data changes through either ingestion path
type Notification struct {
	Kind     NotificationKind `json:"kind"`
	TenantID string           `json:"tenant_id"`
	Topic    string           `json:"topic,omitempty"`
	EventID  string           `json:"event_id,omitempty"`
	Status   string           `json:"status,omitempty"`
	Import   *ImportResult    `json:"import,omitempty"`
	At       time.Time        `json:"at"`
}
