package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an authenticated admin user
type User struct {
	gorm.Model
	Username     string `gorm:"unique"`
	PasswordHash string
}

// CachedDelivery maps an original media URL to the opaque handle the
// delivery channel issued for it. The handle is an uninterpreted blob;
// last write wins. StorageKey points at the mirrored binary, if any.
type CachedDelivery struct {
	gorm.Model
	OriginalURL string `gorm:"uniqueIndex"`
	Handle      []byte
	StorageKey  string
	MimeType    string
	DeliveredAt time.Time
}

// HistoryEntry is one previously delivered video in a user's history.
// Digest is a value-equality fingerprint of the video; the composite
// unique index is what makes RecordIfAbsent atomic per key.
type HistoryEntry struct {
	gorm.Model
	UserID string `gorm:"index;uniqueIndex:idx_history_user_digest"`
	Digest string `gorm:"uniqueIndex:idx_history_user_digest"`
	Video  []byte `gorm:"type:jsonb"`
}

// Report types
const (
	ReportMediaNotFound = "media_not_found"
	ReportWrongMedia    = "wrong_media"
)

// Report places
const (
	PlaceInline = "inline"
	PlaceDirect = "direct"
)

// Report is a deduplicated problem report: at most one row exists per
// (type, message, place) triple.
type Report struct {
	gorm.Model
	ReportType string `gorm:"uniqueIndex:idx_report_key"`
	Message    string `gorm:"uniqueIndex:idx_report_key"`
	Place      string `gorm:"uniqueIndex:idx_report_key"`
	ExtraData  []byte
}

// Delivery statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Delivery tracks one enqueued delivery of a resolved media to a user.
type Delivery struct {
	gorm.Model
	UserID      string `gorm:"index"`
	OriginalURL string `gorm:"index"`
	Status      string
	Media       []byte `gorm:"type:jsonb"` // resolved media value as JSON
	Error       string `gorm:"type:text"`
	Logs        string `gorm:"type:text"`
	RetryCount  int
}
