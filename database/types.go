package database

import "time"

// LeaseRecord represents an edit lease row in the database.
type LeaseRecord struct {
	DocumentID string
	VersionSeq int
	LeaseKey   string
	Holder     string
	SessionID  string
	CoEditing  bool
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// DocumentRecord represents a document row owned by the surrounding document service.
// PublishedVersionSeq is zero when nothing has been published yet.
type DocumentRecord struct {
	ID                  string
	State               string
	LatestVersionSeq    int
	PublishedVersionSeq int
}

// VersionRecord represents one stored version of a document.
type VersionRecord struct {
	DocumentID string
	VersionSeq int
	Format     string
	CreatedAt  time.Time
	Changelog  string
}
