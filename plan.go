package editlock

import (
	"context"
	"database/sql"
	"fmt"

	"go-editlock/database"
)

// DocumentProvider supplies read-only document metadata.
type DocumentProvider interface {
	// Document returns the document or an error wrapping ErrNotFound.
	Document(ctx context.Context, id string) (Document, error)
	// LatestVersion returns the highest version, or nil when there is none.
	LatestVersion(ctx context.Context, documentID string) (*Version, error)
	// Versions returns every stored version of the document.
	Versions(ctx context.Context, documentID string) ([]Version, error)
}

// WriteRequest describes an incoming write. VersionSeq zero means the latest version.
type WriteRequest struct {
	DocumentID string
	VersionSeq int
	Format     Format
	RequestNew bool
	Changelog  string
}

// WritePlan is the classified write.
type WritePlan struct {
	// Target is the version the writer must hold a lease on.
	Target Target
	// CreateNew is true when the write forks a new version.
	CreateNew bool
	// VersionSeq is the version the write lands in.
	VersionSeq int
	// ReplacesExisting is true when (document, VersionSeq, format) is already stored.
	ReplacesExisting bool
	Changelog        string
	// State is the document state after the write.
	State State
}

// PlanWrite decides whether req edits a version in place or creates a new one.
func PlanWrite(ctx context.Context, docs DocumentProvider, req WriteRequest) (WritePlan, error) {
	if req.DocumentID == "" {
		return WritePlan{}, fmt.Errorf("%w: document id is required", ErrInvalidArgument)
	}
	if req.VersionSeq < 0 {
		return WritePlan{}, fmt.Errorf("%w: version must not be negative, got %d", ErrInvalidArgument, req.VersionSeq)
	}
	if req.Format != "" {
		if _, err := ParseFormat(string(req.Format)); err != nil {
			return WritePlan{}, err
		}
	}

	doc, err := docs.Document(ctx, req.DocumentID)
	if err != nil {
		return WritePlan{}, unavailable("load document", err)
	}
	latest, err := docs.LatestVersion(ctx, req.DocumentID)
	if err != nil {
		return WritePlan{}, unavailable("load latest version", err)
	}

	var versions []Version
	if req.VersionSeq != 0 || req.Format != "" {
		versions, err = docs.Versions(ctx, req.DocumentID)
		if err != nil {
			return WritePlan{}, unavailable("list versions", err)
		}
	}

	var (
		candidate  = req.VersionSeq
		hasCurrent = latest != nil
	)
	switch {
	case candidate != 0:
		// An explicit version counts only if its row exists; gaps are possible.
		hasCurrent = hasVersion(versions, candidate)
	case latest != nil:
		candidate = latest.VersionSeq
	default:
		candidate = 1
	}

	var plan = WritePlan{
		Target:     Target{DocumentID: req.DocumentID, VersionSeq: candidate},
		CreateNew:  ShouldCreateNewVersion(req.RequestNew, hasCurrent, doc.State, doc.PublishedVersionSeq, candidate),
		VersionSeq: candidate,
		Changelog:  DeriveChangelog(req.Changelog, latest),
		State:      doc.State,
	}

	if plan.CreateNew {
		var highest = doc.LatestVersionSeq
		if latest != nil && latest.VersionSeq > highest {
			highest = latest.VersionSeq
		}
		plan.VersionSeq = NextVersionNumber(highest)
		plan.State = RecommendedStateForNewVersion(doc.State)
	}

	if req.Format != "" {
		plan.ReplacesExisting = HasVersionConflict(req.DocumentID, plan.VersionSeq, req.Format, versions)
	}

	return plan, nil
}

func hasVersion(versions []Version, seq int) bool {
	for _, v := range versions {
		if v.VersionSeq == seq {
			return true
		}
	}
	return false
}

// SQLDocuments reads document metadata from the documents and versions tables.
type SQLDocuments struct {
	queries *database.DocumentQueries
}

// NewSQLDocuments creates a DocumentProvider over the table prefix.
func NewSQLDocuments(db *sql.DB, tableName string) (*SQLDocuments, error) {
	if err := database.ValidateTableName(tableName); err != nil {
		return nil, fmt.Errorf("invalid table name: %w", err)
	}
	return &SQLDocuments{queries: database.NewDocumentQueries(db, tableName)}, nil
}

func (d *SQLDocuments) Document(ctx context.Context, id string) (Document, error) {
	record, err := d.queries.GetDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if record == nil {
		return Document{}, fmt.Errorf("document %q: %w", id, ErrNotFound)
	}

	state, err := ParseState(record.State)
	if err != nil {
		return Document{}, err
	}
	return Document{
		ID:                  record.ID,
		State:               state,
		LatestVersionSeq:    record.LatestVersionSeq,
		PublishedVersionSeq: record.PublishedVersionSeq,
	}, nil
}

func (d *SQLDocuments) LatestVersion(ctx context.Context, documentID string) (*Version, error) {
	record, err := d.queries.GetLatestVersion(ctx, documentID)
	if err != nil || record == nil {
		return nil, err
	}
	var version = toVersion(record)
	return &version, nil
}

func (d *SQLDocuments) Versions(ctx context.Context, documentID string) ([]Version, error) {
	records, err := d.queries.ListVersions(ctx, documentID)
	if err != nil {
		return nil, err
	}

	var versions = make([]Version, len(records))
	for i, record := range records {
		versions[i] = toVersion(record)
	}
	return versions, nil
}

func toVersion(record *database.VersionRecord) Version {
	return Version{
		DocumentID: record.DocumentID,
		VersionSeq: record.VersionSeq,
		Format:     Format(record.Format),
		CreatedAt:  record.CreatedAt,
		Changelog:  record.Changelog,
	}
}
