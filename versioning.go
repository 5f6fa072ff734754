package editlock

import (
	"fmt"
	"slices"
	"time"
)

// State is a document lifecycle state.
type State string

const (
	StateDraft     State = "draft"
	StateInReview  State = "in_review"
	StateApproved  State = "approved"
	StatePublished State = "published"
	StateArchived  State = "archived"
)

// Format is the file format of a document version.
type Format string

const (
	FormatDOCX Format = "docx"
	FormatPDF  Format = "pdf"
)

var (
	// transitions lists the states reachable from each state.
	transitions = map[State][]State{
		StateDraft:     {StateInReview, StateArchived},
		StateInReview:  {StateApproved, StateDraft, StateArchived},
		StateApproved:  {StatePublished, StateDraft, StateArchived},
		StatePublished: {StateDraft, StateArchived},
		StateArchived:  {StateDraft},
	}

	initialChangelog = "Versão inicial"
)

// Document is the metadata the decision functions read. PublishedVersionSeq
// is zero when nothing has been published.
type Document struct {
	ID                  string
	State               State
	LatestVersionSeq    int
	PublishedVersionSeq int
}

// Version is one stored version of a document.
type Version struct {
	DocumentID string
	VersionSeq int
	Format     Format
	CreatedAt  time.Time
	Changelog  string
}

// ParseState validates a lifecycle state name.
func ParseState(s string) (State, error) {
	var state = State(s)
	if _, ok := transitions[state]; !ok {
		return "", fmt.Errorf("%w: unknown document state %q", ErrInvalidArgument, s)
	}
	return state, nil
}

// ParseFormat validates a version format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatDOCX, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown version format %q", ErrInvalidArgument, s)
}

// ShouldCreateNewVersion decides whether a write forks a new version instead
// of editing candidateVersionSeq in place.
func ShouldCreateNewVersion(requestedNew, hasCurrentVersion bool, state State, publishedVersionSeq, candidateVersionSeq int) bool {
	if requestedNew || !hasCurrentVersion {
		return true
	}
	return !CanEditVersion(state, candidateVersionSeq, publishedVersionSeq)
}

// CanEditVersion reports whether versionSeq may be modified in place.
// Versions at or below the published watermark never are.
func CanEditVersion(state State, versionSeq, publishedVersionSeq int) bool {
	if state == StateArchived {
		return false
	}
	if publishedVersionSeq > 0 && versionSeq <= publishedVersionSeq {
		return false
	}
	return state == StateDraft || state == StateInReview
}

// NextVersionNumber returns the sequence number for a new version.
func NextVersionNumber(latestVersionSeq int) int {
	if latestVersionSeq < 0 {
		latestVersionSeq = 0
	}
	return latestVersionSeq + 1
}

// ValidateStateTransition reports whether from may move to to.
func ValidateStateTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// CheckStateTransition is ValidateStateTransition returning ErrInvalidTransition.
func CheckStateTransition(from, to State) error {
	if !ValidateStateTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// CanPublishVersion reports whether versionSeq may be published.
func CanPublishVersion(state State, versionSeq, publishedVersionSeq, requiredApprovals, currentApprovals int) bool {
	if state != StateApproved {
		return false
	}
	if publishedVersionSeq > 0 && versionSeq <= publishedVersionSeq {
		return false
	}
	return currentApprovals >= requiredApprovals
}

// RecommendedStateForNewVersion returns the state a document should take when
// a new version is created.
func RecommendedStateForNewVersion(state State) State {
	switch state {
	case StatePublished, StateInReview:
		return StateDraft
	}
	return state
}

// DeriveChangelog returns supplied when set, otherwise a generated entry.
func DeriveChangelog(supplied string, previous *Version) string {
	if supplied != "" {
		return supplied
	}
	if previous == nil {
		return initialChangelog
	}
	return fmt.Sprintf("Atualização da versão %d", previous.VersionSeq)
}

// HasVersionConflict reports whether existing already contains the
// (documentID, versionSeq, format) identity.
func HasVersionConflict(documentID string, versionSeq int, format Format, existing []Version) bool {
	return slices.ContainsFunc(existing, func(v Version) bool {
		return v.DocumentID == documentID && v.VersionSeq == versionSeq && v.Format == format
	})
}
