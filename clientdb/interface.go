package clientdb

import (
	"context"
	"errors"
	"time"

	"github.com/NikhilRaikwar/Cubeathon/ledger"
)

var (
	ErrFragmentNotFound   = errors.New("fragment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrBucketNotFound     = errors.New("bucket not found")
)

// FragmentRole records which side of the handoff produced the fragment.
type FragmentRole string

const (
	RoleInitiator   FragmentRole = "initiator"
	RoleCounterpart FragmentRole = "counterpart"
)

// FragmentRecord is a transport artifact kept locally while it waits for the
// counterpart: the initiator keeps what it exported, the counterpart keeps
// what it imported but has not finalized yet.
type FragmentRecord struct {
	SessionID        uint32           `json:"session_id"`
	Role             FragmentRole     `json:"role"`
	Counterpart      ledger.AccountID `json:"counterpart"`
	Artifact         string           `json:"artifact"`
	ExpirationLedger uint32           `json:"expiration_ledger"`
	CreatedAt        time.Time        `json:"created_at"`
}

// SubmissionRecord tracks a submitted transaction so an observation that
// timed out can be resumed later by hash.
type SubmissionRecord struct {
	Hash        string    `json:"hash"`
	SessionID   uint32    `json:"session_id"`
	Op          string    `json:"op"`
	Status      string    `json:"status"`
	Diag        string    `json:"diag,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ClientDB interface {
	SaveFragment(ctx context.Context, rec *FragmentRecord) error
	FetchFragment(ctx context.Context, sessionID uint32) (*FragmentRecord, error)
	ListFragments(ctx context.Context) ([]*FragmentRecord, error)
	DeleteFragment(ctx context.Context, sessionID uint32) error

	SaveSubmission(ctx context.Context, rec *SubmissionRecord) error
	UpdateSubmissionStatus(ctx context.Context, hash, status, diag string) error
	FetchSubmission(ctx context.Context, hash string) (*SubmissionRecord, error)
	FetchSubmissionsBySession(ctx context.Context, sessionID uint32) ([]*SubmissionRecord, error)

	Close() error
}
