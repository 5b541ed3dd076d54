package clientdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func openTestDB(t *testing.T, path string) *BoltDB {
	t.Helper()
	db, err := NewBoltDB(path)
	assert.NoError(t, err)
	return db
}

func TestFragmentLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.db")
	db := openTestDB(t, path)
	ctx := context.Background()

	_, err := db.FetchFragment(ctx, 7)
	assert.ErrorIs(t, err, ErrFragmentNotFound)

	rec := &FragmentRecord{
		SessionID:        7,
		Role:             RoleInitiator,
		Counterpart:      "02bb",
		Artifact:         "ZGF0YQ==",
		ExpirationLedger: 1360,
	}
	assert.NoError(t, db.SaveFragment(ctx, rec))
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := db.FetchFragment(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, rec.Artifact, got.Artifact)
	assert.Equal(t, RoleInitiator, got.Role)

	// Records survive reopening the database.
	assert.NoError(t, db.Close())
	db = openTestDB(t, path)
	defer db.Close()

	got, err = db.FetchFragment(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, uint32(1360), got.ExpirationLedger)

	all, err := db.ListFragments(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 1)

	assert.NoError(t, db.DeleteFragment(ctx, 7))
	_, err = db.FetchFragment(ctx, 7)
	assert.ErrorIs(t, err, ErrFragmentNotFound)
}

func TestSubmissionLifecycle(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "client.db"))
	defer db.Close()
	ctx := context.Background()

	err := db.SaveSubmission(ctx, &SubmissionRecord{SessionID: 7})
	assert.Error(t, err)

	rec := &SubmissionRecord{
		Hash:      "deadbeef",
		SessionID: 7,
		Op:        "start_game",
		Status:    "PENDING",
	}
	assert.NoError(t, db.SaveSubmission(ctx, rec))

	got, err := db.FetchSubmission(ctx, "deadbeef")
	assert.NoError(t, err)
	assert.Equal(t, "PENDING", got.Status)

	assert.NoError(t, db.UpdateSubmissionStatus(ctx, "deadbeef", "SUCCESS", ""))
	got, err = db.FetchSubmission(ctx, "deadbeef")
	assert.NoError(t, err)
	assert.Equal(t, "SUCCESS", got.Status)
	assert.True(t, got.UpdatedAt.After(got.SubmittedAt) || got.UpdatedAt.Equal(got.SubmittedAt))

	err = db.UpdateSubmissionStatus(ctx, "unknown", "SUCCESS", "")
	assert.ErrorIs(t, err, ErrSubmissionNotFound)

	assert.NoError(t, db.SaveSubmission(ctx, &SubmissionRecord{
		Hash: "cafe", SessionID: 8, Op: "submit_level", Status: "PENDING",
	}))
	bySession, err := db.FetchSubmissionsBySession(ctx, 7)
	assert.NoError(t, err)
	assert.Len(t, bySession, 1)
	assert.Equal(t, "deadbeef", bySession[0].Hash)
}

func TestContextCancellation(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "client.db"))
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := db.SaveFragment(ctx, &FragmentRecord{SessionID: 1})
	assert.True(t, errors.Is(err, context.Canceled))
	_, err = db.FetchSubmission(ctx, "x")
	assert.True(t, errors.Is(err, context.Canceled))
}
