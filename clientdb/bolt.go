package clientdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	fragmentBucket   = "fragments"
	submissionBucket = "submissions"
)

// BoltDB is the bbolt-backed ClientDB.
type BoltDB struct {
	db *bbolt.DB
}

var _ ClientDB = (*BoltDB)(nil)

// NewBoltDB opens (creating if needed) the database at path.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open client db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{fragmentBucket, submissionBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltDB{db: db}, nil
}

func (b *BoltDB) Close() error {
	return b.db.Close()
}

func sessionKey(sessionID uint32) []byte {
	var k [4]byte
	binary.BigEndian.PutUint32(k[:], sessionID)
	return k[:]
}

func (b *BoltDB) SaveFragment(ctx context.Context, rec *FragmentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal fragment: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(fragmentBucket))
		if bucket == nil {
			return ErrBucketNotFound
		}
		return bucket.Put(sessionKey(rec.SessionID), payload)
	})
}

func (b *BoltDB) FetchFragment(ctx context.Context, sessionID uint32) (*FragmentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec FragmentRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(fragmentBucket))
		if bucket == nil {
			return ErrBucketNotFound
		}
		payload := bucket.Get(sessionKey(sessionID))
		if payload == nil {
			return ErrFragmentNotFound
		}
		return json.Unmarshal(payload, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (b *BoltDB) ListFragments(ctx context.Context) ([]*FragmentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var recs []*FragmentRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(fragmentBucket))
		if bucket == nil {
			return ErrBucketNotFound
		}
		return bucket.ForEach(func(_, payload []byte) error {
			var rec FragmentRecord
			if err := json.Unmarshal(payload, &rec); err != nil {
				return fmt.Errorf("unmarshal fragment: %w", err)
			}
			recs = append(recs, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (b *BoltDB) DeleteFragment(ctx context.Context, sessionID uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(fragmentBucket))
		if bucket == nil {
			return ErrBucketNotFound
		}
		return bucket.Delete(sessionKey(sessionID))
	})
}

func (b *BoltDB) SaveSubmission(ctx context.Context, rec *SubmissionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.Hash == "" {
		return fmt.Errorf("submission hash is required")
	}
	now := time.Now()
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = now
	}
	rec.UpdatedAt = now
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(submissionBucket))
		if bucket == nil {
			return ErrBucketNotFound
		}
		return bucket.Put([]byte(rec.Hash), payload)
	})
}

func (b *BoltDB) UpdateSubmissionStatus(ctx context.Context, hash, status, diag string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(submissionBucket))
		if bucket == nil {
			return ErrBucketNotFound
		}
		payload := bucket.Get([]byte(hash))
		if payload == nil {
			return ErrSubmissionNotFound
		}
		var rec SubmissionRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return fmt.Errorf("unmarshal submission: %w", err)
		}
		rec.Status = status
		rec.Diag = diag
		rec.UpdatedAt = time.Now()
		updated, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("marshal submission: %w", err)
		}
		return bucket.Put([]byte(hash), updated)
	})
}

func (b *BoltDB) FetchSubmission(ctx context.Context, hash string) (*SubmissionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec SubmissionRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(submissionBucket))
		if bucket == nil {
			return ErrBucketNotFound
		}
		payload := bucket.Get([]byte(hash))
		if payload == nil {
			return ErrSubmissionNotFound
		}
		return json.Unmarshal(payload, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (b *BoltDB) FetchSubmissionsBySession(ctx context.Context, sessionID uint32) ([]*SubmissionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var recs []*SubmissionRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(submissionBucket))
		if bucket == nil {
			return ErrBucketNotFound
		}
		return bucket.ForEach(func(_, payload []byte) error {
			var rec SubmissionRecord
			if err := json.Unmarshal(payload, &rec); err != nil {
				return fmt.Errorf("unmarshal submission: %w", err)
			}
			if rec.SessionID == sessionID {
				recs = append(recs, &rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}
