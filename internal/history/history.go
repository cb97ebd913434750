package history

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mediagrab/internal/medias"
	"mediagrab/internal/models"
)

// Store keeps the per-user list of previously delivered videos. The
// list is append-only and deduplicated by video value, so watching the
// same item twice never grows it.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// RecordIfAbsent appends video to the user's history unless an equal
// video is already there. Equality is by value: two videos with the
// same field content are the same entry. The unique
// (user_id, digest) index makes concurrent calls insert at most one
// row.
func (s *Store) RecordIfAbsent(ctx context.Context, userID string, video medias.Video) error {
	payload, err := json.Marshal(video)
	if err != nil {
		return fmt.Errorf("encode video: %w", err)
	}

	entry := models.HistoryEntry{
		UserID: userID,
		Digest: videoDigest(payload),
		Video:  payload,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error
}

// List returns the user's history, newest first.
func (s *Store) List(ctx context.Context, userID string, limit int) ([]medias.Video, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.HistoryEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	videos := make([]medias.Video, 0, len(rows))
	for _, row := range rows {
		var v medias.Video
		if err := json.Unmarshal(row.Video, &v); err != nil {
			return nil, fmt.Errorf("decode history entry %d: %w", row.ID, err)
		}
		videos = append(videos, v)
	}
	return videos, nil
}

func videoDigest(encoded []byte) string {
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
