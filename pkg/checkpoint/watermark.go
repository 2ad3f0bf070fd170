package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"time"

	"mastowatch/pkg/logger"
)

// Watermark records the newest source post the mirror has handled
type Watermark struct {
	LastID    string    `json:"last_id"`
	AccountID string    `json:"account_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WatermarkStore loads and saves the mirror watermark
type WatermarkStore struct {
	path   string
	logger logger.Logger
}

// NewWatermarkStore creates a store backed by the JSON file at path
func NewWatermarkStore(path string, log logger.Logger) *WatermarkStore {
	if log == nil {
		log = logger.GetLogger()
	}
	return &WatermarkStore{
		path:   path,
		logger: log.WithField("state_file", path),
	}
}

// LoadWatermark returns the stored watermark, or nil when there is none.
// An unreadable file is treated like a missing one.
func (s *WatermarkStore) LoadWatermark() (*Watermark, error) {
	var wm Watermark

	found, err := readJSON(s.path, &wm)
	var corrupt *CorruptError
	switch {
	case errors.As(err, &corrupt):
		s.logger.WithError(err).Warn("Watermark is unreadable, ignoring it")
		return nil, nil
	case err != nil:
		return nil, err
	case !found || wm.LastID == "":
		return nil, nil
	}

	s.logger.InfoWithFields("Watermark loaded", map[string]interface{}{
		"last_id":    wm.LastID,
		"account_id": wm.AccountID,
		"updated_at": wm.UpdatedAt,
	})

	return &wm, nil
}

// SaveWatermark persists wm, stamping UpdatedAt
func (s *WatermarkStore) SaveWatermark(wm *Watermark) error {
	wm.UpdatedAt = time.Now()

	if err := writeJSON(s.path, wm); err != nil {
		return fmt.Errorf("failed to save watermark: %w", err)
	}

	s.logger.DebugWithFields("Watermark saved", map[string]interface{}{
		"last_id": wm.LastID,
	})

	return nil
}

// Delete removes the watermark file
func (s *WatermarkStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete watermark: %w", err)
	}

	s.logger.Info("Watermark deleted")
	return nil
}
