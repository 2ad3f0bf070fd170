package checkpoint

import (
	"errors"
	"fmt"

	"mastowatch/pkg/logger"
)

// FollowerStore loads and saves the follower snapshot
type FollowerStore struct {
	path   string
	backup bool
	logger logger.Logger
}

// NewFollowerStore creates a store backed by the JSON file at path
func NewFollowerStore(path string, log logger.Logger) *FollowerStore {
	if log == nil {
		log = logger.GetLogger()
	}
	return &FollowerStore{
		path:   path,
		logger: log.WithField("state_file", path),
	}
}

// KeepBackup makes every save first copy the previous snapshot to
// <path>.backup
func (s *FollowerStore) KeepBackup(enabled bool) {
	s.backup = enabled
}

// LoadFollowers returns the stored snapshot. A missing or unparsable file
// yields an empty snapshot; only I/O failures are reported.
func (s *FollowerStore) LoadFollowers() (map[string]string, error) {
	snapshot := make(map[string]string)

	found, err := readJSON(s.path, &snapshot)
	var corrupt *CorruptError
	switch {
	case errors.As(err, &corrupt):
		s.logger.WithError(err).Warn("Follower snapshot is unreadable, starting from an empty one")
		return make(map[string]string), nil
	case err != nil:
		return nil, err
	case !found:
		s.logger.Info("No follower snapshot yet, starting from an empty one")
		return snapshot, nil
	}

	if snapshot == nil {
		// A file containing "null" decodes to a nil map.
		snapshot = make(map[string]string)
	}

	s.logger.DebugWithFields("Follower snapshot loaded", map[string]interface{}{
		"followers": len(snapshot),
	})

	return snapshot, nil
}

// SaveFollowers replaces the stored snapshot with snapshot
func (s *FollowerStore) SaveFollowers(snapshot map[string]string) error {
	if snapshot == nil {
		snapshot = map[string]string{}
	}

	if s.backup {
		if err := backup(s.path); err != nil {
			return err
		}
	}

	if err := writeJSON(s.path, snapshot); err != nil {
		return fmt.Errorf("failed to save follower snapshot: %w", err)
	}

	s.logger.DebugWithFields("Follower snapshot saved", map[string]interface{}{
		"followers": len(snapshot),
	})

	return nil
}
