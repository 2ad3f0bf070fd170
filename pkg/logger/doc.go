// Package logger provides structured logging for mastowatch.
//
// It wraps zerolog behind a small Logger interface so components can take a
// logger as a dependency and tests can substitute NewTestLogger:
//
//	logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("component", "mirror")
//	log.InfoWithFields("Post mirrored", map[string]interface{}{
//	    "status_id": id,
//	    "media":     len(mediaIDs),
//	})
//
// Without a log file the output is a colored console stream on stderr. When
// logging.file is set, JSON lines are appended to that file as well.
package logger
