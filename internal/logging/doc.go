// Package logging provides structured logging for biobot entry points.
//
// Each invocation of an entry point is a short-lived process, so the log is
// the only record of what a step read, what it wrote and why it refused.
// The package wraps log/slog with a JSON handler and attaches protocol
// context (experiment index, experiment ID, channel, iteration) to entries.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/data/.biobot", logging.Options{Level: logging.LevelInfo})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	stepLogger := logger.WithExperiment(0, "20240101120000").WithIteration(3)
//	stepLogger.Info("intervention written", "file", "20240101120000_3.json")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"intervention written","experiment_index":0,"experiment_id":"20240101120000","iteration":3,"file":"20240101120000_3.json"}
//
// # Rotation
//
// When Options.Rotation.MaxSizeMB is positive the log file is rotated by
// size into debug.log.1 ... debug.log.N, optionally gzip compressed.
//
// # Thread Safety
//
// [Logger] and [RotatingWriter] are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer.
package logging
