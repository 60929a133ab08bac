// Package log provides the leveled logging interface used across the cannoli
// engine.
//
// The engine logs status transitions at Debug, recoverable problems (missing
// notes, unresolved variables) at Warn, and failures at Error. Hosts either
// use the stdlib-backed DefaultLogger, silence everything with NoOpLogger,
// plug in golog via NewGologLogger, or implement Logger themselves.
//
//	logger := log.NewDefaultLogger(log.LevelDebug)
//	log.SetDefaultLogger(logger)
//
// A package-level default logger keeps engine internals free of logger
// plumbing; per-run loggers can still be passed through run params.
package log
