// Package logger wraps zerolog behind a small structured logging interface.
//
// The CLI initializes a global logger from config.LoggingConfig; library
// packages take a Logger as a dependency so tests can pass NewNopLogger or
// NewTestLogger instead.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("entity", "bans")
//	log.InfoWithFields("Crawl started", map[string]interface{}{"page_size": 500})
package logger
