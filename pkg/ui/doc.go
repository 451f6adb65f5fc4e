// Package ui prints colored terminal output for the CLI, including per-batch
// crawl progress. Quiet mode suppresses everything except errors.
package ui
