// Package crawler drives a checkpointed walk over a cursor-paginated
// collection.
//
// Each iteration fetches a page after the current cursor, appends every node
// as a CSV row, flushes the page, and only then advances the cursor. The
// cursor is persisted every CheckpointEvery rows and on every exit, so a
// crash replays at most one checkpoint interval of rows. Delivery is
// at-least-once; deduplication is left to consumers of the dataset.
//
// A watcher goroutine turns SIGINT/SIGTERM into an immediate checkpoint save
// followed by cancellation of the crawl.
package crawler
