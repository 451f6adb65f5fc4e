// Package checkpoint stores the crawl resume cursor.
//
// The persisted form is the JSON document {"after": <string|null>}. FileStore
// replaces the file by writing a sibling ".tmp" file, syncing it and renaming
// it into place, so a crash leaves either the old or the new cursor. Saves are
// serialized with a mutex because the interrupt watcher may save while the
// crawl loop does. RedisStore keeps the same document under one key.
//
// A checkpoint that cannot be decoded is treated as absent: the crawl restarts
// from the beginning rather than failing.
package checkpoint
