// Package storage appends crawl records to a local CSV dataset and reads it
// back for summaries.
//
// The file is append-only and owned by one crawl at a time. Writer commits
// whole pages: rows accumulate in memory and Flush appends them with a single
// write followed by fsync.
package storage
