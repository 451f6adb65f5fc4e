// Package cbl defines the Community Ban List collections the crawler knows
// how to extract: the GraphQL query for each, its CSV columns, how a node is
// flattened into a row, and the --count summary.
package cbl
