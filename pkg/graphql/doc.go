// Package graphql fetches single pages of a Relay-style connection.
//
// A Client is bound to one query and the name of the connection field it
// selects. Each Fetch POSTs {query, variables: {after, first}} and decodes
// data.<field>.{pageInfo, edges[].node}. Non-2xx statuses, transport failures
// and malformed bodies come back as *errors.Error so callers can decide
// whether to retry.
package graphql
