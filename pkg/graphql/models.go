package graphql

import "encoding/json"

// Page is one decoded connection page. Edges holds the raw node objects in
// server order; callers project them into rows.
type Page struct {
	Edges       []json.RawMessage
	HasNextPage bool
	EndCursor   *string
}

// Variables are the pagination arguments sent with every query
type Variables struct {
	After *string `json:"after"`
	First int     `json:"first"`
}

type request struct {
	Query     string    `json:"query"`
	Variables Variables `json:"variables"`
}

type response struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []responseError            `json:"errors"`
}

type responseError struct {
	Message string `json:"message"`
}

type connection struct {
	PageInfo *struct {
		HasNextPage bool    `json:"hasNextPage"`
		EndCursor   *string `json:"endCursor"`
	} `json:"pageInfo"`
	Edges []struct {
		Node json.RawMessage `json:"node"`
	} `json:"edges"`
}
