package cbl

import (
	"fmt"

	"cblcrawl/pkg/storage"
)

const bansQuery = `query GetAllBans($after: String, $first: Int) {
  bans(first: $first, after: $after) {
    pageInfo {
      hasNextPage
      endCursor
    }
    edges {
      node {
        id
        created
        expires
        reason
        steamUser {
          id
          name
        }
        banList {
          name
          organisation {
            name
            discord
          }
        }
      }
    }
  }
}`

// Bans is the flat ban listing, one row per ban
func Bans() *Entity {
	return &Entity{
		Name:  "bans",
		Noun:  "bans",
		Field: "bans",
		Query: bansQuery,
		Columns: []string{
			"id", "created", "expires", "reason", "steam_user_id", "steam_user_name",
			"ban_list_name", "organisation_name", "organisation_discord",
		},
		CheckpointFile: "bans_checkpoint.json",
		OutputFile:     "cbl_bans.csv",
		Project: project([][]string{
			{"id"},
			{"created"},
			{"expires"},
			{"reason"},
			{"steamUser", "id"},
			{"steamUser", "name"},
			{"banList", "name"},
			{"banList", "organisation", "name"},
			{"banList", "organisation", "discord"},
		}),
		Summarize: summarizeBans,
	}
}

func summarizeBans(path string) ([]string, error) {
	n, err := storage.CountRows(path)
	if err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("Total bans retrieved so far: %d", n)}, nil
}
