package cbl

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"cblcrawl/pkg/storage"
)

const banSelection = `edges {
          node {
            id
            created
            expires
            reason
            banList {
              name
              organisation {
                name
                discord
              }
            }
          }
        }`

var usersQuery = `query GetAllSteamUsers($after: String, $first: Int) {
  steamUsers(first: $first, after: $after) {
    pageInfo {
      hasNextPage
      endCursor
    }
    edges {
      node {
        id
        name
        avatarFull
        reputationPoints
        riskRating
        reputationRank
        activeBans: bans(orderBy: "created", orderDirection: DESC, expired: false) {
        ` + banSelection + `
        }
        expiredBans: bans(orderBy: "created", orderDirection: DESC, expired: true) {
        ` + banSelection + `
        }
      }
    }
  }
}`

var userScalars = []string{"id", "name", "avatarFull", "reputationPoints", "riskRating", "reputationRank"}

// SteamUsers lists Steam accounts with their active and expired ban counts
func SteamUsers() *Entity {
	return &Entity{
		Name:           "users",
		Noun:           "users",
		Field:          "steamUsers",
		Query:          usersQuery,
		Columns:        append(append([]string(nil), userScalars...), "activeBans", "expiredBans"),
		CheckpointFile: "checkpoint.json",
		OutputFile:     "cbl_data.csv",
		Project:        projectUser,
		Summarize:      summarizeUsers,
	}
}

func projectUser(raw json.RawMessage) ([]string, error) {
	node, err := record(raw)
	if err != nil {
		return nil, err
	}

	row := make([]string, 0, len(userScalars)+2)
	for _, key := range userScalars {
		v, err := path(node, key)
		if err != nil {
			return nil, err
		}
		row = append(row, v)
	}

	for _, alias := range []string{"activeBans", "expiredBans"} {
		n, err := edgeCount(node[alias])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", alias, err)
		}
		row = append(row, strconv.Itoa(n))
	}
	return row, nil
}

func edgeCount(raw json.RawMessage) (int, error) {
	conn, err := object(raw)
	if err != nil {
		return 0, err
	}
	edges, ok := conn["edges"]
	if !ok || string(edges) == "null" {
		return 0, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(edges, &list); err != nil {
		return 0, err
	}
	return len(list), nil
}

// UserTotals aggregates the users dataset
type UserTotals struct {
	Users       int
	ActiveBans  int
	ExpiredBans int
}

// TallyUsers sums ban counts across every row of the users dataset
func TallyUsers(path string) (UserTotals, error) {
	var t UserTotals
	err := storage.EachRecord(path, func(r map[string]string) error {
		active, err := atoi(r["activeBans"])
		if err != nil {
			return fmt.Errorf("user %s: activeBans: %w", r["id"], err)
		}
		expired, err := atoi(r["expiredBans"])
		if err != nil {
			return fmt.Errorf("user %s: expiredBans: %w", r["id"], err)
		}
		t.Users++
		t.ActiveBans += active
		t.ExpiredBans += expired
		return nil
	})
	return t, err
}

func atoi(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func summarizeUsers(path string) ([]string, error) {
	t, err := TallyUsers(path)
	if err != nil {
		return nil, err
	}
	return []string{
		fmt.Sprintf("Total users retrieved so far: %d", t.Users),
		fmt.Sprintf("Total active bans: %d", t.ActiveBans),
		fmt.Sprintf("Total expired bans: %d", t.ExpiredBans),
		fmt.Sprintf("Total bans: %d", t.ActiveBans+t.ExpiredBans),
	}, nil
}
