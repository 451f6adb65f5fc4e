package cbl

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cblcrawl/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	e, err := Lookup("bans")
	require.NoError(t, err)
	assert.Equal(t, "bans", e.Field)
	assert.Equal(t, "cbl_bans.csv", e.OutputFile)
	assert.Equal(t, "bans_checkpoint.json", e.CheckpointFile)

	e, err = Lookup("users")
	require.NoError(t, err)
	assert.Equal(t, "steamUsers", e.Field)
	assert.Equal(t, "cbl_data.csv", e.OutputFile)
	assert.Equal(t, "checkpoint.json", e.CheckpointFile)

	_, err = Lookup("orgs")
	assert.Error(t, err)
}

func TestQueriesSelectTheirField(t *testing.T) {
	for _, e := range Entities() {
		assert.Contains(t, e.Query, e.Field+"(first: $first, after: $after)")
		assert.Contains(t, e.Query, "hasNextPage")
		assert.Contains(t, e.Query, "endCursor")
		assert.Equal(t, len(e.Columns), len(uniq(e.Columns)), "duplicate columns in %s", e.Name)
	}
}

func uniq(s []string) map[string]bool {
	m := map[string]bool{}
	for _, v := range s {
		m[v] = true
	}
	return m
}

func TestProjectBan(t *testing.T) {
	node := json.RawMessage(`{
		"id": "42", "created": "2023-01-01T00:00:00Z", "expires": null, "reason": "Cheating, \"aimbot\"",
		"steamUser": {"id": "76561198000000000", "name": "player"},
		"banList": {"name": "Main", "organisation": {"name": "Org", "discord": "https://discord.gg/x"}}
	}`)

	row, err := Bans().Project(node)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"42", "2023-01-01T00:00:00Z", "", "Cheating, \"aimbot\"", "76561198000000000", "player",
		"Main", "Org", "https://discord.gg/x",
	}, row)
	assert.Len(t, row, len(Bans().Columns))
}

func TestProjectBanNullNested(t *testing.T) {
	row, err := Bans().Project(json.RawMessage(`{"id":"1","steamUser":null,"banList":{"name":"L","organisation":null}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "", "", "", "", "", "L", "", ""}, row)
}

func TestProjectBanRejectsMalformed(t *testing.T) {
	_, err := Bans().Project(json.RawMessage(`[1,2]`))
	assert.Error(t, err)

	_, err = Bans().Project(json.RawMessage(`{"id":{"nested":true}}`))
	assert.Error(t, err)

	_, err = Bans().Project(json.RawMessage(`{"id":"1","steamUser":"not-an-object"}`))
	assert.Error(t, err)
}

func TestProjectRequiresNodeID(t *testing.T) {
	for _, e := range Entities() {
		for _, raw := range []string{`null`, ``, `{}`, `{"id":null}`, `{"id":""}`, `{"reason":"r"}`} {
			_, err := e.Project(json.RawMessage(raw))
			assert.Error(t, err, "%s accepted %q", e.Name, raw)
		}
	}
}

func TestProjectUser(t *testing.T) {
	node := json.RawMessage(`{
		"id": "7656", "name": "someone", "avatarFull": "https://img/x.jpg",
		"reputationPoints": 12, "riskRating": 3.5, "reputationRank": 100,
		"activeBans": {"edges": [{"node": {"id": "a"}}, {"node": {"id": "b"}}]},
		"expiredBans": {"edges": []}
	}`)

	row, err := SteamUsers().Project(node)
	require.NoError(t, err)
	assert.Equal(t, []string{"7656", "someone", "https://img/x.jpg", "12", "3.5", "100", "2", "0"}, row)
	assert.Len(t, row, len(SteamUsers().Columns))
}

func TestProjectUserMissingBans(t *testing.T) {
	row, err := SteamUsers().Project(json.RawMessage(`{"id":"1","activeBans":null}`))
	require.NoError(t, err)
	assert.Equal(t, "0", row[6])
	assert.Equal(t, "0", row[7])

	_, err = SteamUsers().Project(json.RawMessage(`{"id":"1","activeBans":{"edges":5}}`))
	assert.Error(t, err)
}

func writeUsers(t *testing.T, rows ...[]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cbl_data.csv")
	w, err := storage.Open(path, SteamUsers().Columns)
	require.NoError(t, err)
	for _, r := range rows {
		require.NoError(t, w.WriteRow(r))
	}
	require.NoError(t, w.Close())
	return path
}

func TestSummarizeUsers(t *testing.T) {
	path := writeUsers(t,
		[]string{"1", "a", "", "0", "0", "0", "2", "1"},
		[]string{"2", "b", "", "0", "0", "0", "0", "3"},
	)

	lines, err := SteamUsers().Summarize(path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Total users retrieved so far: 2",
		"Total active bans: 2",
		"Total expired bans: 4",
		"Total bans: 6",
	}, lines)
}

func TestSummarizeUsersHeaderOnly(t *testing.T) {
	lines, err := SteamUsers().Summarize(writeUsers(t))
	require.NoError(t, err)
	assert.Equal(t, "Total users retrieved so far: 0", lines[0])
	assert.Equal(t, "Total bans: 0", lines[3])
}

func TestSummarizeUsersBadCount(t *testing.T) {
	path := writeUsers(t, []string{"9", "x", "", "0", "0", "0", "many", "0"})
	_, err := SteamUsers().Summarize(path)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "user 9"))
}

func TestSummarizeBans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cbl_bans.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(Bans().Columns, ",")+"\n1,,,,,,,,\n2,,,,,,,,\n"), 0644))

	lines, err := Bans().Summarize(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Total bans retrieved so far: 2"}, lines)
}

func TestSummarizeMissingFile(t *testing.T) {
	for _, e := range Entities() {
		_, err := e.Summarize(filepath.Join(t.TempDir(), e.OutputFile))
		assert.ErrorIs(t, err, storage.ErrNoData, e.Name)
	}
}
