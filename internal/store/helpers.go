package store

import "strings"

// boolToInt converts a boolean to an int for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// likeEscaper rewrites the wildcards SQLite's LIKE recognizes so user
// search text matches literally. Queries that use it carry ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLikePattern(s string) string {
	return likeEscaper.Replace(s)
}
