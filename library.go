package main

import (
	"strings"
	"unicode"

	"github.com/jackc/pgx"
	"github.com/pkg/errors"
)

// normalize folds a requested sound name to lowercase letters and digits so
// lookups survive punctuation and casing.
func normalize(v string) string {
	var b strings.Builder
	for _, r := range v {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// lookupSound resolves a request to a row of the sounds table, preferring an
// exact name match and falling back to a random substring match.
func lookupSound(request string) (name, url string, err error) {
	key := normalize(request)
	if key == "" {
		return "", "", errors.New("empty sound request")
	}
	row := db.QueryRow(`
	SELECT name, url FROM sounds WHERE name = $1
	UNION ALL
	(SELECT name, url FROM sounds WHERE name LIKE '%' || $1 || '%' ORDER BY random())
	LIMIT 1
	`, key)
	if err := row.Scan(&name, &url); err == pgx.ErrNoRows {
		return "", "", errors.Errorf("no sound matches %q", request)
	} else if err != nil {
		return "", "", errors.Wrap(err, "querying sound library")
	}
	return name, url, nil
}
