package token

import "regexp"

// Account identifiers are shard.realm.num numeric triplets, e.g. "0.0.12345".
var accountIDPattern = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+$`)

// ValidAccountID reports whether s is a well-formed account identifier
func ValidAccountID(s string) bool {
	return accountIDPattern.MatchString(s)
}
