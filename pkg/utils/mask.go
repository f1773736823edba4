package utils

import "regexp"

var (
	dsnPasswordRegex = regexp.MustCompile(`(:)([^:@/]+)(@)`)
	urlKeyRegex      = regexp.MustCompile(`(?i)([?&](?:key|api_key|access_key)=)[^&#]+`)
)

// MaskDSN hides the password portion of a connection string.
func MaskDSN(dsn string) string {
	return dsnPasswordRegex.ReplaceAllString(dsn, ":***@")
}

// MaskURLKey hides API key query parameters so provider URLs can be logged.
func MaskURLKey(rawURL string) string {
	return urlKeyRegex.ReplaceAllString(rawURL, "${1}***")
}
