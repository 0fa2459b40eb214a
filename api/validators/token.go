package validators

import "strings"

const bearerPrefix = "bearer "

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	token := strings.TrimSpace(header)
	if len(token) >= len(bearerPrefix) && strings.EqualFold(token[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(token[len(bearerPrefix):])
	}
	return ""
}

// ResolveToken prefers the token carried in the body and falls back to the header.
func ResolveToken(bodyToken, authorization string) string {
	if token := strings.TrimSpace(bodyToken); token != "" {
		return token
	}
	return BearerToken(authorization)
}
