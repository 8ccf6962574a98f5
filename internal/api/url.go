package api

import (
	"strings"

	"chatline/internal/constants"
)

// SocketURL strips a trailing slash and the /api suffix from an API base URL,
// leaving the host the realtime server listens on.
func SocketURL(apiURL string) string {
	apiURL = strings.TrimSuffix(apiURL, "/")
	return strings.TrimSuffix(apiURL, constants.APIPathSuffix)
}
