package api

import (
	"fmt"
	"net/url"
)

const (
	loginPath    = "/admin/auth/login"
	registerPath = "/admin/auth/register"
	logoutPath   = "/admin/auth/logout"
	gamesPath    = "/admin/games"
)

func mutatePath(gameID string) string {
	return fmt.Sprintf("/admin/game/%s/mutate", url.PathEscape(gameID))
}

func sessionStatusPath(sessionID string) string {
	return fmt.Sprintf("/admin/session/%s/status", url.PathEscape(sessionID))
}

func sessionResultsPath(sessionID string) string {
	return fmt.Sprintf("/admin/session/%s/results", url.PathEscape(sessionID))
}

func joinPath(sessionID string) string {
	return fmt.Sprintf("/play/join/%s", url.PathEscape(sessionID))
}

func playerPath(playerID, op string) string {
	return fmt.Sprintf("/play/%s/%s", url.PathEscape(playerID), op)
}
