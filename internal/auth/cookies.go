package auth

import (
	"net/http"
	"strings"
	"time"
)

const (
	AccessTokenCookie  = "accp_access_token"
	RefreshTokenCookie = "accp_refresh_token"

	// ClientModeHeader lets the backoffice SPA ask for cookie sessions
	ClientModeHeader = "X-Auth-Mode"
	clientModeCookie = "cookie"

	refreshCookiePath = "/auth"
)

// ShouldUseCookies reports whether tokens go in cookies instead of the body
func ShouldUseCookies(r *http.Request) bool {
	if strings.EqualFold(r.Header.Get(ClientModeHeader), clientModeCookie) {
		return true
	}
	_, err := r.Cookie(RefreshTokenCookie)
	return err == nil
}

// SetAuthCookies writes both tokens as HttpOnly cookies. The refresh cookie
// is only sent back to the /auth routes.
func SetAuthCookies(w http.ResponseWriter, accessToken, refreshToken string, secure bool, accessDuration, refreshDuration time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		MaxAge:   int(accessDuration.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    refreshToken,
		Path:     refreshCookiePath,
		MaxAge:   int(refreshDuration.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func ClearAuthCookies(w http.ResponseWriter, secure bool) {
	for name, path := range map[string]string{AccessTokenCookie: "/", RefreshTokenCookie: refreshCookiePath} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secure,
		})
	}
}

func GetAccessTokenFromCookie(r *http.Request) (string, error) {
	return cookieValue(r, AccessTokenCookie)
}

func GetRefreshTokenFromCookie(r *http.Request) (string, error) {
	return cookieValue(r, RefreshTokenCookie)
}

func cookieValue(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	if c.Value == "" {
		return "", http.ErrNoCookie
	}
	return c.Value, nil
}
