package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lumina/internal/app"
)

const (
	// ClientHeader carries the client-instance id. The page keeps it in
	// sessionStorage, so each tab is its own instance.
	ClientHeader = "X-Lumina-Client"
	// ClientQuery is the fallback for requests that cannot set headers,
	// such as the events websocket.
	ClientQuery = "client"
	TokenCookie = "lumina_token"

	contextSessionKey = "client_session"
)

// ClientInstance resolves the request's client-instance id to its session,
// creating one (and restoring the stored token into it) when the id is
// missing or unknown. The id in use is echoed in ClientHeader. A token that
// is due for refresh is swapped here and the cookie reissued.
func ClientInstance(registry *app.Registry, auth *app.AuthService, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := lookupInstance(c, registry)
		if sess == nil {
			sess = registry.Create()
			if token, err := c.Cookie(TokenCookie); err == nil && token != "" {
				if !auth.Restore(c.Request.Context(), sess, token) {
					ClearToken(c, secure)
				}
			}
		}
		c.Header(ClientHeader, sess.ID())

		fresh, err := auth.KeepAlive(c.Request.Context(), sess)
		switch {
		case err != nil:
			ClearToken(c, secure)
		case fresh != nil:
			StoreToken(c, fresh.AccessToken, fresh.ExpiresAt, secure)
		}

		c.Set(contextSessionKey, sess)
		c.Next()
	}
}

func lookupInstance(c *gin.Context, registry *app.Registry) *app.Session {
	id := c.GetHeader(ClientHeader)
	if id == "" {
		id = c.Query(ClientQuery)
	}
	if id == "" {
		return nil
	}
	sess, ok := registry.Get(id)
	if !ok {
		return nil
	}
	return sess
}

// SessionFrom returns the session ClientInstance attached to the request.
func SessionFrom(c *gin.Context) *app.Session {
	v, ok := c.Get(contextSessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*app.Session)
	return sess
}

// StoreToken keeps the access token so a new client instance can restore
// the session.
func StoreToken(c *gin.Context, token string, expiresAt time.Time, secure bool) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		ClearToken(c, secure)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(TokenCookie, token, maxAge, "/", "", secure, true)
}

func ClearToken(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(TokenCookie, "", -1, "/", "", secure, true)
}
