package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/drstein77/storefront/internal/models"
	"github.com/drstein77/storefront/internal/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const CookieName = "storefront_session"

type Store interface {
	Get(ctx context.Context, id string) (models.Session, error)
}

type Log interface {
	Error(string, ...zap.Field)
}

// Session resolves the session cookie and puts the session on the request context.
// A cookie unknown to the store identifies an anonymous visitor; a request
// without a cookie is issued a fresh anonymous ID.
func Session(store Store, secure bool, log Log) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sess *models.Session

			c, err := r.Cookie(CookieName)
			if err != nil || c.Value == "" {
				sess = &models.Session{ID: uuid.NewString()}
				SetCookie(w, *sess, secure)
			} else {
				found, err := store.Get(r.Context(), c.Value)
				switch {
				case err == nil:
					sess = &found
				case errors.Is(err, session.ErrNotFound):
					sess = &models.Session{ID: c.Value}
				default:
					log.Error("session lookup failed", zap.Error(err))
					sess = &models.Session{ID: c.Value}
				}
			}

			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), sess)))
		})
	}
}

// SetCookie binds the browser to sess.
func SetCookie(w http.ResponseWriter, sess models.Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
