package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Lllllllleong/legaldocflow/internal/models"
)

// Middleware rejects requests without a valid bearer token and stores the
// session in the request context. A nil Verifier lets every request through.
func Middleware(v *Verifier, next http.Handler) http.Handler {
	if v == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := v.VerifyHeader(r.Header.Get("Authorization"))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(models.ErrorResponse{Error: unauthorizedMessage(err)})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// GinMiddleware is Middleware for gin routers.
func GinMiddleware(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if v == nil {
			c.Next()
			return
		}
		sess, err := v.VerifyHeader(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: unauthorizedMessage(err)})
			return
		}
		c.Request = c.Request.WithContext(WithSession(c.Request.Context(), sess))
		c.Next()
	}
}

func unauthorizedMessage(err error) string {
	if errors.Is(err, ErrMissingToken) {
		return "Authorization header required"
	}
	return "Invalid token"
}
