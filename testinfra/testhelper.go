package testinfra

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"roster/domain"
	"roster/session"

	"github.com/fundwit/go-commons/types"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// BuildSession build viewer session
func BuildSession(memberID string, orgID types.ID, role domain.Role) *session.Session {
	return &session.Session{
		Token:    uuid.New().String(),
		Identity: session.Identity{ID: memberID, Email: memberID + "@example.com", FullName: memberID},
		OrgID:    orgID,
		Role:     role,
	}
}

// CacheSession puts s into the token cache and returns the Authorization header value for it.
func CacheSession(s *session.Session) string {
	session.TokenCache.Set(s.Token, s, cache.DefaultExpiration)
	return "Bearer " + s.Token
}

func ExecuteRequest(req *http.Request, handler http.Handler) (int, string, http.Header) {
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	bodyBytes, err := ioutil.ReadAll(w.Body)
	if err != nil {
		panic(err)
	}
	return w.Code, string(bodyBytes), w.Header()
}
