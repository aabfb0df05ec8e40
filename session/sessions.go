package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"roster/bizerror"
	"roster/client/idp"
	"roster/domain"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

var TokenExpiration = time.Minute

// TokenCache maps bearer tokens to resolved sessions.
var TokenCache = cache.New(TokenExpiration, 1*time.Minute)

const KeySecCtx = "SecCtx"

type MemberFinder interface {
	FindMember(ctx context.Context, id string) (*domain.Member, error)
}

// InitTokenCacheFromEnv SESSION_CACHE_TTL
func InitTokenCacheFromEnv() error {
	if v := os.Getenv("SESSION_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid SESSION_CACHE_TTL '%s'", v)
		}
		TokenExpiration = d
	}
	TokenCache = cache.New(TokenExpiration, 1*time.Minute)
	return nil
}

// EvictMemberSessions drops the cached sessions of the given members, so their next request
// is resolved again with the current role and activation. It returns the number of evicted tokens.
func EvictMemberSessions(memberIDs ...string) int {
	if len(memberIDs) == 0 {
		return 0
	}
	ids := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		ids[id] = true
	}
	n := 0
	for token, item := range TokenCache.Items() {
		if s, ok := item.Object.(*Session); ok && ids[s.Identity.ID] {
			TokenCache.Delete(token)
			n++
		}
	}
	return n
}

func ExtractSessionFromGinContext(ctx *gin.Context) *Session {
	value, found := ctx.Get(KeySecCtx)
	if !found {
		return &Session{Context: ctx.Request.Context()}
	}
	s0, ok := value.(*Session)
	if !ok || s0.Token == "" {
		return &Session{Context: ctx.Request.Context()}
	}
	s := s0.Clone()
	s.Context = ctx.Request.Context() // trace context
	return &s
}

func InjectSessionIntoGinContext(ctx *gin.Context, s *Session) {
	if s != nil && s.Token != "" {
		ctx.Set(KeySecCtx, s)
	}
}

// BearerAuthFilter resolves the Authorization bearer token into a Session, from TokenCache when possible.
func BearerAuthFilter(provider idp.Provider, members MemberFinder) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := BearerToken(ctx.GetHeader("Authorization"))
		if token == "" {
			panic(bizerror.ErrUnauthenticated)
		}
		if value, found := TokenCache.Get(token); found {
			if s, ok := value.(*Session); ok {
				InjectSessionIntoGinContext(ctx, s)
				ctx.Next()
				return
			}
		}

		s, err := ResolveSession(ctx.Request.Context(), token, provider, members)
		if err != nil {
			panic(err)
		}
		TokenCache.Set(token, s, cache.DefaultExpiration)
		InjectSessionIntoGinContext(ctx, s)
		ctx.Next()
	}
}

// ResolveSession authenticates token with the identity provider and loads the viewer's membership.
// Accounts without a member row or with an inactive one are forbidden.
func ResolveSession(ctx context.Context, token string, provider idp.Provider, members MemberFinder) (*Session, error) {
	account, err := provider.GetUserByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	member, err := members.FindMember(ctx, account.ID)
	if errors.Is(err, bizerror.ErrNotFound) {
		logrus.WithField("memberId", account.ID).Info("authenticated account has no organization")
		return nil, bizerror.ErrForbidden
	}
	if err != nil {
		return nil, err
	}
	if !member.IsActive {
		return nil, bizerror.ErrForbidden
	}
	return &Session{
		Token:    token,
		Identity: Identity{ID: account.ID, Email: account.Email, FullName: member.FullName},
		OrgID:    member.OrgID,
		Role:     member.Role,
	}, nil
}

func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
