package prizes

import (
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync"
)

// tokenRegistry holds short-lived claim tokens in memory. Tokens do not survive a restart; the
// winner simply starts the claim again.
type tokenRegistry struct {
	tokens *xsync.MapOf[string, ClaimToken]
}

func newTokenRegistry() *tokenRegistry {
	return &tokenRegistry{tokens: xsync.NewMapOf[ClaimToken]()}
}

func (registry *tokenRegistry) issue(token ClaimToken) ClaimToken {
	token.Token = uuid.NewString()
	registry.tokens.Store(token.Token, token)
	return token
}

// redeem consumes a token; expired or unknown tokens report false.
func (registry *tokenRegistry) redeem(raw string, nowUnixUTC int64) (ClaimToken, bool) {
	token, ok := registry.tokens.LoadAndDelete(raw)
	if !ok || nowUnixUTC > token.ExpiresUnixUTC {
		return ClaimToken{}, false
	}
	return token, true
}

func (registry *tokenRegistry) sweep(nowUnixUTC int64) {
	registry.tokens.Range(func(key string, token ClaimToken) bool {
		if nowUnixUTC > token.ExpiresUnixUTC {
			registry.tokens.Delete(key)
		}
		return true
	})
}

func (registry *tokenRegistry) size() int {
	return registry.tokens.Size()
}
