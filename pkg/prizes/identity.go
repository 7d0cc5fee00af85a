package prizes

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	identityQueryKey  = "av"
	profileURLPrefix  = "https://www.imvu.com/catalog/web_mypage.php?av="
	wishlistURLPrefix = "https://www.imvu.com/catalog/web_wishlist.php?av="
)

// ParseIdentity accepts a bare handle or a profile URL. For URLs the handle comes from the "av" query
// parameter, else the last path segment, and the URL itself is kept as the profile link.
func ParseIdentity(raw string) (Identity, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Identity{}, fmt.Errorf("%w: empty value", ErrInvalidIdentity)
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		return identityFor(trimmed, profileURLPrefix+url.QueryEscape(trimmed)), nil
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	username := strings.TrimSpace(parsed.Query().Get(identityQueryKey))
	if username == "" {
		segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		username = strings.TrimSpace(segments[len(segments)-1])
	}
	if username == "" {
		return Identity{}, fmt.Errorf("%w: no username in %q", ErrInvalidIdentity, trimmed)
	}
	return identityFor(username, trimmed), nil
}

// Validate rejects identities without a username.
func (identity Identity) Validate() error {
	if strings.TrimSpace(identity.Username) == "" {
		return fmt.Errorf("%w: empty username", ErrInvalidIdentity)
	}
	return nil
}

func identityFor(username string, profileURL string) Identity {
	return Identity{
		Username:    username,
		ProfileURL:  profileURL,
		WishlistURL: wishlistURLPrefix + url.QueryEscape(username),
	}
}
