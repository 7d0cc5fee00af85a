package prizes

import (
	"errors"
	"testing"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
)

func TestParseIdentity(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name     string
		raw      string
		expected Identity
	}{
		{
			name: "bare handle",
			raw:  "  Guest_Alice ",
			expected: Identity{
				Username:    "Guest_Alice",
				ProfileURL:  "https://www.imvu.com/catalog/web_mypage.php?av=Guest_Alice",
				WishlistURL: "https://www.imvu.com/catalog/web_wishlist.php?av=Guest_Alice",
			},
		},
		{
			name: "profile url with query",
			raw:  "https://www.imvu.com/catalog/web_mypage.php?av=Bob",
			expected: Identity{
				Username:    "Bob",
				ProfileURL:  "https://www.imvu.com/catalog/web_mypage.php?av=Bob",
				WishlistURL: "https://www.imvu.com/catalog/web_wishlist.php?av=Bob",
			},
		},
		{
			name: "path url",
			raw:  "https://avatars.imvu.com/Carol/",
			expected: Identity{
				Username:    "Carol",
				ProfileURL:  "https://avatars.imvu.com/Carol/",
				WishlistURL: "https://www.imvu.com/catalog/web_wishlist.php?av=Carol",
			},
		},
		{
			name: "handle with space",
			raw:  "dan the man",
			expected: Identity{
				Username:    "dan the man",
				ProfileURL:  "https://www.imvu.com/catalog/web_mypage.php?av=dan+the+man",
				WishlistURL: "https://www.imvu.com/catalog/web_wishlist.php?av=dan+the+man",
			},
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			identity, err := ParseIdentity(testCase.raw)
			if err != nil {
				test.Fatalf("parse failed: %v", err)
			}
			if identity != testCase.expected {
				test.Fatalf("expected %+v, got %+v", testCase.expected, identity)
			}
		})
	}
}

func TestParseIdentityRejectsEmpty(test *testing.T) {
	test.Parallel()
	for _, raw := range []string{"", "   ", "https://www.imvu.com/"} {
		if _, err := ParseIdentity(raw); !errors.Is(err, ErrInvalidIdentity) {
			test.Fatalf("expected ErrInvalidIdentity for %q, got %v", raw, err)
		}
	}
}

func TestGiftQuantity(test *testing.T) {
	test.Parallel()
	config := DefaultConfig()
	quantity, err := config.GiftQuantity(30_000)
	if err != nil || quantity != 3 {
		test.Fatalf("expected 3 gifts, got %d (%v)", quantity, err)
	}
	for _, coins := range []ledger.Coins{0, -10_000, 15_000, 110_000} {
		if _, err := config.GiftQuantity(coins); !errors.Is(err, ledger.ErrInvalidAmount) {
			test.Fatalf("expected ErrInvalidAmount for %d, got %v", coins, err)
		}
	}
}

func TestTokenRegistryRedeemsOnce(test *testing.T) {
	test.Parallel()
	registry := newTokenRegistry()
	issued := registry.issue(ClaimToken{PrizeID: "p1", ExpiresUnixUTC: 100})
	if issued.Token == "" {
		test.Fatalf("expected a token value")
	}
	if _, ok := registry.redeem(issued.Token, 50); !ok {
		test.Fatalf("expected first redeem to succeed")
	}
	if _, ok := registry.redeem(issued.Token, 50); ok {
		test.Fatalf("expected second redeem to fail")
	}

	expired := registry.issue(ClaimToken{PrizeID: "p2", ExpiresUnixUTC: 100})
	if _, ok := registry.redeem(expired.Token, 101); ok {
		test.Fatalf("expected expired token to fail")
	}

	registry.issue(ClaimToken{PrizeID: "p3", ExpiresUnixUTC: 10})
	registry.issue(ClaimToken{PrizeID: "p4", ExpiresUnixUTC: 1000})
	registry.sweep(500)
	if registry.size() != 1 {
		test.Fatalf("expected one live token after sweep, got %d", registry.size())
	}
}
