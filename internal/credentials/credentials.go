// Package credentials implements a process-local lazy SMTP credential
// cache fronting the store, matching the original agent's
// _credentials_cache module-level dict in email.py but swapping an
// unbounded map for a bounded LRU, grounded on
// webitel-im-delivery-service's use of hashicorp/golang-lru/v2.
package credentials

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ignite/email-campaign-agent/internal/store"
)

// americasCountries is the set spec.md §4.11 uses to pick the -americas
// vs -europe account suffix for the "foundations"/"gmb" accounts.
var americasCountries = map[string]bool{
	"United States": true,
	"Canada":        true,
	"Mexico":        true,
	"Chile":         true,
	"Brazil":        true,
	"Columbia":      true,
}

// IsAmericas reports whether country is in the Americas set used for
// account-key adjustment.
func IsAmericas(country string) bool {
	return americasCountries[country]
}

// Cache resolves and caches SMTP credentials by account+country, applying
// the -americas/-europe account-key adjustment of spec.md §4.11 before
// the store lookup.
type Cache struct {
	store store.Store
	lru   *lru.Cache[string, store.Credential]
}

// New constructs a Cache backed by st, holding up to size resolved
// credentials.
func New(st store.Store, size int) (*Cache, error) {
	c, err := lru.New[string, store.Credential](size)
	if err != nil {
		return nil, fmt.Errorf("credentials: new cache: %w", err)
	}
	return &Cache{store: st, lru: c}, nil
}

// Resolve returns the SMTP credential for account, adjusted for country
// when account is "foundations" or "gmb", fetching from the store on a
// cache miss.
func (c *Cache) Resolve(ctx context.Context, account, country string) (*store.Credential, error) {
	key := adjustedAccount(account, country)

	if cred, ok := c.lru.Get(key); ok {
		return &cred, nil
	}

	cred, err := c.store.GetCredential(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("credentials: resolve %s: %w", key, err)
	}

	c.lru.Add(key, *cred)
	return cred, nil
}

// adjustedAccount applies the account-key adjustment of spec.md §4.11:
// "foundations"/"gmb" become "{account}-americas" or "{account}-europe"
// depending on whether country is in the Americas set.
func adjustedAccount(account, country string) string {
	if account != "foundations" && account != "gmb" {
		return account
	}
	if IsAmericas(country) {
		return account + "-americas"
	}
	return account + "-europe"
}
