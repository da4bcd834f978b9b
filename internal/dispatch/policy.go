package dispatch

import (
	"strings"

	"relaunch/internal/types"
)

// DomainPolicy holds per-provider recipient domain allow-lists. A provider
// without a list, or with an empty one, is unrestricted.
type DomainPolicy struct {
	allow map[types.EmailProvider]map[string]struct{}
}

// NewDomainPolicy builds a policy from lists keyed by provider. Domains are
// compared lowercase.
func NewDomainPolicy(lists map[types.EmailProvider][]string) *DomainPolicy {
	p := &DomainPolicy{allow: make(map[types.EmailProvider]map[string]struct{}, len(lists))}
	for provider, domains := range lists {
		if len(domains) == 0 {
			continue
		}
		set := make(map[string]struct{}, len(domains))
		for _, d := range domains {
			set[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
		}
		p.allow[provider] = set
	}
	return p
}

// Restricted reports whether provider has an allow-list.
func (p *DomainPolicy) Restricted(provider types.EmailProvider) bool {
	if p == nil {
		return false
	}
	_, ok := p.allow[provider]
	return ok
}

// Check returns a *PolicyRejection when provider is restricted and the
// domain of email is not on its list. It has no side effects.
func (p *DomainPolicy) Check(provider types.EmailProvider, email string) error {
	if !p.Restricted(provider) {
		return nil
	}
	domain := DomainOf(email)
	if _, ok := p.allow[provider][domain]; ok && domain != "" {
		return nil
	}
	return &PolicyRejection{Provider: provider, Email: email, Domain: domain}
}

// DomainOf returns the lowercase text after the last "@", or "" when the
// address has no domain part.
func DomainOf(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}
