package credentials

import "time"

// Credential is the access token used to authorize publish API calls, together
// with its lifecycle timestamps.
type Credential struct {
	Value       string    `json:"value"`
	ExpiresAt   time.Time `json:"expires_at"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// ExpiresWithin reports whether the credential expires within margin of now.
// An already-expired credential always reports true.
func (c Credential) ExpiresWithin(now time.Time, margin time.Duration) bool {
	return !now.Before(c.ExpiresAt.Add(-margin))
}
