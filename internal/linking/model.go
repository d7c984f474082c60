package linking

import "time"

// Flow is a pending account-linking handshake: the platform linking request
// on one side and the USOS OAuth request token on the other. A flow is read
// once by auth code and deleted when the platform confirms the link.
type Flow struct {
	UserID        int64     `json:"user_id"`
	LinkingToken  string    `json:"-"`
	RedirectURI   string    `json:"redirect_uri"`
	AuthCode      string    `json:"-"`
	RequestToken  string    `json:"-"`
	RequestSecret string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}
