package domain

import "time"

// ConnectSession is the server-side context of a pending OAuth authorization.
// It is keyed by the single-use state token and expires after a few minutes.
type ConnectSession struct {
	State      string            `json:"state"`
	ChannelID  string            `json:"channelId"`
	AccountID  string            `json:"accountId"`
	StoreID    string            `json:"storeId"`
	ShopDomain string            `json:"shopDomain"`
	Scopes     []string          `json:"scopes"`
	Routing    RoutingConfig     `json:"routing"`
	Product    ProductSyncConfig `json:"productSync"`
	Inventory  InventorySettings `json:"inventory"`
	ReturnURL  string            `json:"returnUrl,omitempty"`
	ExpiresAt  time.Time         `json:"expiresAt"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// IsExpired reports whether the session can no longer complete
func (s *ConnectSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
