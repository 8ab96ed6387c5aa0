package credentials

// Credential is one provider's stored OAuth grant. AppID matches the
// activity source identifier for the provider (for example "strava").
// ExpiresAt and ConnectedAt are epoch milliseconds; ExpiresAt zero means the
// grant never expires.
type Credential struct {
	AppID        string `gorm:"primaryKey;column:app_id" json:"appId"`
	AccessToken  string `gorm:"column:access_token" json:"accessToken"`
	RefreshToken string `gorm:"column:refresh_token" json:"refreshToken,omitempty"`
	ExpiresAt    int64  `gorm:"column:expires_at" json:"expiresAt,omitempty"`
	UserID       string `gorm:"column:user_id" json:"userId,omitempty"`
	ConnectedAt  int64  `gorm:"column:connected_at" json:"connectedAt"`
}

// TableName pins the schema name independent of gorm pluralization rules.
func (Credential) TableName() string {
	return "provider_credentials"
}
