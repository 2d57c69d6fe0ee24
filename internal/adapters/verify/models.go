package verify

// Verification is the verified-user document returned by the API
type Verification struct {
	UserID   string `json:"userId"`
	GuildID  string `json:"guildId"`
	RoleID   string `json:"roleId"`
	Verified bool   `json:"verified"`
}

// GuildRecord is the guild registration document held by the API
type GuildRecord struct {
	GuildID  string `json:"guildId"`
	RoleID   string `json:"roleId"`
	Name     string `json:"name"`
	Approved bool   `json:"approved"`
}

// RegisterParams describes a guild registration request
type RegisterParams struct {
	GuildID string `json:"guildId"`
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
}
