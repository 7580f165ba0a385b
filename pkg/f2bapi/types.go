package f2bapi

import (
	"net/url"
	"strconv"
)

type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	IsActive  *bool  `json:"is_active,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token; ExpiresAt is a unix timestamp.
type LoginResponse struct {
	Token     string `json:"token"`
	User      User   `json:"user"`
	ExpiresAt int64  `json:"expires_at"`
}

type SystemStats struct {
	TotalBannedIPs      int    `json:"total_banned_ips"`
	ActiveJails         int    `json:"active_jails"`
	FailedAttemptsToday int    `json:"failed_attempts_today"`
	SystemUptime        string `json:"system_uptime"`
	LastBanTime         string `json:"last_ban_time,omitempty"`
}

type BannedIP struct {
	ID        int64  `json:"id"`
	IP        string `json:"ip"`
	Jail      string `json:"jail"`
	BanTime   string `json:"ban_time"`
	UnbanTime string `json:"unban_time,omitempty"`
	Attempts  int    `json:"attempts"`
	Country   string `json:"country,omitempty"`
	Region    string `json:"region,omitempty"`
	IsActive  bool   `json:"is_active"`
}

type JailConfig struct {
	Name     string `json:"name"`
	Enabled  bool   `json:"enabled"`
	Filter   string `json:"filter"`
	LogPath  string `json:"logpath"`
	MaxRetry int    `json:"maxretry"`
	FindTime int    `json:"findtime"`
	BanTime  int    `json:"bantime"`
	Backend  string `json:"backend"`
	Action   string `json:"action"`
}

// JailUpdate is a partial JailConfig; nil fields are left untouched.
type JailUpdate struct {
	Enabled  *bool   `json:"enabled,omitempty"`
	Filter   *string `json:"filter,omitempty"`
	LogPath  *string `json:"logpath,omitempty"`
	MaxRetry *int    `json:"maxretry,omitempty"`
	FindTime *int    `json:"findtime,omitempty"`
	BanTime  *int    `json:"bantime,omitempty"`
	Backend  *string `json:"backend,omitempty"`
	Action   *string `json:"action,omitempty"`
}

type LogEntry struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Jail      string `json:"jail"`
	Message   string `json:"message"`
	IP        string `json:"ip,omitempty"`
}

type WhitelistEntry struct {
	ID          int64  `json:"id"`
	IP          string `json:"ip"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
	CreatedBy   string `json:"created_by"`
}

type WhitelistInput struct {
	IP          string `json:"ip"`
	Description string `json:"description,omitempty"`
}

type GeoLocation struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	City    string `json:"city"`
}

type ThreatHistory struct {
	TotalAttempts int    `json:"total_attempts"`
	FirstSeen     string `json:"first_seen"`
	LastSeen      string `json:"last_seen"`
}

type ThreatAnalysis struct {
	IP              string        `json:"ip"`
	RiskScore       float64       `json:"risk_score"`
	ThreatTypes     []string      `json:"threat_types"`
	GeoLocation     GeoLocation   `json:"geo_location"`
	HistoricalData  ThreatHistory `json:"historical_data"`
	Recommendations []string      `json:"recommendations"`
}

type SystemConfig struct {
	Fail2banStatus     bool   `json:"fail2ban_status"`
	AutoBanEnabled     bool   `json:"auto_ban_enabled"`
	MaxRetry           int    `json:"max_retry"`
	BanTime            int    `json:"ban_time"`
	FindTime           int    `json:"find_time"`
	EmailNotifications bool   `json:"email_notifications"`
	LogLevel           string `json:"log_level"`
}

// Page is the paginated list shape used by list endpoints.
type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
}

type QueryParams struct {
	Page      int
	PerPage   int
	Search    string
	SortBy    string
	SortOrder string // "asc" or "desc"
	Filter    map[string]string
}

// Values encodes the params; filter keys become filter[key].
func (q *QueryParams) Values() url.Values {
	v := url.Values{}
	if q == nil {
		return v
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.SortBy != "" {
		v.Set("sort_by", q.SortBy)
	}
	if q.SortOrder != "" {
		v.Set("sort_order", q.SortOrder)
	}
	for k, val := range q.Filter {
		v.Set("filter["+k+"]", val)
	}
	return v
}
