package config

// Config is loaded once at startup and never re-read.
type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Onboarding OnboardingConfig `json:"onboarding,omitempty"`
	Content    ContentConfig    `json:"content"`
	Storage    StorageConfig    `json:"storage"`
	Broadcast  BroadcastConfig  `json:"broadcast,omitempty"`
	Schedule   ScheduleConfig   `json:"schedule,omitempty"`
	Logging    LoggingConfig    `json:"logging,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	AdminUserIDs []int64 `json:"admin_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// OnboardingConfig controls the /start challenge. RequireSecret with an
// empty Secret is a configuration error (never silently open).
type OnboardingConfig struct {
	RequireSecret bool   `json:"require_secret,omitempty"`
	Secret        string `json:"secret,omitempty"`
}

type ContentConfig struct {
	PixabayAPIKey string `json:"pixabay_api_key"`
	// Topic is the image search query for cheer sends.
	Topic string `json:"topic,omitempty"`
	// Captions are drawn at random for scheduled/instant cheer sends.
	Captions []string `json:"captions,omitempty"`
	// FetchTimeout is a Go duration string.
	FetchTimeout string `json:"fetch_timeout,omitempty"`
}

type StorageConfig struct {
	Driver      string `json:"driver,omitempty"` // "sqlite" (default) | "memory"
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type BroadcastConfig struct {
	Workers     int    `json:"workers,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"` // Go duration string
}

type ScheduleConfig struct {
	Timezone string   `json:"timezone,omitempty"` // IANA TZ, e.g. "Europe/Kyiv"
	Daily    []string `json:"daily,omitempty"`    // local "HH:MM" trigger times
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console bool        `json:"console,omitempty"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// DefaultCaptions is used when content.captions is omitted.
var DefaultCaptions = []string{
	"You are wonderful!",
	"Don't forget to smile!",
	"You've got this!",
	"You are one of a kind!",
}
