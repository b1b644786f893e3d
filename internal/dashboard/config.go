package dashboard

import (
	"time"

	"github.com/nerrad567/nmos-dashboard/internal/infrastructure/config"
)

// Config holds the dashboard's bridge and notification settings.
type Config struct {
	// Enabled turns the event bridge on.
	Enabled bool

	// Endpoint and TopicPrefix are the broker settings. With Discover they
	// are the fallback when the registry cannot be asked.
	Endpoint    string
	TopicPrefix string
	Discover    bool

	// NotificationTTL auto-dismisses flow notifications. 0 keeps them.
	NotificationTTL time.Duration

	// EventRate limits flow notifications per second. 0 disables the limit.
	EventRate  float64
	EventBurst int

	// Username and Password log in to the registry when no valid session
	// is stored, and again when the registry rejects the token.
	Username string
	Password string
}

// ConfigFrom extracts the dashboard settings from the loaded configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Enabled:         cfg.Bridge.Enabled,
		Endpoint:        cfg.Bridge.URL,
		TopicPrefix:     cfg.Bridge.TopicPrefix,
		Discover:        cfg.Bridge.Discover,
		NotificationTTL: time.Duration(cfg.Notifications.TTL) * time.Second,
		EventRate:       cfg.Notifications.EventRate,
		EventBurst:      cfg.Notifications.EventBurst,
		Username:        cfg.Registry.Username,
		Password:        cfg.Registry.Password,
	}
}
