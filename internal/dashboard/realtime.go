package dashboard

import (
	"context"

	"github.com/nerrad567/nmos-dashboard/internal/registry"
)

// resolveRealtime returns the broker endpoint and topic prefix to use.
//
// Without discovery the configured values are returned as-is. With it, the
// registry's realtime settings override them; a failed lookup falls back to
// the configured values. ErrRealtimeDisabled is returned when the registry
// says its event feed is off.
func (d *Dashboard) resolveRealtime(ctx context.Context) (endpoint, prefix string, err error) {
	endpoint, prefix = d.cfg.Endpoint, d.cfg.TopicPrefix
	if !d.cfg.Discover || d.registry == nil {
		return endpoint, prefix, nil
	}

	var rc *registry.RealtimeConfig
	err = d.withToken(ctx, func(token string) error {
		var err error
		rc, err = d.registry.RealtimeConfig(ctx, token)
		return err
	})
	if err != nil {
		d.logger.Warn("realtime discovery failed, using configured settings",
			"endpoint", endpoint,
			"error", err,
		)
		return endpoint, prefix, nil
	}

	if !rc.MQTTEnabled {
		return "", "", ErrRealtimeDisabled
	}
	if rc.WSURL != "" {
		endpoint = rc.WSURL
	}
	if rc.TopicPrefix != "" {
		prefix = rc.TopicPrefix
	}
	d.logger.Debug("realtime settings discovered", "endpoint", endpoint, "topic_prefix", prefix)
	return endpoint, prefix, nil
}
