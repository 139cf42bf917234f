package notification

import (
	"errors"
	"log/slog"

	"hirenotify/internal/common"
)

// ChannelRouter decides which channels receive a notification.
// Routing is a pure function of role, kind and deployment mode.
type ChannelRouter struct {
	logger *slog.Logger
}

// NewChannelRouter creates a channel router. A nil logger uses slog.Default().
func NewChannelRouter(logger *slog.Logger) *ChannelRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelRouter{logger: logger}
}

// Route returns the ordered channel set for a recipient role and notification kind.
// In dev mode the console channel always comes first.
func (r *ChannelRouter) Route(role RecipientRole, kind Kind, devMode bool) []ChannelKind {
	channels := make([]ChannelKind, 0, 2)

	if devMode {
		channels = append(channels, ChannelConsole)
	}

	switch role {
	case RoleCandidate, RoleRecruiter:
		channels = append(channels, ChannelEmail)
	case RoleHiringManager:
		// Hiring managers are not emailed about new applications.
		if kind == KindInterviewScheduled || kind == KindOfferExtended {
			channels = append(channels, ChannelEmail)
		}
	default:
		r.logger.Warn("unknown recipient role", "role", role, "kind", kind)
	}

	return channels
}

// ChannelRegistry is the read-only set of delivery channels built once at startup.
type ChannelRegistry struct {
	channels []DeliveryChannel
}

// NewChannelRegistry creates a registry over the given channels. Order matters:
// the first channel claiming a kind wins.
func NewChannelRegistry(channels ...DeliveryChannel) *ChannelRegistry {
	cs := make([]DeliveryChannel, 0, len(channels))
	for _, c := range channels {
		if c != nil {
			cs = append(cs, c)
		}
	}
	return &ChannelRegistry{channels: cs}
}

// Resolve returns the channel that claims kind, or an UnknownChannelError.
func (r *ChannelRegistry) Resolve(kind ChannelKind) (DeliveryChannel, error) {
	for _, c := range r.channels {
		if c.CanHandle(kind) {
			return c, nil
		}
	}
	return nil, common.NewUnknownChannelError(string(kind))
}

// Validate checks eagerly that every kind resolves. Intended for startup.
func (r *ChannelRegistry) Validate(kinds ...ChannelKind) error {
	var errs []error
	for _, k := range kinds {
		if _, err := r.Resolve(k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RoutableChannels lists every channel kind the router can emit for the given mode.
func RoutableChannels(devMode bool) []ChannelKind {
	if devMode {
		return []ChannelKind{ChannelConsole, ChannelEmail}
	}
	return []ChannelKind{ChannelEmail}
}

// RoleResolver determines who a notification is addressed to.
type RoleResolver func(n *Notification) RecipientRole

// KindRoleResolver derives the role from the notification kind. Every hiring
// kind today targets the candidate; anything else goes to the recruiter.
// TODO: replace with a recipient directory lookup once one exists.
func KindRoleResolver(n *Notification) RecipientRole {
	switch n.Kind {
	case KindApplicationReceived, KindInterviewScheduled, KindOfferExtended:
		return RoleCandidate
	default:
		return RoleRecruiter
	}
}
