package alerting

import (
	"fmt"
	"slices"
	"strings"

	"github.com/xpertseller/alertkit/pkg/config"
)

// Registry is the immutable catalog of delivery channels. Build it once at
// startup and pass it to the components that need it.
type Registry struct {
	channels map[ChannelType]Channel
	ordered  []Channel
}

// registryFile is the YAML layout accepted by LoadRegistry.
type registryFile struct {
	Channels []Channel `yaml:"channels"`
}

// NewRegistry validates channels and returns a registry. Duplicate or empty
// types, unknown formats and negative limits are rejected.
func NewRegistry(channels ...Channel) (*Registry, error) {
	r := &Registry{channels: make(map[ChannelType]Channel, len(channels))}
	for _, ch := range channels {
		if ch.Type == "" {
			return nil, fmt.Errorf("registry: channel type is required")
		}
		if _, dup := r.channels[ch.Type]; dup {
			return nil, fmt.Errorf("registry: duplicate channel %q", ch.Type)
		}
		if ch.Format == "" {
			ch.Format = FormatLong
		}
		if ch.Format != FormatLong && ch.Format != FormatShort {
			return nil, fmt.Errorf("registry: channel %q has unknown format %q", ch.Type, ch.Format)
		}
		rl := ch.RateLimits
		if rl.MaxPerHour < 0 || rl.MaxPerDay < 0 || rl.CooldownMinutes < 0 || ch.MaxLength < 0 {
			return nil, fmt.Errorf("registry: channel %q has negative limits", ch.Type)
		}
		r.channels[ch.Type] = ch
		r.ordered = append(r.ordered, ch)
	}
	slices.SortFunc(r.ordered, compareChannels)
	return r, nil
}

// MustNewRegistry is like NewRegistry but panics on error.
func MustNewRegistry(channels ...Channel) *Registry {
	r, err := NewRegistry(channels...)
	if err != nil {
		panic(err)
	}
	return r
}

// LoadRegistry reads a YAML file of the form:
//
//	channels:
//	  - type: email
//	    enabled: true
//	    priority: 1
//	    rate_limits: {max_per_hour: 10, max_per_day: 50, cooldown_minutes: 0}
func LoadRegistry(path string) (*Registry, error) {
	var f registryFile
	if err := config.LoadFile(path, &f); err != nil {
		return nil, err
	}
	return NewRegistry(f.Channels...)
}

// DefaultChannels is the catalog used when no registry file is configured.
func DefaultChannels() []Channel {
	return []Channel{
		{Type: ChannelEmail, Enabled: true, Priority: 1, Format: FormatLong,
			RateLimits: RateLimits{MaxPerHour: 10, MaxPerDay: 50}},
		{Type: ChannelWhatsApp, Enabled: true, Priority: 2, Format: FormatShort, MaxLength: DefaultMaxLength,
			RateLimits: RateLimits{MaxPerHour: 5, MaxPerDay: 20, CooldownMinutes: 15}},
		{Type: ChannelSMS, Enabled: true, Priority: 3, Format: FormatShort, MaxLength: 480,
			RateLimits: RateLimits{MaxPerHour: 3, MaxPerDay: 10, CooldownMinutes: 30}},
		{Type: ChannelTelegram, Enabled: true, Priority: 4, Format: FormatShort, MaxLength: 4000,
			RateLimits: RateLimits{MaxPerHour: 10, MaxPerDay: 50, CooldownMinutes: 5}},
		{Type: ChannelSlack, Enabled: true, Priority: 5, Format: FormatLong,
			RateLimits: RateLimits{MaxPerHour: 20, MaxPerDay: 100}},
		{Type: ChannelDashboard, Enabled: true, Priority: 100, Format: FormatLong, AlwaysAvailable: true},
	}
}

// Get returns the channel of type t or ErrUnknownChannel.
func (r *Registry) Get(t ChannelType) (Channel, error) {
	ch, ok := r.channels[t]
	if !ok {
		return Channel{}, fmt.Errorf("%w: %q", ErrUnknownChannel, t)
	}
	return ch, nil
}

// ListEnabled returns enabled channels by priority ascending, ties by type.
func (r *Registry) ListEnabled() []Channel {
	out := make([]Channel, 0, len(r.ordered))
	for _, ch := range r.ordered {
		if ch.Enabled {
			out = append(out, ch)
		}
	}
	return out
}

// All returns every channel, enabled or not, in priority order.
func (r *Registry) All() []Channel {
	return slices.Clone(r.ordered)
}

// AlwaysAvailable returns the enabled always-available channels.
func (r *Registry) AlwaysAvailable() []Channel {
	var out []Channel
	for _, ch := range r.ordered {
		if ch.Enabled && ch.AlwaysAvailable {
			out = append(out, ch)
		}
	}
	return out
}

func compareChannels(a, b Channel) int {
	if a.Priority != b.Priority {
		return a.Priority - b.Priority
	}
	return strings.Compare(string(a.Type), string(b.Type))
}
