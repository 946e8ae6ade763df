package alerting

import (
	"slices"
)

// Selector maps urgency and recipient preferences to an ordered channel set.
type Selector struct {
	registry *Registry
}

func NewSelector(registry *Registry) *Selector {
	return &Selector{registry: registry}
}

// Select returns channels ordered by registry priority with the
// always-available channels last:
//   - critical: every usable preferred channel
//   - high: the two highest-priority preferred channels
//   - normal, low: the single most-preferred channel
//
// Preferences naming unknown, disabled or always-available channels are
// ignored. With no usable preference the enabled external channels stand in.
func (s *Selector) Select(urgency Urgency, preferences []ChannelType) []ChannelType {
	preferred := s.usable(preferences)
	if len(preferred) == 0 {
		for _, ch := range s.registry.ListEnabled() {
			if !ch.AlwaysAvailable {
				preferred = append(preferred, ch)
			}
		}
	}

	var picked []Channel
	switch urgency {
	case UrgencyCritical:
		picked = preferred
	case UrgencyHigh:
		byPriority := slices.Clone(preferred)
		slices.SortStableFunc(byPriority, compareChannels)
		picked = byPriority[:min(2, len(byPriority))]
	default:
		picked = preferred[:min(1, len(preferred))]
	}

	picked = slices.Clone(picked)
	slices.SortStableFunc(picked, compareChannels)

	out := make([]ChannelType, 0, len(picked)+1)
	for _, ch := range picked {
		out = append(out, ch.Type)
	}
	for _, ch := range s.registry.AlwaysAvailable() {
		if !slices.Contains(out, ch.Type) {
			out = append(out, ch.Type)
		}
	}
	return out
}

// usable keeps preference order and drops duplicates and channels that
// cannot be chosen by preference.
func (s *Selector) usable(preferences []ChannelType) []Channel {
	out := make([]Channel, 0, len(preferences))
	seen := make(map[ChannelType]bool, len(preferences))
	for _, t := range preferences {
		if seen[t] {
			continue
		}
		seen[t] = true
		ch, err := s.registry.Get(t)
		if err != nil || !ch.Enabled || ch.AlwaysAvailable {
			continue
		}
		out = append(out, ch)
	}
	return out
}

// Explicit validates a caller-chosen channel list. Unknown channels are a
// ValidationError; disabled ones are returned separately so the caller can
// report them as unavailable. Order follows registry priority.
func (s *Selector) Explicit(channels []ChannelType) (selected, disabled []ChannelType, err error) {
	var picked []Channel
	seen := make(map[ChannelType]bool, len(channels))
	for _, t := range channels {
		if seen[t] {
			continue
		}
		seen[t] = true
		ch, gerr := s.registry.Get(t)
		if gerr != nil {
			return nil, nil, newValidationError(gerr, "channels", "unknown channel %q", t)
		}
		if !ch.Enabled {
			disabled = append(disabled, t)
			continue
		}
		picked = append(picked, ch)
	}
	slices.SortStableFunc(picked, compareChannels)
	for _, ch := range picked {
		selected = append(selected, ch.Type)
	}
	return selected, disabled, nil
}
