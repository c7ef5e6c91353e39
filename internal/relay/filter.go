package relay

// FilterConfig is the part of the relay configuration the filter reads.
type FilterConfig struct {
	TargetChannelID string
}

// ShouldForward reports whether msg is eligible for relaying. The checks run
// cheapest first: automated authors, then the destination channel (the
// webhook's own output comes back as new events there), then the cache.
func ShouldForward(msg InboundMessage, cfg FilterConfig, cache *RecencyCache) bool {
	if msg.Author.Bot {
		return false
	}
	if msg.ChannelID == cfg.TargetChannelID {
		return false
	}
	return !cache.Contains(msg.ID)
}

// RejectReason names the first failed check, for logs and metrics.
func RejectReason(msg InboundMessage, cfg FilterConfig, cache *RecencyCache) string {
	switch {
	case msg.Author.Bot:
		return "automated_author"
	case msg.ChannelID == cfg.TargetChannelID:
		return "destination_channel"
	case cache.Contains(msg.ID):
		return "already_forwarded"
	default:
		return ""
	}
}
