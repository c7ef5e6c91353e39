package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"

	"duplicator/internal/config"
	"duplicator/internal/constants"
	"duplicator/internal/logger"
	"duplicator/internal/relay"
	"duplicator/pkg/metrics"
	"duplicator/pkg/retry"
)

// Gateway close codes that will not succeed on reconnect.
var fatalCloseCodes = map[int]bool{
	4004: true, // authentication failed
	4010: true, // invalid shard
	4011: true, // sharding required
	4013: true, // invalid intents
	4014: true, // disallowed intents
}

// Discord reads MessageCreate events from the gateway.
type Discord struct {
	token   string
	connect retry.Policy
	logger  logger.Logger
	client  *http.Client
	open    func(*discordgo.Session) error

	mu      sync.Mutex
	session *discordgo.Session
	ready   atomic.Bool
}

func NewDiscord(cfg config.DiscordConfig, log logger.Logger) *Discord {
	policy := retry.DefaultPolicy()
	if cfg.Connect.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.Connect.MaxAttempts
	}
	if cfg.Connect.InitialInterval > 0 {
		policy.InitialInterval = cfg.Connect.InitialInterval
	}
	if cfg.Connect.MaxInterval > 0 {
		policy.MaxInterval = cfg.Connect.MaxInterval
	}
	if cfg.Connect.Multiplier > 0 {
		policy.Multiplier = cfg.Connect.Multiplier
	}
	if cfg.Connect.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = cfg.Connect.MaxElapsedTime
	}

	return &Discord{
		token:   cfg.Token,
		connect: policy,
		logger:  log,
		client:  newHTTPClient(),
		open:    (*discordgo.Session).Open,
	}
}

func (d *Discord) Name() string { return constants.SourceTypeDiscord }

// Start connects to the gateway and forwards MessageCreate events to sink
// until ctx is done. Handlers run synchronously on the gateway reader, so
// events reach sink in the order the gateway delivered them.
func (d *Discord) Start(ctx context.Context, sink chan<- relay.InboundMessage) error {
	session, err := d.newSession(ctx, sink)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.session = session
	d.mu.Unlock()

	err = retry.RetryWithCallback(ctx, d.connect, func() error {
		if err := d.open(session); err != nil {
			if isFatalGatewayError(err) {
				return retry.NewFatalError(err)
			}
			return err
		}
		return nil
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues("discord_connect").Inc()
		d.logger.Warnw("Discord connect failed, retrying",
			"attempt", attempt,
			"max_attempts", d.connect.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
		)
	})
	if err != nil {
		if closeErr := d.closeSession(); closeErr != nil {
			d.logger.Warnw("Failed to close Discord session after connect failure", "error", closeErr)
		}
		return fmt.Errorf("discord connect: %w", err)
	}

	<-ctx.Done()
	d.logger.Infow("Discord source disconnecting")
	return d.closeSession()
}

func (d *Discord) newSession(ctx context.Context, sink chan<- relay.InboundMessage) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	session.SyncEvents = true

	session.AddHandler(d.onReady)
	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		d.ready.Store(false)
		d.logger.Warnw("Discord gateway disconnected")
	})
	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) {
		d.ready.Store(true)
		d.logger.Infow("Discord gateway session resumed")
	})
	session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m == nil || m.Message == nil {
			return
		}
		metrics.IncSourceEvent(constants.SourceTypeDiscord)
		_ = emit(ctx, sink, ConvertMessage(m.Message, d.client))
	})

	return session, nil
}

func (d *Discord) closeSession() error {
	d.mu.Lock()
	session := d.session
	d.session = nil
	d.mu.Unlock()

	d.ready.Store(false)
	if session == nil {
		return nil
	}
	return session.Close()
}

func (d *Discord) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	d.ready.Store(true)
	if r == nil || r.User == nil {
		return
	}
	d.logger.Infow("Logged in to Discord",
		"user", DisplayName(r.User),
		"user_id", r.User.ID,
		"guilds", len(r.Guilds),
	)
}

func (d *Discord) Check(context.Context) error {
	if !d.ready.Load() {
		return errors.New("discord gateway not connected")
	}
	return nil
}

func (d *Discord) Close() error {
	return d.closeSession()
}

func isFatalGatewayError(err error) bool {
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr) && fatalCloseCodes[closeErr.Code]
}

// ConvertMessage maps a gateway message to the relay's inbound model.
// Messages posted by webhooks count as automated, which keeps relayed
// copies from being relayed again.
func ConvertMessage(m *discordgo.Message, client *http.Client) relay.InboundMessage {
	msg := relay.InboundMessage{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}

	if m.Author != nil {
		msg.Author = relay.Author{
			ID:          m.Author.ID,
			DisplayName: DisplayName(m.Author),
			AvatarURL:   AvatarURL(m),
			Bot:         m.Author.Bot || m.WebhookID != "",
		}
	} else {
		msg.Author.Bot = m.WebhookID != ""
	}

	msg.Attachments = make([]relay.Attachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		msg.Attachments = append(msg.Attachments, relay.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        int64(a.Size),
			Content:     NewHTTPContent(a.URL, client),
		})
	}

	msg.Embeds = make([]relay.Embed, 0, len(m.Embeds))
	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		if embed, err := embedToMap(e); err == nil {
			msg.Embeds = append(msg.Embeds, embed)
		}
	}

	return msg
}

// DisplayName renders name#discriminator, or just the name for accounts
// migrated to unique usernames (discriminator "0").
func DisplayName(u *discordgo.User) string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

// AvatarURL returns the author's guild avatar when set, else the user
// avatar, else the default avatar.
func AvatarURL(m *discordgo.Message) string {
	if m.Author == nil {
		return ""
	}
	if m.Member != nil && m.Member.Avatar != "" && m.GuildID != "" {
		member := *m.Member
		member.User = m.Author
		member.GuildID = m.GuildID
		return member.AvatarURL("")
	}
	return m.Author.AvatarURL("")
}

func embedToMap(e *discordgo.MessageEmbed) (relay.Embed, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return relay.Embed(out), nil
}
