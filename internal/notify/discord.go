package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const discordSender = "The System"

var rarityColors = map[string]int{
	"common":    0x9d9d9d,
	"uncommon":  0x1eff00,
	"rare":      0x0070dd,
	"epic":      0xa335ee,
	"legendary": 0xff8000,
}

// DiscordSink posts one embed per award to a Discord webhook, or to a proxy
// that forwards to one.
type DiscordSink struct {
	url      string
	client   *http.Client
	aliases  map[string]string
	location *time.Location
	interval time.Duration
	logger   *slog.Logger
}

// DiscordOption configures a DiscordSink.
type DiscordOption func(*DiscordSink)

// WithAliases maps usernames to the display names used in messages.
func WithAliases(aliases map[string]string) DiscordOption {
	return func(d *DiscordSink) { d.aliases = aliases }
}

// WithDiscordClient sets the HTTP client.
func WithDiscordClient(c *http.Client) DiscordOption {
	return func(d *DiscordSink) { d.client = c }
}

// WithDateLocation sets the timezone used for the date field.
func WithDateLocation(loc *time.Location) DiscordOption {
	return func(d *DiscordSink) {
		if loc != nil {
			d.location = loc
		}
	}
}

// WithInterval sets the pause between messages. Discord rate limits webhooks.
func WithInterval(d time.Duration) DiscordOption {
	return func(s *DiscordSink) { s.interval = d }
}

// WithDiscordLogger sets the logger.
func WithDiscordLogger(l *slog.Logger) DiscordOption {
	return func(d *DiscordSink) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDiscordSink creates a sink posting to url.
func NewDiscordSink(url string, opts ...DiscordOption) *DiscordSink {
	d := &DiscordSink{
		url:      strings.TrimSpace(url),
		client:   &http.Client{Timeout: 10 * time.Second},
		location: time.UTC,
		interval: time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ParseAliases reads "user:Name,user2:Other Name" pairs. Malformed pairs are skipped.
func ParseAliases(raw string) map[string]string {
	aliases := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			continue
		}
		if key = strings.TrimSpace(key); key != "" {
			aliases[key] = strings.TrimSpace(val)
		}
	}
	return aliases
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields"`
	Footer      discordFooter  `json:"footer"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

// Payload renders the webhook body for one notification.
func (d *DiscordSink) Payload(n Notification) ([]byte, error) {
	rarity := strings.ToLower(strings.TrimSpace(n.Rarity))
	if rarity == "" {
		rarity = "common"
	}
	color, ok := rarityColors[rarity]
	if !ok {
		color = rarityColors["common"]
	}

	name := n.Username
	if name == "" {
		name = n.UserID
	}
	if alias, ok := d.aliases[name]; ok && alias != "" {
		name = alias
	}

	var description string
	if n.FlavorText != "" {
		description = fmt.Sprintf(`*"%s"*`, n.FlavorText)
	}

	fields := []discordField{
		{Name: "Earned by", Value: name, Inline: true},
		{Name: "Points", Value: strconv.Itoa(n.Points), Inline: true},
		{Name: "Rarity", Value: cases.Title(language.English).String(rarity), Inline: true},
	}
	if n.ItemTitle != "" {
		fields = append(fields, discordField{Name: "Book", Value: n.ItemTitle, Inline: true})
	}
	if !n.EarnedAt.IsZero() {
		fields = append(fields, discordField{Name: "Date", Value: n.EarnedAt.In(d.location).Format("January 02, 2006"), Inline: true})
	}

	return json.MarshalIndent(discordPayload{
		Username: discordSender,
		Embeds: []discordEmbed{{
			Title:       "🏆 " + n.Headline(),
			Description: description,
			Color:       color,
			Fields:      fields,
			Footer:      discordFooter{Text: discordSender},
		}},
	}, "", "  ")
}

// Notify implements Sink. Every notification is attempted; failures are joined.
func (d *DiscordSink) Notify(ctx context.Context, batch []Notification) error {
	if d.url == "" || len(batch) == 0 {
		return nil
	}

	var errs []error
	for i, n := range batch {
		if i > 0 && d.interval > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(append(errs, ctx.Err())...)
			case <-time.After(d.interval):
			}
		}
		if err := d.post(ctx, n); err != nil {
			d.logger.Warn("discord notification failed", "user", n.UserID, "achievement", n.AchievementID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *DiscordSink) post(ctx context.Context, n Notification) error {
	body, err := d.Payload(n)
	if err != nil {
		return fmt.Errorf("discord payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("discord post %s/%s: status %d", n.UserID, n.AchievementID, resp.StatusCode)
	}
	return nil
}
