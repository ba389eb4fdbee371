// Package discord implements source.Source on top of the Discord REST API
// (github.com/bwmarrin/discordgo).
//
// Only REST calls are used: the history scan needs no gateway session. The
// bot application must still have the Message Content intent enabled in the
// developer portal, otherwise attachments come back empty.
package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tbourn/go-discord-media/internal/source"
)

const (
	// pageSize is the maximum page the messages endpoint returns.
	pageSize = 100
	// discordEpochMS is 2015-01-01T00:00:00Z, the origin of snowflake time.
	discordEpochMS = 1420070400000
	// readPerms must all be granted for a channel to be scanned.
	readPerms = discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory
)

// api is the subset of *discordgo.Session used here.
type api interface {
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	Close() error
}

// Client is a Discord-backed message source.
type Client struct {
	api  api
	http *http.Client
	me   source.Principal
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for attachment downloads.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client authenticated with a bot token.
func New(token string, opts ...Option) (*Client, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	c := &Client{api: s, http: s.Client}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Connect verifies the token by fetching the bot's own user.
func (c *Client) Connect(ctx context.Context) (source.Principal, error) {
	u, err := c.api.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return source.Principal{}, classify(err)
	}
	c.me = source.Principal{ID: u.ID, Name: u.Username}
	return c.me, nil
}

// Guild resolves the guild the bot is a member of.
func (c *Client) Guild(ctx context.Context, guildID string) (source.Guild, error) {
	g, err := c.api.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return source.Guild{}, classify(err)
	}
	return source.Guild{ID: g.ID, Name: g.Name}, nil
}

// Channels returns the guild's text channels the bot can view and read
// history in, in sidebar order. Connect must have been called.
func (c *Client) Channels(ctx context.Context, guild source.Guild) ([]source.Channel, error) {
	if c.me.ID == "" {
		return nil, errors.New("discord: Channels called before Connect")
	}
	all, err := c.api.GuildChannels(guild.ID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}

	text := make([]*discordgo.Channel, 0, len(all))
	for _, ch := range all {
		if ch.Type == discordgo.ChannelTypeGuildText {
			text = append(text, ch)
		}
	}
	sort.SliceStable(text, func(i, j int) bool {
		if text[i].Position != text[j].Position {
			return text[i].Position < text[j].Position
		}
		return idLess(text[i].ID, text[j].ID)
	})

	out := make([]source.Channel, 0, len(text))
	for _, ch := range text {
		sc := source.Channel{ID: ch.ID, GuildID: guild.ID, Name: ch.Name}
		perms, err := c.api.UserChannelPermissions(c.me.ID, ch.ID, discordgo.WithContext(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			cerr := classify(err)
			if errors.Is(cerr, source.ErrForbidden) || errors.Is(cerr, source.ErrNotFound) {
				continue
			}
			sc.Err = fmt.Errorf("channel permissions: %w", cerr)
			out = append(out, sc)
			continue
		}
		if perms&readPerms != readPerms {
			continue
		}
		out = append(out, sc)
	}
	return out, nil
}

// History pages forward from after using snowflake cursors. Each page comes
// back newest-first, so it is re-sorted before yielding.
func (c *Client) History(ctx context.Context, channelID string, after, before time.Time) iter.Seq2[source.Message, error] {
	return func(yield func(source.Message, error) bool) {
		cursor := SnowflakeAt(after, true)
		limit := parseID(SnowflakeAt(before, false))

		for {
			if err := ctx.Err(); err != nil {
				yield(source.Message{}, err)
				return
			}
			page, err := c.api.ChannelMessages(channelID, pageSize, "", cursor, "", discordgo.WithContext(ctx))
			if err != nil {
				yield(source.Message{}, classify(err))
				return
			}
			if len(page) == 0 {
				return
			}
			sort.Slice(page, func(i, j int) bool { return idLess(page[i].ID, page[j].ID) })

			for _, m := range page {
				if parseID(m.ID) >= limit {
					return
				}
				if !yield(convert(m), nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
			cursor = page[len(page)-1].ID
		}
	}
}

// Fetch downloads the attachment from the CDN.
func (c *Client) Fetch(ctx context.Context, a source.Attachment) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", source.ErrTransport, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", source.ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusForbidden, http.StatusUnauthorized:
			return nil, fmt.Errorf("%w: attachment %s: HTTP %d", source.ErrForbidden, a.ID, resp.StatusCode)
		case http.StatusNotFound:
			return nil, fmt.Errorf("%w: attachment %s: HTTP %d", source.ErrNotFound, a.ID, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: attachment %s: HTTP %d", source.ErrTransport, a.ID, resp.StatusCode)
	}
	return resp.Body, nil
}

// Close releases the session.
func (c *Client) Close() error {
	return c.api.Close()
}

// SnowflakeAt returns the snowflake id for t. high selects the largest id in
// that millisecond, which is what an exclusive "after" cursor needs.
func SnowflakeAt(t time.Time, high bool) string {
	ms := t.UnixMilli() - discordEpochMS
	if ms < 0 {
		ms = 0
	}
	id := uint64(ms) << 22
	if high {
		id += 1<<22 - 1
	}
	return strconv.FormatUint(id, 10)
}

// convert maps a Discord message to the source view. The creation time is
// taken from the snowflake so it is identical across API versions.
func convert(m *discordgo.Message) source.Message {
	created, err := discordgo.SnowflakeTimestamp(m.ID)
	if err != nil {
		created = m.Timestamp
	}
	out := source.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		CreatedAt: created.UTC(),
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
		out.AuthorName = m.Author.Username
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		out.Attachments = append(out.Attachments, source.Attachment{
			ID:          a.ID,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			URL:         a.URL,
			Size:        int64(a.Size),
		})
	}
	return out
}

// classify maps discordgo errors onto the source sentinels.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", source.ErrForbidden, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", source.ErrNotFound, err)
		}
	}
	return fmt.Errorf("%w: %w", source.ErrTransport, err)
}

func parseID(id string) uint64 {
	v, _ := strconv.ParseUint(id, 10, 64)
	return v
}

func idLess(a, b string) bool { return parseID(a) < parseID(b) }
