// Package source defines the message-source contract consumed by the
// ingestion driver: authenticate, resolve a guild, list readable text
// channels, stream a channel's history oldest-first between two exclusive
// instants, and fetch attachment bytes.
//
// Implementations classify their failures by wrapping ErrForbidden,
// ErrNotFound or ErrTransport so callers can use errors.Is without depending
// on a platform SDK.
package source

import (
	"context"
	"errors"
	"io"
	"iter"
	"time"
)

var (
	// ErrForbidden means the principal lacks permission for the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound means the resource does not exist or is not visible.
	ErrNotFound = errors.New("not found")
	// ErrTransport covers network and protocol failures.
	ErrTransport = errors.New("transport error")
)

// Principal is the authenticated account.
type Principal struct {
	ID   string
	Name string
}

// Guild is the scanned server.
type Guild struct {
	ID   string
	Name string
}

// Channel is a text channel the principal can read history in.
type Channel struct {
	ID      string
	GuildID string
	Name    string

	// Err is set when the channel's permissions could not be checked. The
	// channel is listed so the failure stays local to it.
	Err error
}

// Attachment is a read-only view of a file attached to a message.
type Attachment struct {
	ID          string
	Filename    string
	ContentType string // may be empty
	URL         string
	Size        int64 // declared size in bytes, 0 when unknown
}

// Message is one history entry.
type Message struct {
	ID          string
	ChannelID   string
	AuthorID    string
	AuthorName  string
	CreatedAt   time.Time // UTC
	Attachments []Attachment
}

// Source is the external message-source API.
type Source interface {
	// Connect authenticates and returns the acting principal.
	Connect(ctx context.Context) (Principal, error)

	// Guild resolves guildID; ErrForbidden or ErrNotFound when inaccessible.
	Guild(ctx context.Context, guildID string) (Guild, error)

	// Channels lists the guild's text channels in which the principal may
	// read message history. Unreadable channels are omitted, not reported;
	// a channel whose permission check failed is listed with Err set. The
	// error return is for the listing itself.
	Channels(ctx context.Context, guild Guild) ([]Channel, error)

	// History yields the channel's messages with after < created < before,
	// oldest first. The sequence is lazy and forward-only; each call starts
	// a fresh scan. A non-nil error ends the sequence.
	History(ctx context.Context, channelID string, after, before time.Time) iter.Seq2[Message, error]

	// Fetch opens the attachment's content. The caller closes the reader.
	Fetch(ctx context.Context, a Attachment) (io.ReadCloser, error)

	// Close releases connections.
	Close() error
}
