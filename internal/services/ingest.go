// Package services – Ingestor
//
// Ingestor is the fetch driver. It resolves the guild, walks every readable
// text channel oldest-first, and for each media attachment inside the window
// decides between skip (already in the manifest), repair (file already on
// disk, record it) and download (fetch, save atomically, record).
//
// Failure scopes:
//   - authentication, guild resolution and channel listing are fatal and
//     returned from Run;
//   - a history error ends the current channel only;
//   - a per-attachment error is counted and logged, the scan moves on.
//
// Processing is strictly sequential. Context cancellation stops the run after
// the attachment in flight; the run row and summary are still written.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-discord-media/internal/domain"
	"github.com/tbourn/go-discord-media/internal/media"
	"github.com/tbourn/go-discord-media/internal/observability"
	"github.com/tbourn/go-discord-media/internal/source"
	"github.com/tbourn/go-discord-media/internal/storage"
	"github.com/tbourn/go-discord-media/internal/window"
)

// Manifest is the persistence the driver needs. *ManifestStore satisfies it.
type Manifest interface {
	Has(ctx context.Context, attachmentID string) (bool, error)
	Insert(ctx context.Context, rec *domain.DownloadRecord) (bool, error)
	BeginRun(ctx context.Context, run *domain.Run) error
	FinishRun(ctx context.Context, run *domain.Run) error
}

// Files is the download directory. *storage.FileStore satisfies it.
type Files interface {
	Exists(name string) bool
	Size(name string) (int64, error)
	Save(name string, r io.Reader) (*storage.SaveResult, error)
	CleanPartials() (int, error)
}

// IngestOptions are the behavior switches of a run.
type IngestOptions struct {
	// StrictRepair refuses to record an existing file whose size differs
	// from the attachment's declared size.
	StrictRepair bool
	// DryRun performs every check but never fetches or inserts.
	DryRun bool
}

// Ingestor runs fetch scans. Construct with NewIngestor.
type Ingestor struct {
	src      source.Source
	manifest Manifest
	files    Files
	log      zerolog.Logger
	opts     IngestOptions

	metrics  *observability.RunMetrics
	reporter observability.Reporter
	now      func() time.Time
	newID    func() string
}

// IngestorOption customizes an Ingestor.
type IngestorOption func(*Ingestor)

// WithMetrics records run counters into m.
func WithMetrics(m *observability.RunMetrics) IngestorOption {
	return func(in *Ingestor) { in.metrics = m }
}

// WithReporter forwards channel and attachment failures to r.
func WithReporter(r observability.Reporter) IngestorOption {
	return func(in *Ingestor) {
		if r != nil {
			in.reporter = r
		}
	}
}

// WithClock overrides the wall clock used for run timestamps.
func WithClock(now func() time.Time) IngestorOption {
	return func(in *Ingestor) { in.now = now }
}

// NewIngestor wires a driver from its collaborators.
func NewIngestor(src source.Source, manifest Manifest, files Files, log zerolog.Logger, opts IngestOptions, extra ...IngestorOption) *Ingestor {
	in := &Ingestor{
		src:      src,
		manifest: manifest,
		files:    files,
		log:      log,
		opts:     opts,
		reporter: observability.NopReporter{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range extra {
		o(in)
	}
	return in
}

// Run scans guildID for media posted inside w.
//
// The returned error is non-nil only for fatal conditions (ErrAuthFailed,
// ErrGuildUnavailable, or a manifest that cannot record the run). An
// interrupted run returns its partial Summary with Interrupted set and a nil
// error.
func (in *Ingestor) Run(ctx context.Context, guildID string, w window.Window) (Summary, error) {
	tr := otel.Tracer("services/Ingestor")
	ctx, span := tr.Start(ctx, "Ingestor.Run",
		trace.WithAttributes(
			attribute.String("guild.id", guildID),
			attribute.Bool("dry_run", in.opts.DryRun),
		),
	)
	defer span.End()

	sum := Summary{DryRun: in.opts.DryRun}
	log := in.log.With().Str("guild_id", guildID).Logger()

	me, err := in.src.Connect(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "connect")
		return sum, fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	log.Info().Str("user", me.Name).Str("user_id", me.ID).Msg("logged in")

	guild, err := in.src.Guild(ctx, guildID)
	if err != nil {
		span.SetStatus(codes.Error, "guild")
		return sum, fmt.Errorf("%w: %s: %w", ErrGuildUnavailable, guildID, err)
	}
	channels, err := in.src.Channels(ctx, guild)
	if err != nil {
		span.SetStatus(codes.Error, "channels")
		return sum, fmt.Errorf("%w: list channels: %w", ErrGuildUnavailable, err)
	}

	if n, err := in.files.CleanPartials(); err != nil {
		log.Warn().Err(err).Msg("could not remove partial files")
	} else if n > 0 {
		log.Info().Int("count", n).Msg("removed partial files from an earlier run")
	}

	run := &domain.Run{
		ID:          in.newID(),
		GuildID:     guild.ID,
		WindowStart: w.Start,
		WindowEnd:   w.End,
		DryRun:      in.opts.DryRun,
		Status:      domain.RunRunning,
		StartedAt:   in.now().UTC(),
	}
	if err := in.manifest.BeginRun(ctx, run); err != nil {
		span.SetStatus(codes.Error, "begin run")
		return sum, fmt.Errorf("record run: %w", err)
	}
	sum.RunID = run.ID
	span.SetAttributes(attribute.String("run.id", run.ID))

	log = log.With().Str("run_id", run.ID).Logger()
	log.Info().
		Str("guild", guild.Name).
		Str("window", w.String()).
		Int("channels", len(channels)).
		Bool("dry_run", in.opts.DryRun).
		Msg("scanning guild")

	for _, ch := range channels {
		if ctx.Err() != nil {
			break
		}
		in.scanChannel(ctx, log, guild, ch, w, run.ID, &sum)
	}
	sum.Interrupted = ctx.Err() != nil

	in.finish(ctx, log, run, &sum)
	return sum, nil
}

// scanChannel walks one channel's history. Errors never escape: they are
// counted on sum and the caller moves on to the next channel.
func (in *Ingestor) scanChannel(ctx context.Context, log zerolog.Logger, guild source.Guild, ch source.Channel, w window.Window, runID string, sum *Summary) {
	tr := otel.Tracer("services/Ingestor")
	ctx, span := tr.Start(ctx, "channel",
		trace.WithAttributes(
			attribute.String("channel.id", ch.ID),
			attribute.String("channel.name", ch.Name),
		),
	)
	defer span.End()

	log = log.With().Str("channel_id", ch.ID).Str("channel", ch.Name).Logger()
	log.Info().Msg("scanning channel")
	sum.ChannelsScanned++
	in.metrics.Channel()

	if ch.Err != nil {
		sum.ChannelsFailed++
		in.metrics.ChannelFailed()
		span.RecordError(ch.Err)
		span.SetStatus(codes.Error, "permissions")
		log.Error().Err(ch.Err).Msg("channel skipped")
		in.reporter.Capture(ch.Err, map[string]string{"stage": "permissions", "channel_id": ch.ID})
		return
	}

	for msg, err := range in.src.History(ctx, ch.ID, w.After, w.Before) {
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sum.ChannelsFailed++
			in.metrics.ChannelFailed()
			span.RecordError(err)
			span.SetStatus(codes.Error, "history")
			if errors.Is(err, source.ErrForbidden) {
				log.Warn().Err(err).Msg("no access to channel history")
				return
			}
			log.Error().Err(err).Msg("channel scan failed")
			in.reporter.Capture(err, map[string]string{"stage": "history", "channel_id": ch.ID})
			return
		}
		if ctx.Err() != nil {
			return
		}

		sum.MessagesScanned++
		in.metrics.Message()
		if len(msg.Attachments) == 0 || !w.Contains(msg.CreatedAt) {
			continue
		}
		for _, att := range msg.Attachments {
			if ctx.Err() != nil {
				return
			}
			in.handleAttachment(ctx, log, guild, ch, msg, att, runID, sum)
		}
	}
}

// handleAttachment processes one attachment and folds the outcome into sum.
func (in *Ingestor) handleAttachment(ctx context.Context, log zerolog.Logger, guild source.Guild, ch source.Channel, msg source.Message, att source.Attachment, runID string, sum *Summary) {
	if !media.IsMedia(att.ContentType, att.Filename) {
		return
	}
	kind := media.Kind(att.ContentType, att.Filename)

	tr := otel.Tracer("services/Ingestor")
	ctx, span := tr.Start(ctx, "attachment",
		trace.WithAttributes(
			attribute.String("attachment.id", att.ID),
			attribute.String("message.id", msg.ID),
			attribute.String("media.kind", kind),
		),
	)
	defer span.End()

	log = log.With().Str("attachment_id", att.ID).Str("message_id", msg.ID).Logger()

	outcome, err := in.process(ctx, log, guild, ch, msg, att, runID)
	if err != nil {
		if ctx.Err() != nil {
			log.Warn().Err(err).Msg("attachment abandoned on shutdown")
			return
		}
		sum.Failed++
		in.metrics.Attachment(observability.OutcomeFailed, kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, "attachment")

		lvl := zerolog.ErrorLevel
		if errors.Is(err, ErrFilenameCollision) {
			lvl = zerolog.WarnLevel
		}
		log.WithLevel(lvl).Err(err).Str("filename", att.Filename).Msg("attachment not saved")
		in.reporter.Capture(err, map[string]string{
			"stage":         "attachment",
			"channel_id":    ch.ID,
			"message_id":    msg.ID,
			"attachment_id": att.ID,
		})
		return
	}

	switch outcome {
	case observability.OutcomeSkipped:
		sum.Skipped++
	case observability.OutcomeRepaired:
		sum.Skipped++
		sum.Repaired++
	case observability.OutcomeDownloaded:
		sum.Downloaded++
	}
	span.SetAttributes(attribute.String("outcome", outcome))
	in.metrics.Attachment(outcome, kind)
}

// process is the per-attachment state machine. It returns one of the
// observability outcome labels, or an error that leaves no manifest row.
func (in *Ingestor) process(ctx context.Context, log zerolog.Logger, guild source.Guild, ch source.Channel, msg source.Message, att source.Attachment, runID string) (string, error) {
	has, err := in.manifest.Has(ctx, att.ID)
	if err != nil {
		return "", fmt.Errorf("manifest lookup: %w", err)
	}
	if has {
		return observability.OutcomeSkipped, nil
	}

	name := media.DeriveFilename(msg.AuthorID, msg.CreatedAt, att.ID, att.Filename)
	rec := &domain.DownloadRecord{
		AttachmentID: att.ID,
		MessageID:    msg.ID,
		ChannelID:    ch.ID,
		GuildID:      guild.ID,
		URL:          att.URL,
		Filename:     name,
		CreatedAtUTC: media.ISOTimestamp(msg.CreatedAt),
		AuthorID:     msg.AuthorID,
		ContentType:  att.ContentType,
		SizeBytes:    att.Size,
		RunID:        runID,
	}

	// A completed write is always recorded, even if shutdown began meanwhile.
	recordCtx := context.WithoutCancel(ctx)

	if in.files.Exists(name) {
		size, err := in.files.Size(name)
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", name, err)
		}
		if in.opts.StrictRepair && att.Size > 0 && size != att.Size {
			return "", fmt.Errorf("%w: %s has %d bytes, attachment declares %d", ErrFilenameCollision, name, size, att.Size)
		}
		if in.opts.DryRun {
			log.Info().Str("file", name).Msg("would record existing file")
			return observability.OutcomeRepaired, nil
		}
		rec.SizeBytes = size
		rec.Repaired = true
		if _, err := in.manifest.Insert(recordCtx, rec); err != nil {
			return "", fmt.Errorf("record %s: %w", name, err)
		}
		log.Info().Str("file", name).Msg("already on disk, recorded")
		return observability.OutcomeRepaired, nil
	}

	if in.opts.DryRun {
		log.Info().Str("file", name).Str("author", msg.AuthorName).Msg("would download")
		return observability.OutcomeDownloaded, nil
	}

	body, err := in.src.Fetch(ctx, att)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer body.Close()

	res, err := in.files.Save(name, body)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	rec.SizeBytes = res.Size
	rec.SHA256 = res.Checksum
	if _, err := in.manifest.Insert(recordCtx, rec); err != nil {
		return "", fmt.Errorf("record %s: %w", name, err)
	}
	in.metrics.Bytes(res.Size)

	log.Info().
		Str("file", name).
		Str("author", msg.AuthorName).
		Time("created_at", msg.CreatedAt).
		Int64("bytes", res.Size).
		Msg("saved")
	return observability.OutcomeDownloaded, nil
}

// finish writes the final run row. It runs on an uncancelled context so an
// interrupted run is still recorded.
func (in *Ingestor) finish(ctx context.Context, log zerolog.Logger, run *domain.Run, sum *Summary) {
	finished := in.now().UTC()
	run.FinishedAt = &finished
	run.Status = domain.RunCompleted
	if sum.Interrupted {
		run.Status = domain.RunInterrupted
	}
	run.MessagesScanned = sum.MessagesScanned
	run.FilesDownloaded = sum.Downloaded
	run.FilesSkipped = sum.Skipped
	run.FilesRepaired = sum.Repaired
	run.FilesFailed = sum.Failed
	run.ChannelsScanned = sum.ChannelsScanned
	run.ChannelsFailed = sum.ChannelsFailed

	sum.Duration = finished.Sub(run.StartedAt)
	in.metrics.Finish(run.StartedAt, finished)

	if err := in.manifest.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		log.Error().Err(err).Msg("could not finalize run record")
	}

	lvl := zerolog.InfoLevel
	if sum.Interrupted {
		lvl = zerolog.WarnLevel
	}
	log.WithLevel(lvl).
		Str("status", run.Status).
		Int64("downloaded", sum.Downloaded).
		Int64("skipped", sum.Skipped).
		Int64("failed", sum.Failed).
		Dur("duration", sum.Duration).
		Msg("run finished")
}
