// Package publish owns the three Discord outputs of a pipeline run: the
// evolving status line, the final minutes post, and error embeds.
package publish

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/junzi314/minutes/internal/errs"
	"github.com/junzi314/minutes/internal/model"
)

// embedColorRed is the sidebar color for an error embed. The success color
// is configurable (Config.EmbedColor) since it is posted by operators
// customizing their output channel; errors are always red.
const embedColorRed = 0xE74C3C

// Config configures a Publisher.
type Config struct {
	OutputChannelID    uint64
	ErrorMentionRoleID uint64 // 0 disables the mention
	EmbedColor         int
	MaxEmbedLength     int
	IncludeTranscript  bool
}

// Session is the subset of discordgo.Session the Publisher needs, so tests
// can substitute a fake gateway.
type Session interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// StatusLine is one evolving status message for a single recording,
// created on first update via ChannelMessageSend and edited in place on
// every subsequent update — the same create-then-edit shape as the
// teacher's dashboard, generalized from a periodic loop to a one-shot
// per-recording sequence. Status writes never return an error to the
// caller: failures are logged and swallowed so a flaky gateway edit can
// never abort the pipeline.
type StatusLine struct {
	session   Session
	channelID string

	mu        sync.Mutex
	messageID string
}

// NewStatusLine returns a StatusLine bound to channelID.
func NewStatusLine(session Session, channelID uint64) *StatusLine {
	return &StatusLine{session: session, channelID: strconv.FormatUint(channelID, 10)}
}

// Update posts the first status line or edits the existing one.
func (s *StatusLine) Update(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.messageID == "" {
		msg, err := s.session.ChannelMessageSend(s.channelID, text)
		if err != nil {
			slog.Warn("publish: failed to create status line", "channel", s.channelID, "err", err)
			return
		}
		s.messageID = msg.ID
		return
	}

	if _, err := s.session.ChannelMessageEdit(s.channelID, s.messageID, text); err != nil {
		slog.Warn("publish: failed to edit status line", "message_id", s.messageID, "err", err)
	}
}

// Downloading, Transcribing, Generating, Posting, Complete, and Failed
// render the fixed status-line vocabulary for each pipeline stage.
func Downloading() string { return "Downloading…" }

func Transcribing(n, total int, name string) string {
	return fmt.Sprintf("Transcribing %d/%d (%s)…", n, total, name)
}

func Generating() string { return "Generating…" }

func Posting() string { return "Posting…" }

func Complete(elapsed time.Duration) string {
	return fmt.Sprintf("Complete (%dms)", elapsed.Milliseconds())
}

func Failed(stage string) string {
	return fmt.Sprintf("Failed: %s", stage)
}

// Publisher posts the final minutes embed + attachment and error embeds to
// the configured output channel.
type Publisher struct {
	session Session
	cfg     Config
}

// New returns a Publisher bound to cfg.
func New(session Session, cfg Config) *Publisher {
	if cfg.MaxEmbedLength <= 0 {
		cfg.MaxEmbedLength = 4096
	}
	return &Publisher{session: session, cfg: cfg}
}

// Result carries everything needed to render the final post.
type Result struct {
	RecordingID  string
	Minutes      model.Minutes
	Summary      string
	Participants []string
	Duration     time.Duration
	Transcript   string // raw merged transcript, attached only if cfg.IncludeTranscript
	PostedAt     time.Time
}

// PostFinal sends the success embed plus a markdown attachment containing
// the full minutes, retrying once on a 5xx or transport error.
func (p *Publisher) PostFinal(result Result) error {
	embed := p.buildFinalEmbed(result)
	channelID := strconv.FormatUint(p.cfg.OutputChannelID, 10)

	files := []*discordgo.File{{
		Name:        fmt.Sprintf("minutes-%s.md", result.RecordingID),
		ContentType: "text/markdown",
		Reader:      bytes.NewReader([]byte(result.Minutes)),
	}}
	if p.cfg.IncludeTranscript && result.Transcript != "" {
		files = append(files, &discordgo.File{
			Name:        fmt.Sprintf("transcript-%s.txt", result.RecordingID),
			ContentType: "text/plain",
			Reader:      bytes.NewReader([]byte(result.Transcript)),
		})
	}

	send := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}, Files: files}

	var lastErr error
	for attempt := 0; attempt <= 1; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Second)
		}
		if _, err := p.session.ChannelMessageSendComplex(channelID, send); err != nil {
			lastErr = err
			var restErr *discordgo.RESTError
			if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode < 500 {
				break
			}
			continue
		}
		return nil
	}
	return errs.Publish(fmt.Errorf("publish: send final post: %w", lastErr))
}

func (p *Publisher) buildFinalEmbed(result Result) *discordgo.MessageEmbed {
	summary := result.Summary
	if len(summary) > p.cfg.MaxEmbedLength {
		summary = truncateAtLineBoundary(summary, p.cfg.MaxEmbedLength) + "… (truncated, see attachment)"
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Participants", Value: strings.Join(result.Participants, ", "), Inline: false},
		{Name: "Duration", Value: result.Duration.Truncate(time.Second).String(), Inline: true},
	}

	color := p.cfg.EmbedColor
	if color == 0 {
		color = 0x2ECC71
	}

	return &discordgo.MessageEmbed{
		Title:       result.PostedAt.Format("2006-01-02 Meeting Minutes"),
		Description: summary,
		Color:       color,
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("recording %s", result.RecordingID)},
		Timestamp:   result.PostedAt.UTC().Format(time.RFC3339),
	}
}

// truncateAtLineBoundary cuts s to at most limit bytes, backing up to the
// last newline at or before the cut so a truncated summary never severs a
// line mid-word. If no newline exists before limit, it falls back to the
// hard byte cut rather than returning the whole (still over-limit) string.
func truncateAtLineBoundary(s string, limit int) string {
	cut := s[:limit]
	if i := strings.LastIndexByte(cut, '\n'); i >= 0 {
		return cut[:i]
	}
	return cut
}

// PostError posts a red error embed, best-effort: a failure here is logged,
// never propagated, since it would itself be an error-reporting failure.
func (p *Publisher) PostError(stage, recordingID string, cause error) {
	channelID := strconv.FormatUint(p.cfg.OutputChannelID, 10)

	content := ""
	if p.cfg.ErrorMentionRoleID != 0 {
		content = fmt.Sprintf("<@&%d>", p.cfg.ErrorMentionRoleID)
	}

	embed := &discordgo.MessageEmbed{
		Title: "Minutes pipeline failed",
		Color: embedColorRed,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Stage", Value: stage, Inline: true},
			{Name: "Recording", Value: recordingID, Inline: true},
			{Name: "Error", Value: shortError(cause), Inline: false},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	send := &discordgo.MessageSend{Content: content, Embeds: []*discordgo.MessageEmbed{embed}}
	if _, err := p.session.ChannelMessageSendComplex(channelID, send); err != nil {
		slog.Error("publish: failed to post error embed", "recording_id", recordingID, "err", err)
	}
}

func shortError(err error) string {
	if err == nil {
		return "unknown error"
	}
	msg := err.Error()
	const limit = 500
	if len(msg) > limit {
		msg = msg[:limit] + "…"
	}
	return msg
}
