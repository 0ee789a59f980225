// Package panel detects when a recording-bot's status panel message has been
// edited to announce that a recording has ended, and extracts the
// RecordingHandle needed to acquire it.
//
// The upstream panel's message-component schema is expected to evolve, so
// detection operates on the re-serialized JSON text of the edited message
// rather than walking typed component trees. The substring and URL-pattern
// constants below are the single place to update if the upstream panel
// format changes (see DESIGN.md's Open Question (a)).
package panel

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/junzi314/minutes/internal/model"
)

// recordingEndedMarker is the exact substring the panel embeds once a
// recording has finished processing server-side.
const recordingEndedMarker = "Recording ended"

// recordingURLPattern matches "https?://{host}/rec/{id}?key={key}" anywhere
// in the serialized payload. host is validated separately against the
// configured domain allowlist.
var recordingURLPattern = regexp.MustCompile(`https?://([A-Za-z0-9.\-]+)/rec/([A-Za-z0-9]+)\?key=([A-Za-z0-9]+)`)

// Config holds the filters a Detector applies to incoming message-update
// events.
type Config struct {
	// BotID is the author id the recording bot posts panel updates as.
	BotID uint64

	// WatchChannelID is the only channel panel edits are accepted from.
	WatchChannelID uint64

	// DomainAllowlist restricts which hosts the extracted recording URL may
	// point at.
	DomainAllowlist []string
}

// Detector filters discordgo message-update events down to RecordingHandle
// values. Construct one with New and register Handle via Bot.AddHandler.
type Detector struct {
	cfg     Config
	allowed map[string]bool
	onFound func(model.RecordingHandle)
}

// New creates a Detector that invokes onFound for every recording-ended edit
// that passes all filters.
func New(cfg Config, onFound func(model.RecordingHandle)) *Detector {
	allowed := make(map[string]bool, len(cfg.DomainAllowlist))
	for _, d := range cfg.DomainAllowlist {
		allowed[d] = true
	}
	return &Detector{cfg: cfg, allowed: allowed, onFound: onFound}
}

// Handle is a discordgo.MessageUpdate handler suitable for Bot.AddHandler.
func (d *Detector) Handle(_ *discordgo.Session, m *discordgo.MessageUpdate) {
	if m.Message == nil {
		return
	}
	handle, ok, err := d.Detect(m.Message)
	if err != nil {
		slog.Error("panel: failed to serialize message update", "err", err)
		return
	}
	if !ok {
		return
	}
	d.onFound(handle)
}

// Detect applies the filter chain to msg, in the order specified: author,
// channel, "recording ended" marker, recording URL. The first failing filter
// yields (zero, false, nil). A detection failure (JSON marshal error) is the
// only situation which returns a non-nil error.
func (d *Detector) Detect(msg *discordgo.Message) (model.RecordingHandle, bool, error) {
	var zero model.RecordingHandle

	if msg.Author == nil {
		return zero, false, nil
	}
	authorID, err := parseSnowflake(msg.Author.ID)
	if err != nil || authorID != d.cfg.BotID {
		return zero, false, nil
	}

	channelID, err := parseSnowflake(msg.ChannelID)
	if err != nil || channelID != d.cfg.WatchChannelID {
		return zero, false, nil
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return zero, false, fmt.Errorf("panel: marshal message: %w", err)
	}
	payload := string(raw)

	handle, ok := detectFromPayload(payload, d.allowed, channelID)
	return handle, ok, nil
}

// detectFromPayload runs filters #3 and #4 against the already-serialized
// payload text. Split out so tests can exercise it directly with literal
// strings instead of constructing a discordgo.Message.
func detectFromPayload(payload string, allowedHosts map[string]bool, channelID uint64) (model.RecordingHandle, bool) {
	var zero model.RecordingHandle

	if !containsMarker(payload) {
		return zero, false
	}

	match := recordingURLPattern.FindStringSubmatch(payload)
	if match == nil {
		return zero, false
	}
	host, id, key := match[1], match[2], match[3]
	if len(allowedHosts) > 0 && !allowedHosts[host] {
		return zero, false
	}

	return model.RecordingHandle{
		RecordingID:     id,
		AccessKey:       key,
		OriginChannelID: channelID,
		TriggerKind:     model.TriggerPanelEdit,
	}, true
}

func containsMarker(payload string) bool {
	return strings.Contains(payload, recordingEndedMarker)
}

func parseSnowflake(s string) (uint64, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "%d", &v)
	if err != nil {
		return 0, fmt.Errorf("panel: parse snowflake %q: %w", s, err)
	}
	return v, nil
}
