package panel

import (
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/junzi314/minutes/internal/model"
)

func testConfig() Config {
	return Config{
		BotID:           111,
		WatchChannelID:  222,
		DomainAllowlist: []string{"cook.example.com"},
	}
}

func testMessage(authorID, channelID string, content string) *discordgo.Message {
	return &discordgo.Message{
		Author:    &discordgo.User{ID: authorID},
		ChannelID: channelID,
		Content:   content,
	}
}

func TestDetect_FullMatch(t *testing.T) {
	d := New(testConfig(), nil)
	msg := testMessage("111", "222", "Recording ended. See https://cook.example.com/rec/abc123?key=xyz789 for details.")

	handle, ok, err := d.Detect(msg)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !ok {
		t.Fatal("expected detection to succeed")
	}
	want := model.RecordingHandle{
		RecordingID:     "abc123",
		AccessKey:       "xyz789",
		OriginChannelID: 222,
		TriggerKind:     model.TriggerPanelEdit,
	}
	if handle != want {
		t.Errorf("handle = %+v, want %+v", handle, want)
	}
}

func TestDetect_WrongAuthor(t *testing.T) {
	d := New(testConfig(), nil)
	msg := testMessage("999", "222", "Recording ended. https://cook.example.com/rec/abc123?key=xyz789")

	_, ok, err := d.Detect(msg)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if ok {
		t.Error("expected detection to fail for wrong author")
	}
}

func TestDetect_WrongChannel(t *testing.T) {
	d := New(testConfig(), nil)
	msg := testMessage("111", "333", "Recording ended. https://cook.example.com/rec/abc123?key=xyz789")

	_, ok, err := d.Detect(msg)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if ok {
		t.Error("expected detection to fail for wrong channel")
	}
}

func TestDetect_MissingMarker(t *testing.T) {
	d := New(testConfig(), nil)
	msg := testMessage("111", "222", "Still recording... https://cook.example.com/rec/abc123?key=xyz789")

	_, ok, err := d.Detect(msg)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if ok {
		t.Error("expected detection to fail without the recording-ended marker")
	}
}

func TestDetect_DisallowedHost(t *testing.T) {
	d := New(testConfig(), nil)
	msg := testMessage("111", "222", "Recording ended. https://evil.example.com/rec/abc123?key=xyz789")

	_, ok, err := d.Detect(msg)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if ok {
		t.Error("expected detection to fail for a host outside the allowlist")
	}
}

func TestDetect_NoURL(t *testing.T) {
	d := New(testConfig(), nil)
	msg := testMessage("111", "222", "Recording ended.")

	_, ok, err := d.Detect(msg)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if ok {
		t.Error("expected detection to fail without a recording URL")
	}
}

func TestDetect_EmptyAllowlistAllowsAnyHost(t *testing.T) {
	cfg := testConfig()
	cfg.DomainAllowlist = nil
	d := New(cfg, nil)
	msg := testMessage("111", "222", "Recording ended. https://anywhere.test/rec/abc123?key=xyz789")

	_, ok, err := d.Detect(msg)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !ok {
		t.Error("expected detection to succeed when no allowlist is configured")
	}
}

func TestHandle_InvokesCallbackOnMatch(t *testing.T) {
	var got model.RecordingHandle
	calls := 0
	d := New(testConfig(), func(h model.RecordingHandle) {
		got = h
		calls++
	})

	d.Handle(nil, &discordgo.MessageUpdate{Message: testMessage("111", "222",
		"Recording ended. https://cook.example.com/rec/abc123?key=xyz789")})

	if calls != 1 {
		t.Fatalf("callback invoked %d times, want 1", calls)
	}
	if got.RecordingID != "abc123" {
		t.Errorf("RecordingID = %q, want abc123", got.RecordingID)
	}
}

func TestHandle_NoCallbackWhenFiltersFail(t *testing.T) {
	calls := 0
	d := New(testConfig(), func(model.RecordingHandle) { calls++ })

	d.Handle(nil, &discordgo.MessageUpdate{Message: testMessage("999", "222", "Recording ended.")})

	if calls != 0 {
		t.Errorf("callback invoked %d times, want 0", calls)
	}
}

func TestHandle_NilMessageIsIgnored(t *testing.T) {
	calls := 0
	d := New(testConfig(), func(model.RecordingHandle) { calls++ })

	d.Handle(nil, &discordgo.MessageUpdate{Message: nil})

	if calls != 0 {
		t.Errorf("callback invoked %d times, want 0", calls)
	}
}
