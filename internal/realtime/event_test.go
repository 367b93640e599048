package realtime

import (
	"testing"
	"time"

	"taskdeck/api/internal/store"
)

func TestMarshalParseRoundTrip(t *testing.T) {
	edited := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	in := Event{
		Type:     EventUpdate,
		ThreadID: "tsk_1",
		New: &store.Comment{
			ID:        "cmt_1",
			ThreadID:  "tsk_1",
			AuthorID:  "usr_alice",
			Content:   "revised",
			CreatedAt: edited.Add(-time.Hour),
			UpdatedAt: &edited,
		},
	}

	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := ParseEvent(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if out.Type != EventUpdate || out.ThreadID != "tsk_1" {
		t.Fatalf("envelope = %+v", out)
	}
	if out.New == nil || out.New.ID != "cmt_1" || out.New.Content != "revised" {
		t.Fatalf("row = %+v", out.New)
	}
	if out.New.UpdatedAt == nil || !out.New.UpdatedAt.Equal(edited) {
		t.Fatalf("updated_at = %v, want %v", out.New.UpdatedAt, edited)
	}
}

func TestParseEventRejectsMalformedPayloads(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"not json", `{{`},
		{"missing thread id", `{"type":"insert","new":{"id":"cmt_1","thread_id":"tsk_1"}}`},
		{"unknown type", `{"type":"upsert","thread_id":"tsk_1","new":{"id":"cmt_1","thread_id":"tsk_1"}}`},
		{"insert without row", `{"type":"insert","thread_id":"tsk_1"}`},
		{"insert without row id", `{"type":"insert","thread_id":"tsk_1","new":{"thread_id":"tsk_1"}}`},
		{"row thread mismatch", `{"type":"insert","thread_id":"tsk_1","new":{"id":"cmt_1","thread_id":"tsk_2"}}`},
		{"delete without old row", `{"type":"delete","thread_id":"tsk_1"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseEvent([]byte(tc.payload)); err == nil {
				t.Fatalf("payload %q should be rejected", tc.payload)
			}
		})
	}
}

func TestParseEventDelete(t *testing.T) {
	payload := `{"type":"delete","thread_id":"tsk_1","old":{"id":"cmt_1","thread_id":"tsk_1","author_id":"usr_alice"}}`
	ev, err := ParseEvent([]byte(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Type != EventDelete || ev.Old == nil || ev.Old.ID != "cmt_1" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestChannelFor(t *testing.T) {
	if got := ChannelFor("tsk_42"); got != "comments.tsk_42" {
		t.Fatalf("ChannelFor = %q", got)
	}
}
