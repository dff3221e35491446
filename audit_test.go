package tripAuth

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type captureSink struct {
	events chan AuditEvent
}

func newCaptureSink(buffer int) *captureSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &captureSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *captureSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func buildAuditTestEngine(t *testing.T, sink AuditSink) *testEngine {
	t.Helper()
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 32
	cfg.Audit.DropIfFull = false

	mr, rdb := newTestRedis(t)
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	mp := newMemberProvider(t, Member{Username: "alice", Role: RoleUser, Verified: true})
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithMemberProvider(mp).
		WithClock(clock.Now).
		WithAuditSink(sink).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		mr.Close()
	})
	return &testEngine{engine: engine, mr: mr, clock: clock, members: mp}
}

func collectEvents(sink *captureSink, max int) []AuditEvent {
	events := make([]AuditEvent, 0, max)
	timeout := time.After(2 * time.Second)
	for len(events) < max {
		select {
		case ev := <-sink.events:
			events = append(events, ev)
		case <-timeout:
			return events
		}
	}
	return events
}

func TestAuditLoginFailureCarriesIPAndCode(t *testing.T) {
	sink := newCaptureSink(8)
	te := buildAuditTestEngine(t, sink)

	ctx := WithClientIP(context.Background(), "198.51.100.33")
	_, _ = te.engine.Login(ctx, "alice", "super-secret-password")

	events := collectEvents(sink, 1)
	if len(events) != 1 {
		t.Fatal("expected audit event to be received")
	}
	ev := events[0]
	if ev.EventType != auditEventLoginFailure {
		t.Fatalf("expected %s, got %s", auditEventLoginFailure, ev.EventType)
	}
	if ev.IP != "198.51.100.33" {
		t.Fatalf("expected IP 198.51.100.33, got %q", ev.IP)
	}
	if ev.Error != string(auditErrInvalidCredentials) {
		t.Fatalf("expected invalid_credentials, got %q", ev.Error)
	}
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	sink := newCaptureSink(32)
	te := buildAuditTestEngine(t, sink)
	ctx := context.Background()

	res, err := te.engine.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	te.clock.Advance(6 * 24 * time.Hour)
	refreshed, err := te.engine.Refresh(ctx, res.AccessToken, res.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if err := te.engine.Logout(ctx, refreshed.AccessToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	needles := []string{
		testPassword,
		res.AccessToken,
		res.RefreshToken,
		refreshed.AccessToken,
		refreshed.RefreshToken,
		te.members.members["alice"].PasswordHash,
	}

	events := collectEvents(sink, 3)
	if len(events) != 3 {
		t.Fatalf("expected 3 audit events, got %d", len(events))
	}
	for _, ev := range events {
		for _, needle := range needles {
			if needle == "" {
				continue
			}
			if strings.Contains(ev.Error, needle) || strings.Contains(ev.TokenID, needle) {
				t.Fatalf("sensitive value leaked in %s event", ev.EventType)
			}
			for k, v := range ev.Metadata {
				if strings.Contains(k, needle) || strings.Contains(v, needle) {
					t.Fatalf("sensitive value leaked in %s metadata", ev.EventType)
				}
			}
		}
	}
	if events[1].Metadata["refresh_renewed"] != "true" {
		t.Fatalf("expected refresh event to record renewal, got %+v", events[1].Metadata)
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventLoginSuccess,
		Username:  "alice",
		IP:        "127.0.0.1",
		Success:   true,
	})

	if !buf.Contains("login_success") {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains(`"username":"alice"`) {
		t.Fatal("expected JSON log line to contain username")
	}
}

func TestAuditLogrusSinkLevels(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := NewLogrusSink(logger)

	sink.Emit(context.Background(), AuditEvent{EventType: auditEventLogout, Username: "alice", Success: true})
	sink.Emit(context.Background(), AuditEvent{
		EventType: auditEventAuthRejected,
		Username:  "bob",
		Error:     string(auditErrTokenRevoked),
		Metadata:  map[string]string{"path": "/api/v1/member/me"},
	})

	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != logrus.InfoLevel || entries[0].Data["username"] != "alice" {
		t.Fatalf("unexpected success entry: %+v", entries[0])
	}
	if entries[1].Level != logrus.WarnLevel {
		t.Fatalf("expected warn level for failure, got %s", entries[1].Level)
	}
	if entries[1].Data["error_code"] != "token_revoked" || entries[1].Data["meta_path"] != "/api/v1/member/me" {
		t.Fatalf("unexpected failure fields: %+v", entries[1].Data)
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	cases := map[error]AuditErrorCode{
		nil:                    "",
		ErrInvalidCredentials:  auditErrInvalidCredentials,
		ErrLoginRateLimited:    auditErrRateLimited,
		ErrTokenExpired:        auditErrTokenExpired,
		ErrRegistryMismatch:    auditErrRegistryMismatch,
		ErrRegistryUnavailable: auditErrRegistryUnavailable,
		ErrAccountPurged:       auditErrAccountPurged,
		bytes.ErrTooLarge:      auditErrInternal,
	}
	for err, want := range cases {
		if got := auditErrorCode(err); got != want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", err, got, want)
		}
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Contains(v string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(b.buf.String(), v)
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(context.Context, AuditEvent) { <-s.release }

func TestAuditDropsAreCountedPerEvent(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 1
	cfg.Audit.DropIfFull = true

	mr, rdb := newTestRedis(t)
	sink := &blockingSink{release: make(chan struct{})}
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithMemberProvider(newMemberProvider(t, Member{Username: "alice", Role: RoleUser, Verified: true})).
		WithAuditSink(sink).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		close(sink.release)
		engine.Close()
		mr.Close()
	})

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, _ = engine.Login(ctx, "alice", "wrong-password-000")
	}

	// at most one event sits in the sink and one in the queue
	drops := engine.AuditDroppedByEvent()
	if drops["login_failure"] < 2 {
		t.Fatalf("expected login_failure drops, got %v", drops)
	}
	if engine.AuditDropped() != drops["login_failure"] {
		t.Fatalf("total %d does not match per-event counts %v", engine.AuditDropped(), drops)
	}
}

func TestAuditDropAccessorsWithoutAudit(t *testing.T) {
	te := newTestEngine(t, testConfig())
	if te.engine.AuditDropped() != 0 || len(te.engine.AuditDroppedByEvent()) != 0 {
		t.Fatal("expected no drops without an audit dispatcher")
	}
}
