package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/plantdoc/internal/db"
	"github.com/vbonduro/plantdoc/internal/diagnosis"
	"github.com/vbonduro/plantdoc/internal/domain"
	"github.com/vbonduro/plantdoc/internal/photostore"
	"github.com/vbonduro/plantdoc/internal/session"
	"github.com/vbonduro/plantdoc/internal/store"
	"github.com/vbonduro/plantdoc/internal/vision"
)

// stubGateway answers every role with a fixed reply. When gate is set,
// Generate waits for it to close after signalling started.
type stubGateway struct {
	replies map[vision.RoleName]string
	err     error
	started chan struct{}
	gate    chan struct{}
}

func newStubGateway() *stubGateway {
	return &stubGateway{replies: map[vision.RoleName]string{
		vision.RoleIdentification: "Tomato",
		vision.RoleTriage:         "[ANALYSIS]: Leaf spot.\n[QUESTIONS]: How often do you water? | Is it outdoors?",
		vision.RoleFinalReport:    "Early blight. Remove affected leaves.",
		vision.RoleFollowUp:       "Water in the morning.",
	}}
}

func (g *stubGateway) Name() string { return "stub" }

func (g *stubGateway) Generate(ctx context.Context, role vision.RoleName, _ vision.Request) (string, error) {
	if g.gate != nil {
		close(g.started)
		select {
		case <-g.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if g.err != nil {
		return "", g.err
	}
	return g.replies[role], nil
}

func (g *stubGateway) Stream(_ context.Context, role vision.RoleName, _ vision.Request) (<-chan vision.Chunk, error) {
	if g.err != nil {
		return nil, g.err
	}
	ch := make(chan vision.Chunk, 2)
	ch <- vision.Chunk{Text: g.replies[role][:6]}
	ch <- vision.Chunk{Text: g.replies[role][6:]}
	close(ch)
	return ch, nil
}

// stubPhotoStore is a minimal in-memory photostore.PhotoStore for tests.
type stubPhotoStore struct {
	saved   map[string][]byte
	saveErr error
}

func newStubPhotoStore() *stubPhotoStore {
	return &stubPhotoStore{saved: make(map[string][]byte)}
}

func (s *stubPhotoStore) Save(_ context.Context, prefix, _ string, r io.Reader) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	data, _ := io.ReadAll(r)
	key := prefix + "/photo.jpg"
	s.saved[key] = data
	return key, nil
}

func (s *stubPhotoStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	data, ok := s.saved[key]
	if !ok {
		return nil, "", photostore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), "image/jpeg", nil
}

func (s *stubPhotoStore) Delete(_ context.Context, key string) error {
	delete(s.saved, key)
	return nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

type fixture struct {
	svc    *ConversationService
	gw     *stubGateway
	photos *stubPhotoStore
	slot   *session.Slot
}

func newFixture(t *testing.T, archive bool) *fixture {
	t.Helper()
	gw := newStubGateway()
	machine := diagnosis.NewMachine(gw, diagnosis.ConfirmStrict, slog.Default())

	f := &fixture{gw: gw, slot: session.NewSlot("client-1")}
	if !archive {
		f.svc = NewConversationService(machine, nil, nil, slog.Default())
		return f
	}

	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	f.photos = newStubPhotoStore()
	f.svc = NewConversationService(machine, store.NewReportStore(d), f.photos, slog.Default())
	return f
}

func (f *fixture) complete(t *testing.T) *Turn {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.UploadImage(ctx, f.slot, testPNG(t), "image/png")
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, f.slot, "yes")
	require.NoError(t, err)
	turn, err := f.svc.SendMessage(ctx, f.slot, "Every day, outdoors")
	require.NoError(t, err)
	return turn
}

func TestConversationServiceUploadImage(t *testing.T) {
	f := newFixture(t, false)

	turn, err := f.svc.UploadImage(context.Background(), f.slot, testPNG(t), "image/png")
	require.NoError(t, err)
	require.NoError(t, turn.Err)
	assert.Equal(t, domain.StageAwaitingConfirmation, turn.Stage)
	assert.Equal(t, "Tomato", turn.PlantName)
	require.Len(t, turn.Messages, 1)
	assert.Empty(t, turn.Notice)
	assert.Zero(t, turn.ResetAfter)

	snap := f.svc.Snapshot(f.slot)
	assert.Equal(t, domain.StageAwaitingConfirmation, snap.Stage)
	assert.Len(t, snap.Transcript, 1)
}

func TestConversationServiceDenialResetsWithDelay(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.UploadImage(ctx, f.slot, testPNG(t), "image/png")
	require.NoError(t, err)

	turn, err := f.svc.SendMessage(ctx, f.slot, "no")
	require.NoError(t, err)
	assert.True(t, turn.Reset)
	assert.Equal(t, ResetAfter, turn.ResetAfter)
	assert.Equal(t, domain.StageInitial, turn.Stage)
	assert.Equal(t, domain.NewSession(), f.svc.Snapshot(f.slot))
}

func TestConversationServiceTextBeforeImage(t *testing.T) {
	f := newFixture(t, false)

	turn, err := f.svc.SendMessage(context.Background(), f.slot, "hello")
	require.NoError(t, err)
	assert.ErrorIs(t, turn.Err, diagnosis.ErrInvalidTurn)
	assert.NotEmpty(t, turn.Notice)
	assert.Equal(t, domain.StageInitial, turn.Stage)
}

func TestConversationServiceGatewayErrorKeepsStage(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.UploadImage(ctx, f.slot, testPNG(t), "image/png")
	require.NoError(t, err)

	f.gw.err = vision.NewServiceError("stub", vision.KindNetwork, errors.New("offline"))
	turn, err := f.svc.SendMessage(ctx, f.slot, "yes")
	require.NoError(t, err)
	require.Error(t, turn.Err)
	assert.Contains(t, turn.Notice, "offline")
	assert.False(t, turn.Reset)
	assert.Equal(t, domain.StageAwaitingConfirmation, f.svc.Snapshot(f.slot).Stage)
}

func TestConversationServiceRejectsOverlappingTurns(t *testing.T) {
	f := newFixture(t, false)
	f.gw.started = make(chan struct{})
	f.gw.gate = make(chan struct{})

	done := make(chan *Turn, 1)
	go func() {
		turn, err := f.svc.UploadImage(context.Background(), f.slot, testPNG(t), "image/png")
		assert.NoError(t, err)
		done <- turn
	}()

	<-f.gw.started
	_, err := f.svc.SendMessage(context.Background(), f.slot, "yes")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = f.svc.NewConversation(context.Background(), f.slot)
	assert.ErrorIs(t, err, ErrBusy)

	close(f.gw.gate)
	select {
	case turn := <-done:
		assert.Equal(t, domain.StageAwaitingConfirmation, turn.Stage)
	case <-time.After(5 * time.Second):
		t.Fatal("first turn never finished")
	}

	f.gw.gate = nil
	turn, err := f.svc.SendMessage(context.Background(), f.slot, "yes")
	require.NoError(t, err)
	assert.Equal(t, domain.StageAwaitingEnvironmentalInfo, turn.Stage)
}

func TestConversationServicePublishesEvents(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	events, cancel := f.slot.Hub.Subscribe(32)
	defer cancel()

	turn := f.complete(t)
	require.True(t, turn.Completed)

	var types []session.EventType
	var chunks []string
	for len(events) > 0 {
		ev := <-events
		types = append(types, ev.Type)
		if ev.Type == session.EventChunk {
			chunks = append(chunks, ev.Text)
		}
	}
	assert.Equal(t, []session.EventType{
		session.EventAssistantMessage,
		session.EventUserMessage, session.EventAssistantMessage,
		session.EventChunk, session.EventChunk, session.EventUserMessage, session.EventAssistantMessage,
	}, types)
	assert.Equal(t, "Early blight. Remove affected leaves.", chunks[0]+chunks[1])

	_, err := f.svc.NewConversation(ctx, f.slot)
	require.NoError(t, err)
	assert.Equal(t, session.EventReset, (<-events).Type)
}

func TestConversationServiceRejectedTextPublishesNoMessage(t *testing.T) {
	f := newFixture(t, false)
	events, cancel := f.slot.Hub.Subscribe(8)
	defer cancel()

	turn, err := f.svc.SendMessage(context.Background(), f.slot, "is my plant sick?")
	require.NoError(t, err)
	require.ErrorIs(t, turn.Err, diagnosis.ErrInvalidTurn)

	require.Len(t, events, 1)
	ev := <-events
	assert.Equal(t, session.EventError, ev.Type)
	assert.Nil(t, ev.Message)
	assert.Empty(t, f.svc.Snapshot(f.slot).Transcript)
}

func TestConversationServiceArchivesCompletedReport(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	turn := f.complete(t)
	require.NoError(t, turn.Err)
	assert.Equal(t, domain.StageFollowUpChat, turn.Stage)
	require.NotZero(t, turn.ReportID)

	r, err := f.svc.GetReport(ctx, turn.ReportID)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "client-1", r.ClientID)
	assert.Equal(t, "Tomato", r.PlantName)
	assert.Equal(t, "Leaf spot.", r.Findings)
	assert.Equal(t, []string{"How often do you water?", "Is it outdoors?"}, r.Questions)
	assert.Equal(t, "Every day, outdoors", r.Answers)
	assert.Equal(t, "Early blight. Remove affected leaves.", r.Report)
	assert.Equal(t, "report/photo.jpg", r.PhotoKey)

	photo, mimeType, err := f.svc.ReportPhoto(ctx, turn.ReportID)
	require.NoError(t, err)
	defer photo.Close()
	assert.Equal(t, "image/jpeg", mimeType)

	reports, err := f.svc.ListReports(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	// Follow-up turns never archive again.
	next, err := f.svc.SendMessage(ctx, f.slot, "When should I water?")
	require.NoError(t, err)
	assert.Zero(t, next.ReportID)
	reports, err = f.svc.ListReports(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestConversationServiceArchivePhotoFailureStillRecords(t *testing.T) {
	f := newFixture(t, true)
	f.photos.saveErr = errors.New("disk full")

	turn := f.complete(t)
	require.NoError(t, turn.Err)
	require.NotZero(t, turn.ReportID)

	r, err := f.svc.GetReport(context.Background(), turn.ReportID)
	require.NoError(t, err)
	assert.Empty(t, r.PhotoKey)

	_, _, err = f.svc.ReportPhoto(context.Background(), turn.ReportID)
	assert.ErrorIs(t, err, photostore.ErrNotFound)
}

func TestConversationServiceWithoutArchive(t *testing.T) {
	f := newFixture(t, false)

	turn := f.complete(t)
	assert.True(t, turn.Completed)
	assert.Zero(t, turn.ReportID)

	_, err := f.svc.ListReports(context.Background(), 0)
	assert.ErrorIs(t, err, ErrArchiveDisabled)
	_, err = f.svc.GetReport(context.Background(), 1)
	assert.ErrorIs(t, err, ErrArchiveDisabled)
}
