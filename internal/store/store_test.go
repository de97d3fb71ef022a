package store

import (
	"context"
	"testing"
	"time"

	"github.com/Pathwise-Labs/Elicit/internal/adaptive"
	"github.com/Pathwise-Labs/Elicit/internal/session"
	"github.com/Pathwise-Labs/Elicit/internal/vignette"
)

func memorySnapshot(id string) *session.Snapshot {
	return &session.Snapshot{
		SessionID:               id,
		Status:                  session.StatusActive,
		PosteriorMean:           vignette.Features{0.1, 0, 0, 0, 0, 0, -0.2},
		PosteriorCovariance:     adaptive.Identity(1.0),
		FisherInformationMatrix: adaptive.Matrix{},
	}
}

func TestMemoryStoreSessionLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.CreateSession(ctx, memorySnapshot("m1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateSession(ctx, memorySnapshot("m1")); err == nil {
		t.Fatal("expected duplicate create to fail")
	}

	got, err := s.GetSession(ctx, "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.SessionID != "m1" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	got.Status = session.StatusCompleted
	got.AdaptiveVignettesShownCount = 4
	if err := s.UpdateSession(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, err := s.GetSession(ctx, "m1")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if again.Status != session.StatusCompleted || again.AdaptiveVignettesShownCount != 4 {
		t.Errorf("update not visible: %+v", again)
	}

	if err := s.UpdateSession(ctx, memorySnapshot("ghost")); err == nil {
		t.Fatal("expected update of missing session to fail")
	}
	missing, err := s.GetSession(ctx, "ghost")
	if err != nil || missing != nil {
		t.Fatalf("missing session should be (nil, nil), got (%v, %v)", missing, err)
	}
}

func TestMemoryStoreCopiesSnapshots(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	snap := memorySnapshot("m2")
	snap.CompletedVignettes = []string{"static_begin_001"}
	if err := s.CreateSession(ctx, snap); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Mutating what the caller holds must not leak into the store.
	snap.CompletedVignettes[0] = "tampered"
	snap.PosteriorMean[0] = 99

	got, _ := s.GetSession(ctx, "m2")
	if got.CompletedVignettes[0] != "static_begin_001" {
		t.Error("stored completed list aliased caller slice")
	}
	if got.PosteriorMean[0] == 99 {
		t.Error("stored mean aliased caller value")
	}
}

func TestMemoryStoreChoices(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.AppendChoice(ctx, "nope", session.Choice{VignetteID: "v"}); err == nil {
		t.Fatal("expected append to missing session to fail")
	}

	if err := s.CreateSession(ctx, memorySnapshot("m3")); err != nil {
		t.Fatalf("create: %v", err)
	}
	base := time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		c := session.Choice{VignetteID: id, OptionID: "A", ChosenAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.AppendChoice(ctx, "m3", c); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	choices, err := s.ListChoices(ctx, "m3")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(choices) != 3 || choices[0].VignetteID != "a" || choices[2].VignetteID != "c" {
		t.Errorf("choice order wrong: %v", choices)
	}
}

func TestMemoryStoreListAndStats(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a := memorySnapshot("list-a")
	b := memorySnapshot("list-b")
	b.Status = session.StatusCompleted
	c := memorySnapshot("list-c")
	c.Status = session.StatusAbandoned
	for _, snap := range []*session.Snapshot{a, b, c} {
		if err := s.CreateSession(ctx, snap); err != nil {
			t.Fatalf("create %s: %v", snap.SessionID, err)
		}
	}

	active := session.StatusActive
	list, err := s.ListSessions(ctx, SessionFilter{Status: &active})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].SessionID != "list-a" {
		t.Errorf("expected only list-a active, got %v", list)
	}

	future := time.Now().UTC().Add(time.Hour)
	stale, err := s.ListSessions(ctx, SessionFilter{Status: &active, UpdatedBefore: &future})
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	if len(stale) != 1 {
		t.Errorf("expected one stale-eligible session, got %d", len(stale))
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalSessions != 3 || stats.ActiveSessions != 1 || stats.CompletedSessions != 1 || stats.AbandonedSessions != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
