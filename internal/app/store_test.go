package app

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"bigbrain-client/internal/domain"
	"bigbrain-client/internal/infra/memory"
)

func TestPlayerStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewStore()
	store := NewPlayerStore(kv)

	if _, err := store.CurrentPlayer(ctx); !errors.Is(err, domain.ErrPlayerNotJoined) {
		t.Fatalf("expected not joined, got %v", err)
	}
	fresh, err := store.Load(ctx, "p9")
	if err != nil || fresh.State != domain.StateWaiting || fresh.Score != 0 {
		t.Fatalf("expected fresh waiting session, got %+v %v", fresh, err)
	}

	ps := domain.PlayerSession{
		PlayerID:       "p9",
		SessionID:      "123",
		Name:           "Alice",
		Score:          15,
		State:          domain.StateAnswered,
		QuestionID:     "q3",
		Revealed:       true,
		Correct:        true,
		CorrectAnswers: []string{"Paris"},
	}
	if err := store.Save(ctx, ps); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx, "p9")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, ps) {
		t.Fatalf("expected %+v, got %+v", ps, got)
	}
	if id, err := store.CurrentPlayer(ctx); err != nil || id != "p9" {
		t.Fatalf("expected current player p9, got %q %v", id, err)
	}
	if v, _, _ := kv.Get(ctx, "totalScore_p9"); v != "15" {
		t.Fatalf("expected score stored as text, got %q", v)
	}
}

func TestPlayerStoreSubmissions(t *testing.T) {
	ctx := context.Background()
	store := NewPlayerStore(memory.NewStore())

	if _, ok, err := store.Submission(ctx, "p1", "q1"); ok || err != nil {
		t.Fatalf("expected no submission, got %v %v", ok, err)
	}
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	sub := domain.Submission{QuestionID: "q1", Answers: []string{"A"}, SelectedAt: at, Submitted: true, SubmittedAt: at}
	if err := store.SaveSubmission(ctx, "p1", sub); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.Submission(ctx, "p1", "q1")
	if err != nil || !ok || !got.Submitted || got.Answers[0] != "A" || !got.SelectedAt.Equal(at) {
		t.Fatalf("unexpected submission %+v %v %v", got, ok, err)
	}
	if _, ok, _ := store.Submission(ctx, "p1", "q2"); ok {
		t.Fatalf("submissions must be keyed per question")
	}
}

func TestPlayerStoreRejectsCorruptScore(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewStore()
	_ = kv.Set(ctx, "totalScore_p1", "lots")
	if _, err := NewPlayerStore(kv).Load(ctx, "p1"); err == nil {
		t.Fatalf("expected parse error for corrupt score")
	}
}

func TestBroadcasterDropsOldestAndCloses(t *testing.T) {
	b := newBroadcaster(0)
	ch, cancel := b.subscribe()
	defer cancel()

	for i := 1; i <= 20; i++ {
		b.publish(i)
	}
	var last int
	for i := 0; i < 8; i++ {
		last = <-ch
	}
	if last != 20 {
		t.Fatalf("expected newest value 20, got %d", last)
	}

	b.closeAll()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed")
	}

	late, cancelLate := b.subscribe()
	defer cancelLate()
	if v := <-late; v != 20 {
		t.Fatalf("late subscriber should see last value, got %d", v)
	}
	if _, ok := <-late; ok {
		t.Fatalf("late subscriber channel should be closed")
	}
}
