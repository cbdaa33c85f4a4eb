package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
)

func TestIsVitalsMessage(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{message: testEnvelopeMessage, want: true},
		{message: "  " + testEnvelopeMessage + "\n", want: true},
		{message: "web vitals support started", want: false},
		{message: `{"event":"click"}`, want: false},
		{message: `EMBRACE_METRIC`, want: false},
		{message: "", want: false},
	}

	for _, tt := range tests {
		if got := IsVitalsMessage(tt.message); got != tt.want {
			t.Fatalf("IsVitalsMessage(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}

func TestTrackConsoleMessageUseCase(t *testing.T) {
	f := newDeliverFixture()
	uc := NewTrackConsoleMessageUseCase(f.uc, testLogger())

	if _, err := uc.Execute(context.Background(), "webview-1", "Uncaught TypeError: x is undefined"); !errors.Is(err, ErrNotAnEnvelope) {
		t.Fatalf("expected ErrNotAnEnvelope, got %v", err)
	}
	if f.repo.savedCount() != 0 {
		t.Fatal("ordinary console output must not be stored")
	}

	res, err := uc.Execute(context.Background(), "webview-1", testEnvelopeMessage)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Records != 2 {
		t.Fatalf("Records = %d, want 2", res.Records)
	}
	for _, r := range f.repo.saved {
		if r.Target() != valueobject.Android || r.Tag() != "webview-1" || r.PageID() != "webview-1" {
			t.Fatalf("unexpected record source: target=%s tag=%s page=%s", r.Target(), r.Tag(), r.PageID())
		}
	}

	_, err = uc.Execute(context.Background(), "webview-1", `{"key":"EMBRACE_METRIC"`)
	if !errors.Is(err, ErrInvalidEnvelope) {
		t.Fatalf("expected ErrInvalidEnvelope, got %v", err)
	}
}
