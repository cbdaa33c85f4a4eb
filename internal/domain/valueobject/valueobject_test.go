package valueobject

import (
	"errors"
	"testing"
	"time"
)

func TestKindFromEntryType(t *testing.T) {
	tests := []struct {
		entryType string
		want      MetricKind
		wantErr   bool
	}{
		{entryType: "paint", want: FCP},
		{entryType: "largest-contentful-paint", want: LCP},
		{entryType: "layout-shift", want: CLS},
		{entryType: "first-input", want: FID},
		{entryType: "navigation", want: KindUnknown, wantErr: true},
		{entryType: "", want: KindUnknown, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.entryType, func(t *testing.T) {
			got, err := KindFromEntryType(tt.entryType)
			if (err != nil) != tt.wantErr {
				t.Fatalf("KindFromEntryType() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("KindFromEntryType() = %q, want %q", got, tt.want)
			}
			if err != nil {
				var unmapped *UnmappedEntryTypeError
				if !errors.As(err, &unmapped) || unmapped.EntryType != tt.entryType {
					t.Fatalf("unexpected error type: %v", err)
				}
			}
		})
	}
}

func TestMetricKindRoundTrip(t *testing.T) {
	for _, kind := range AllMetricKinds() {
		got, err := KindFromEntryType(kind.EntryType())
		if err != nil || got != kind {
			t.Fatalf("kind %q does not round-trip through %q", kind, kind.EntryType())
		}
	}
	if MetricKind("TTFB").Validate() == nil {
		t.Fatal("expected TTFB to be invalid")
	}
	if CLS.Unit() != "score" || LCP.Unit() != "ms" {
		t.Fatal("unexpected units")
	}
}

func TestDeliveryTargetValidate(t *testing.T) {
	for _, target := range []DeliveryTarget{ReactNative, Android, IOS, Default} {
		if err := target.Validate(); err != nil {
			t.Fatalf("%q: unexpected error %v", target, err)
		}
	}
	if !errors.Is(DeliveryTarget("WINDOWS").Validate(), ErrInvalidDeliveryTarget) {
		t.Fatal("expected ErrInvalidDeliveryTarget")
	}
}

func TestTimeRange(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tr, err := NewTimeRangeFromDuration(now, time.Hour)
	if err != nil {
		t.Fatalf("NewTimeRangeFromDuration() error = %v", err)
	}
	if tr.Duration() != time.Hour {
		t.Fatalf("Duration() = %v, want 1h", tr.Duration())
	}
	if !tr.Contains(now) || !tr.Contains(now.Add(-time.Hour)) {
		t.Fatal("bounds must be inclusive")
	}
	if tr.Contains(now.Add(time.Nanosecond)) {
		t.Fatal("time after end must not be contained")
	}

	if _, err := NewTimeRangeFromDuration(now, 0); err == nil {
		t.Fatal("expected error for zero duration")
	}
	if _, err := NewTimeRange(now, now.Add(-time.Minute)); err == nil {
		t.Fatal("expected error for inverted range")
	}
	if _, err := NewTimeRange(time.Time{}, now); err == nil {
		t.Fatal("expected error for zero start")
	}
}
