package valueobject

import (
	"errors"
	"fmt"
)

// MetricKind представляет тип web vital метрики (Value Object)
type MetricKind string

const (
	FCP MetricKind = "FCP"
	LCP MetricKind = "LCP"
	CLS MetricKind = "CLS"
	FID MetricKind = "FID"

	// KindUnknown is returned for entry types outside the fixed vocabulary.
	KindUnknown MetricKind = ""
)

// Entry types reported by the performance timeline.
const (
	EntryTypePaint                  = "paint"
	EntryTypeLargestContentfulPaint = "largest-contentful-paint"
	EntryTypeLayoutShift            = "layout-shift"
	EntryTypeFirstInput             = "first-input"
)

var ErrInvalidMetricKind = errors.New("invalid metric kind")

// UnmappedEntryTypeError reports an entry type with no MetricKind.
type UnmappedEntryTypeError struct {
	EntryType string
}

func (e *UnmappedEntryTypeError) Error() string {
	return fmt.Sprintf("unmapped entry type %q", e.EntryType)
}

// KindFromEntryType maps a timeline entry type to its metric kind
func KindFromEntryType(entryType string) (MetricKind, error) {
	switch entryType {
	case EntryTypePaint:
		return FCP, nil
	case EntryTypeLargestContentfulPaint:
		return LCP, nil
	case EntryTypeLayoutShift:
		return CLS, nil
	case EntryTypeFirstInput:
		return FID, nil
	default:
		return KindUnknown, &UnmappedEntryTypeError{EntryType: entryType}
	}
}

// Validate проверяет валидность типа метрики
func (k MetricKind) Validate() error {
	switch k {
	case FCP, LCP, CLS, FID:
		return nil
	default:
		return ErrInvalidMetricKind
	}
}

// EntryType возвращает тип записи timeline для метрики
func (k MetricKind) EntryType() string {
	switch k {
	case FCP:
		return EntryTypePaint
	case LCP:
		return EntryTypeLargestContentfulPaint
	case CLS:
		return EntryTypeLayoutShift
	case FID:
		return EntryTypeFirstInput
	default:
		return ""
	}
}

// Unit returns the unit the metric value is expressed in.
func (k MetricKind) Unit() string {
	if k == CLS {
		return "score"
	}
	return "ms"
}

func (k MetricKind) String() string {
	return string(k)
}

// AllMetricKinds возвращает список всех допустимых типов метрик
func AllMetricKinds() []MetricKind {
	return []MetricKind{FCP, LCP, CLS, FID}
}
