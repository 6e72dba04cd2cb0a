package labels

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"patchlabel/internal/models"
)

// Strategy selects how a sample's label vector is obtained.
type Strategy int

const (
	// Presence derives labels from a mask, any occurrence counts.
	Presence Strategy = iota
	// Threshold derives labels from a mask, counts must exceed a pixel threshold.
	Threshold
	// IndexLookup reads labels from a sidecar index keyed by file id.
	IndexLookup
)

var strategyNames = map[Strategy]string{
	Presence:    "presence",
	Threshold:   "threshold",
	IndexLookup: "index",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// NeedsMask reports whether the strategy reads a mask.
func (s Strategy) NeedsMask() bool {
	return s == Presence || s == Threshold
}

// ParseStrategy converts a configuration name into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return 0, errors.Errorf("unknown label strategy %q (must be presence, threshold or index)", name)
}

// Labeler produces the label vector of one sample.
// mask is nil for strategies that do not need one.
type Labeler interface {
	Strategy() Strategy
	Label(id string, mask *models.Mask) (models.LabelVector, error)
}

// PresenceLabeler applies DerivePresence.
type PresenceLabeler struct{}

func (PresenceLabeler) Strategy() Strategy { return Presence }

func (PresenceLabeler) Label(id string, mask *models.Mask) (models.LabelVector, error) {
	if mask == nil {
		return models.LabelVector{}, errors.Errorf("presence labeling of %q needs a mask", id)
	}
	return DerivePresence(*mask)
}

// ThresholdLabeler applies DeriveThreshold with a fixed pixel threshold.
type ThresholdLabeler struct {
	Pixels int
}

func (ThresholdLabeler) Strategy() Strategy { return Threshold }

func (l ThresholdLabeler) Label(id string, mask *models.Mask) (models.LabelVector, error) {
	if mask == nil {
		return models.LabelVector{}, errors.Errorf("threshold labeling of %q needs a mask", id)
	}
	return DeriveThreshold(*mask, l.Pixels)
}

// IndexLabeler looks labels up in a sidecar index.
type IndexLabeler struct {
	Index *Index
}

func (IndexLabeler) Strategy() Strategy { return IndexLookup }

func (l IndexLabeler) Label(id string, _ *models.Mask) (models.LabelVector, error) {
	lv, ok := l.Index.Lookup(id)
	if !ok {
		return lv, errors.Errorf("no label recorded for %q", id)
	}
	return lv, nil
}

// NewLabeler builds the Labeler for a strategy.
// thresholdPixels is used only by Threshold; index only by IndexLookup.
func NewLabeler(s Strategy, thresholdPixels int, index *Index) (Labeler, error) {
	switch s {
	case Presence:
		return PresenceLabeler{}, nil
	case Threshold:
		if thresholdPixels < 0 {
			return nil, errors.Wrapf(ErrInvalidThreshold, "threshold must be non-negative, got %d", thresholdPixels)
		}
		return ThresholdLabeler{Pixels: thresholdPixels}, nil
	case IndexLookup:
		if index == nil {
			return nil, errors.New("index strategy needs a label index")
		}
		return IndexLabeler{Index: index}, nil
	}
	return nil, errors.Errorf("unknown label strategy %v", s)
}
