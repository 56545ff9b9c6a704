package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"board-service/internal/model"
)

func id(v uint16) *model.USBID {
	u := model.USBID(v)
	return &u
}

// Exhaustive over the known table: every entry must classify to its mapped
// kind.
func TestClassifyKnownPairs(t *testing.T) {
	for pair, want := range KnownPairs() {
		got := Classify(id(pair[0]), id(pair[1]))
		assert.Equal(t, want, got, "pair %04X:%04X", pair[0], pair[1])
	}
}

func TestClassifyUnknownPairs(t *testing.T) {
	tests := []struct {
		name string
		vid  *model.USBID
		pid  *model.USBID
	}{
		{"unlisted pair", id(0xDEAD), id(0xBEEF)},
		{"known vid, unlisted pid", id(0x0483), id(0x0001)},
		{"known pid, unlisted vid", id(0x1234), id(0x5740)},
		{"missing vid", nil, id(0x5740)},
		{"missing pid", id(0x0483), nil},
		{"missing both", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, model.BoardUnknown, Classify(tt.vid, tt.pid))
		})
	}
}
