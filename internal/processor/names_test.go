package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want [3]string
	}{
		{name: "first last", in: "Jamie Green", want: [3]string{"Green", "Jamie", ""}},
		{name: "first middle last", in: "Jamie Lee Ann Green", want: [3]string{"Green", "Jamie", "Lee Ann"}},
		{name: "comma form", in: "Green, Jamie Lee", want: [3]string{"Green", "Jamie", "Lee"}},
		{name: "single token", in: "Cher", want: [3]string{"Cher", "", ""}},
		{name: "blank", in: "   ", want: [3]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitName(tt.in))
		})
	}
}
