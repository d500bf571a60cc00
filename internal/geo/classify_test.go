package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		isWithin bool
		edgeKM   float64
		expected string
	}{
		{
			name:     "inside: within district",
			isWithin: true,
			edgeKM:   0.0,
			expected: ClassInside,
		},
		{
			name:     "inside: edge distance ignored",
			isWithin: true,
			edgeKM:   50.0,
			expected: ClassInside,
		},
		{
			name:     "border: outside, close to boundary",
			isWithin: false,
			edgeKM:   2.0,
			expected: ClassBorder,
		},
		{
			name:     "border: outside, at threshold",
			isWithin: false,
			edgeKM:   5.0,
			expected: ClassBorder,
		},
		{
			name:     "outside: barely past threshold",
			isWithin: false,
			edgeKM:   5.1,
			expected: ClassOutside,
		},
		{
			name:     "outside: far from boundary",
			isWithin: false,
			edgeKM:   120.0,
			expected: ClassOutside,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.isWithin, tt.edgeKM))
		})
	}
}
