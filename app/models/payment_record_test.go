package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmountFromMinorUnits(t *testing.T) {
	tests := []struct {
		minor int64
		want  string
	}{
		{0, "0"},
		{100, "1"},
		{3900, "39"},
		{5467, "54.67"},
		{-2433, "-24.33"},
		{1, "0.01"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AmountFromMinorUnits(tt.minor).String())
	}
}
