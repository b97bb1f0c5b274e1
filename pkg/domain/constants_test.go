package domain

import (
	"math"
	"testing"
)

func TestFloatEquals(t *testing.T) {
	if !FloatEquals(1.0, 1.0+Epsilon/2) {
		t.Error("values within epsilon must compare equal")
	}
	if FloatEquals(1.0, 1.1) {
		t.Error("distinct values must not compare equal")
	}
}

func TestIsZeroAndIsPositive(t *testing.T) {
	if !IsZero(0) || !IsZero(Epsilon / 2) {
		t.Error("near-zero values must report zero")
	}
	if IsZero(0.1) {
		t.Error("0.1 is not zero")
	}
	if !IsPositive(0.1) {
		t.Error("0.1 is positive")
	}
	if IsPositive(0) || IsPositive(-1) {
		t.Error("zero and negatives are not positive")
	}
}

func TestSanitizeValue(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"nan", math.NaN(), MaxSafeDistance},
		{"positive inf", math.Inf(1), MaxSafeDistance},
		{"negative inf", math.Inf(-1), MaxSafeDistance},
		{"negative", -42, 0},
		{"too large", 2e6, MaxSafeDistance},
		{"normal", 123.4, 123.4},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeValue(tt.in); got != tt.want {
				t.Errorf("SanitizeValue(%f) = %f, want %f", tt.in, got, tt.want)
			}
		})
	}
}
