package utils

import (
	"math"
	"testing"
)

func TestRoundToLotSize(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		lotSize  float64
		expected float64
	}{
		{"round down", 0.123456, 0.001, 0.123},
		{"exact multiple", 1.99, 0.01, 1.99},
		{"whole lot", 100.5, 1.0, 100.0},
		{"zero lot size returns value", 0.12345, 0, 0.12345},
		{"negative lot size returns value", 0.12345, -1, 0.12345},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundToLotSize(tt.value, tt.lotSize)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("RoundToLotSize(%v, %v) = %v, expected %v", tt.value, tt.lotSize, got, tt.expected)
			}
		})
	}
}

func TestRoundToLotSizeUp(t *testing.T) {
	got := RoundToLotSizeUp(0.1001, 0.001)
	if math.Abs(got-0.101) > 1e-9 {
		t.Errorf("expected 0.101, got %v", got)
	}
}

func TestCalculateOrderSize(t *testing.T) {
	tests := []struct {
		name         string
		freeBalance  float64
		percent      float64
		leverage     int
		price        float64
		minOrderSize float64
		expected     float64
	}{
		{
			// (1000 × 0.1 × 5) / 50000 = 0.01
			name:        "basic sizing",
			freeBalance: 1000, percent: 0.1, leverage: 5, price: 50000, minOrderSize: 0.001,
			expected: 0.01,
		},
		{
			// результат меньше минимума - поднимаем до минимума
			name:        "clamped to min order size",
			freeBalance: 10, percent: 0.1, leverage: 1, price: 50000, minOrderSize: 0.001,
			expected: 0.001,
		},
		{
			name:        "zero balance",
			freeBalance: 0, percent: 0.1, leverage: 5, price: 50000, minOrderSize: 0.001,
			expected: 0,
		},
		{
			name:        "zero price",
			freeBalance: 1000, percent: 0.1, leverage: 5, price: 0, minOrderSize: 0.001,
			expected: 0,
		},
		{
			// плечо < 1 трактуется как 1
			name:        "leverage below one",
			freeBalance: 1000, percent: 0.5, leverage: 0, price: 100, minOrderSize: 0.01,
			expected: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateOrderSize(tt.freeBalance, tt.percent, tt.leverage, tt.price, tt.minOrderSize)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestCalculatePNL(t *testing.T) {
	tests := []struct {
		name     string
		side     string
		entry    float64
		current  float64
		qty      float64
		expected float64
	}{
		{"long profit", "long", 100, 110, 2, 20},
		{"long loss", "long", 100, 90, 2, -20},
		{"short profit", "short", 100, 90, 2, 20},
		{"short loss", "short", 100, 110, 2, -20},
		{"zero quantity", "long", 100, 110, 0, 0},
		{"unknown side", "sideways", 100, 110, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculatePNL(tt.side, tt.entry, tt.current, tt.qty)
			if got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 10); got != 5 {
		t.Errorf("expected 5, got %v", got)
	}
	if got := Clamp(-1, 0, 10); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if got := Clamp(11, 0, 10); got != 10 {
		t.Errorf("expected 10, got %v", got)
	}
}

func TestClampInt(t *testing.T) {
	if got := ClampInt(20, 1, 10); got != 10 {
		t.Errorf("expected 10, got %v", got)
	}
	if got := ClampInt(0, 1, 10); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
}
