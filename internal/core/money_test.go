package core

import "testing"

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"12.34", 12.34, false},
		{"12,34", 12.34, false},
		{"100", 100, false},
		{"0", 0, false},
		{".5", 0.5, false},
		{"", 0, true},
		{"-5", 0, true},
		{"+5", 0, true},
		{"1.2.3", 0, true},
		{"abc", 0, true},
		{"12e3", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{12.344, 12.34},
		{12.346, 12.35},
		{-7.128, -7.13},
		{0, 0},
		{1100.0, 1100.0},
	}

	for _, tt := range tests {
		got := Round2(tt.in)
		if got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
