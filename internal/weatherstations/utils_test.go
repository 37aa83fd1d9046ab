package weatherstations

import (
	"math"
	"testing"
)

func TestCalculateWindChill(t *testing.T) {
	tests := []struct {
		name        string
		temp, speed float32
		want        float32
	}{
		{"too warm", 60, 20, 60},
		{"too calm", 30, 2, 30},
		{"cold and windy", 30, 20, 17.36},
		{"freezing gale", 0, 40, -28.77},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateWindChill(tt.temp, tt.speed)
			if math.Abs(float64(got-tt.want)) > 0.1 {
				t.Errorf("CalculateWindChill(%g, %g) = %g, want %g", tt.temp, tt.speed, got, tt.want)
			}
		})
	}
}

func TestCalculateHeatIndex(t *testing.T) {
	tests := []struct {
		name           string
		temp, humidity float32
		want           float32
	}{
		{"below threshold", 75, 90, 75},
		{"hot and humid", 90, 70, 105.9},
		{"hot and dry", 100, 15, 96.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateHeatIndex(tt.temp, tt.humidity)
			if math.Abs(float64(got-tt.want)) > 0.5 {
				t.Errorf("CalculateHeatIndex(%g, %g) = %g, want %g", tt.temp, tt.humidity, got, tt.want)
			}
		})
	}
}
