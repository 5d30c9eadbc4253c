package nobo

import (
	"errors"
	"math"
	"testing"
)

func TestParseTemperature(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    float64
		wantNaN bool
		wantErr bool
	}{
		{name: "decimal", line: "Y02 186170024143 21.875", want: 21.875},
		{name: "integer", line: "Y02 186170024143 19", want: 19},
		{name: "negative", line: "Y02 186170024143 -3.5", want: -3.5},
		{name: "not available", line: "Y02 186170024143 N/A", wantNaN: true},
		{name: "garbage value", line: "Y02 186170024143 warm", wantErr: true},
		{name: "NaN spelled out", line: "Y02 186170024143 NaN", wantErr: true},
		{name: "infinity", line: "Y02 186170024143 Inf", wantErr: true},
		{name: "exponent", line: "Y02 186170024143 1e3", wantErr: true},
		{name: "hex float", line: "Y02 186170024143 0x1p3", wantErr: true},
		{name: "leading plus", line: "Y02 186170024143 +21.5", wantErr: true},
		{name: "trailing point", line: "Y02 186170024143 21.", wantErr: true},
		{name: "bare point", line: "Y02 186170024143 .5", wantErr: true},
		{name: "underscore digits", line: "Y02 186170024143 2_1", wantErr: true},
		{name: "bad serial", line: "Y02 1861700 21.5", wantErr: true},
		{name: "missing value", line: "Y02 186170024143", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTemperature(tt.line)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidData) {
					t.Errorf("ParseTemperature() error = %v, want ErrInvalidData", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTemperature() error: %v", err)
			}
			if got.Serial != "186170024143" {
				t.Errorf("Serial = %q", got.Serial)
			}
			if tt.wantNaN {
				if !math.IsNaN(got.Celsius) {
					t.Errorf("Celsius = %v, want NaN", got.Celsius)
				}
				return
			}
			if got.Celsius != tt.want {
				t.Errorf("Celsius = %v, want %v", got.Celsius, tt.want)
			}
		})
	}
}
