package jsonutil

import (
	"encoding/json"
	"testing"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name  string
		input json.RawMessage
		want  string
	}{
		{name: "string value", input: json.RawMessage(`"no image in range"`), want: "no image in range"},
		{name: "integer value", input: json.RawMessage(`42`), want: "42"},
		{name: "float value", input: json.RawMessage(`3.14`), want: "3.14"},
		{name: "boolean", input: json.RawMessage(`false`), want: "false"},
		{name: "null value", input: json.RawMessage(`null`), want: ""},
		{name: "empty input", input: nil, want: ""},
		{name: "object falls back to raw", input: json.RawMessage(`{"code":7}`), want: `{"code":7}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FlexibleStringValue(tt.input); got != tt.want {
				t.Errorf("FlexibleStringValue(%s) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFlexibleFloatValue(t *testing.T) {
	tests := []struct {
		name   string
		input  json.RawMessage
		want   float64
		wantOK bool
	}{
		{name: "number", input: json.RawMessage(`0.1234`), want: 0.1234, wantOK: true},
		{name: "negative number", input: json.RawMessage(`-12.5`), want: -12.5, wantOK: true},
		{name: "integer", input: json.RawMessage(`1520`), want: 1520, wantOK: true},
		{name: "numeric string", input: json.RawMessage(`" 0.5 "`), want: 0.5, wantOK: true},
		{name: "null", input: json.RawMessage(`null`), wantOK: false},
		{name: "empty", input: nil, wantOK: false},
		{name: "text", input: json.RawMessage(`"n/a"`), wantOK: false},
		{name: "NaN string", input: json.RawMessage(`"NaN"`), wantOK: false},
		{name: "Inf string", input: json.RawMessage(`"+Inf"`), wantOK: false},
		{name: "boolean", input: json.RawMessage(`true`), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FlexibleFloatValue(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("FlexibleFloatValue(%s) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("FlexibleFloatValue(%s) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
