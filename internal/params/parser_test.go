package params

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    any
		wantErr string
	}{
		{name: "int", input: "int:42", want: int64(42)},
		{name: "negative int", input: "int:-7", want: int64(-7)},
		{name: "float", input: "float:1.5", want: 1.5},
		{name: "bool", input: "bool:true", want: true},
		{name: "bool numeric", input: "bool:0", want: false},
		{name: "string", input: "str:abc", want: "abc"},
		{name: "string keeps colons", input: "str:a:b:c", want: "a:b:c"},
		{name: "empty string", input: "str:", want: ""},
		{name: "untyped", input: "plain", want: "plain"},
		{name: "url is a string", input: "https://example.com", want: "https://example.com"},
		{name: "null", input: "null:", want: nil},
		{name: "uppercase type", input: "INT:3", want: int64(3)},
		{name: "uuid", input: "uuid:6BA7B810-9DAD-11D1-80B4-00C04FD430C8", want: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{name: "bad int", input: "int:abc", wantErr: "not an integer"},
		{name: "bad float", input: "float:x", wantErr: "not a number"},
		{name: "bad bool", input: "bool:maybe", wantErr: "not a boolean"},
		{name: "bad date", input: "date:31/01/2024", wantErr: "not a date"},
		{name: "bad uuid", input: "uuid:nope", wantErr: "not a UUID"},
		{name: "null with value", input: "null:x", wantErr: "null takes no value"},
		{name: "unknown type", input: "blob:00", wantErr: "unknown parameter type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Expected error containing %q, got: %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParse_Decimal(t *testing.T) {
	got, err := Parse("decimal:19.990")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	d, ok := got.(decimal.Decimal)
	if !ok {
		t.Fatalf("Expected decimal.Decimal, got %T", got)
	}
	if !d.Equal(decimal.RequireFromString("19.99")) {
		t.Errorf("got %s, want 19.99", d)
	}
}

func TestParse_Times(t *testing.T) {
	got, err := Parse("date:2024-01-31")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if want := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC); !got.(time.Time).Equal(want) {
		t.Errorf("date: got %v, want %v", got, want)
	}

	got, err = Parse("time:2024-01-31T12:30:00+02:00")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if want := time.Date(2024, 1, 31, 10, 30, 0, 0, time.UTC); !got.(time.Time).Equal(want) {
		t.Errorf("time: got %v, want %v", got, want)
	}
}

func TestParseTyped(t *testing.T) {
	got, err := ParseTyped([]string{"int:5", "str:abc", "null:"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := []any{int64(5), "abc", nil}
	if len(got) != len(want) {
		t.Fatalf("Length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %#v, want %#v", i, got[i], want[i])
		}
	}
}

func TestParseTyped_Empty(t *testing.T) {
	got, err := ParseTyped(nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no params, got %v", got)
	}
}

func TestParseTyped_ErrorNamesPosition(t *testing.T) {
	_, err := ParseTyped([]string{"int:1", "int:two"})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "parameter 2 (@p2)") {
		t.Errorf("Expected position in error, got: %v", err)
	}
}
