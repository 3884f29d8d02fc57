package format

import (
	"errors"
	"testing"
	"time"

	"github.com/akannigil/oxygen-documentor-sub000/internal/dateutil"
	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

func TestFormatter_Value(t *testing.T) {
	t.Parallel()

	march := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		value   any
		format  model.FieldFormat
		want    string
		wantErr error
	}{
		// Dates
		{name: "date string to european", value: "2024-03-01", format: model.FieldFormat{Format: "DD/MM/YYYY"}, want: "01/03/2024"},
		{name: "date string to iso", value: "01/03/2024", format: model.FieldFormat{Format: "YYYY-MM-DD"}, want: "2024-03-01"},
		{name: "time value default locale", value: march, want: "01/03/2024"},
		{name: "typed date without format", value: "2024-03-01", format: model.FieldFormat{Type: model.FieldDate}, want: "01/03/2024"},
		{name: "invalid date", value: "yesterday", format: model.FieldFormat{Format: "DD/MM/YYYY"}, wantErr: dateutil.ErrInvalidDate},

		// Numbers
		{name: "two decimals", value: 3.14159, format: model.FieldFormat{Format: "0.00"}, want: "3.14"},
		{name: "integer format rounds", value: 2.5, format: model.FieldFormat{Format: "0"}, want: "3"},
		{name: "string number", value: "12,5", format: model.FieldFormat{Format: "0.0"}, want: "12.5"},
		{name: "grouping", value: 1234567.891, format: model.FieldFormat{Format: "#,##0.00"}, want: "1,234,567.89"},
		{name: "typed number no format", value: 42.0, format: model.FieldFormat{Type: model.FieldNumber}, want: "42"},
		{name: "invalid number", value: "abc", format: model.FieldFormat{Format: "0.00"}, wantErr: ErrInvalidNumber},

		// Text
		{name: "plain", value: "Jane Doe", want: "Jane Doe"},
		{name: "uppercase", value: "Jane Doe", format: model.FieldFormat{Format: "uppercase"}, want: "JANE DOE"},
		{name: "lowercase", value: "Jane Doe", format: model.FieldFormat{Format: "lowercase"}, want: "jane doe"},
		{name: "capitalize", value: "jean-PIERRE dupont", format: model.FieldFormat{Format: "capitalize"}, want: "Jean-Pierre Dupont"},
		{name: "nil value", value: nil, want: ""},
		{name: "number as text", value: 42.0, want: "42"},
		{name: "bool", value: true, want: "true"},
	}

	fm := Formatter{}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := fm.Value(tt.value, tt.format)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Value(%v) error = %v, want %v", tt.value, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Value(%v) unexpected error: %v", tt.value, err)
			}
			if got != tt.want {
				t.Errorf("Value(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestFormatter_CustomDefaultDate(t *testing.T) {
	t.Parallel()

	fm := Formatter{DefaultDateFormat: "YYYY-MM-DD"}
	got, err := fm.Value(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), model.FieldFormat{})
	if err != nil {
		t.Fatal(err)
	}
	if got != "2024-03-01" {
		t.Errorf("got %q", got)
	}
}
