package model

import (
	"errors"
	"testing"
)

// ---------------------------------------------------------------------------
// TestConversionOptions_Validate
// ---------------------------------------------------------------------------

func TestConversionOptions_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    *ConversionOptions
		wantErr error
	}{
		{name: "nil means defaults", opts: nil},
		{name: "empty", opts: &ConversionOptions{}},
		{name: "a4 landscape", opts: &ConversionOptions{PageSize: "A4", Orientation: "landscape"}},
		{name: "unknown size", opts: &ConversionOptions{PageSize: "tabloid"}, wantErr: ErrInvalidPageSize},
		{name: "bad orientation", opts: &ConversionOptions{Orientation: "diagonal"}, wantErr: ErrInvalidOrientation},
		{name: "negative margin", opts: &ConversionOptions{Margins: &Margins{Top: -1}}, wantErr: ErrInvalidMargin},
		{name: "huge margin", opts: &ConversionOptions{Margins: &Margins{Left: 4}}, wantErr: ErrInvalidMargin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.opts.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestConversionOptions_PaperInches
// ---------------------------------------------------------------------------

func TestConversionOptions_PaperInches(t *testing.T) {
	t.Parallel()

	w, h := (&ConversionOptions{PageSize: "letter"}).PaperInches()
	if w != 8.5 || h != 11 {
		t.Errorf("letter portrait = %vx%v", w, h)
	}

	w, h = (&ConversionOptions{PageSize: "letter", Orientation: "landscape"}).PaperInches()
	if w != 11 || h != 8.5 {
		t.Errorf("letter landscape = %vx%v", w, h)
	}

	var nilOpts *ConversionOptions
	w, h = nilOpts.PaperInches()
	if w != 8.27 || h != 11.69 {
		t.Errorf("default = %vx%v, want A4", w, h)
	}
}

// ---------------------------------------------------------------------------
// TestRow_Lookup
// ---------------------------------------------------------------------------

func TestRow_Lookup(t *testing.T) {
	t.Parallel()

	row := Row{"Name": "Jane", "id": 42}

	if v, ok := row.Lookup("Name"); !ok || v != "Jane" {
		t.Errorf("exact lookup = %v, %v", v, ok)
	}
	if v, ok := row.Lookup("name"); !ok || v != "Jane" {
		t.Errorf("case-insensitive lookup = %v, %v", v, ok)
	}
	if _, ok := row.Lookup("missing"); ok {
		t.Error("missing key reported present")
	}
}
