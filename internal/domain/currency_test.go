package domain

import (
	"errors"
	"testing"
)

func TestConvertFromZAR(t *testing.T) {
	tests := []struct {
		name        string
		amountCents int64
		currency    string
		want        int64
	}{
		{name: "base currency is identity", amountCents: 5000, currency: "ZAR", want: 5000},
		{name: "50 ZAR to XOF", amountCents: 5000, currency: "XOF", want: 165000},
		{name: "50 ZAR to GHS", amountCents: 5000, currency: "GHS", want: 1500},
		{name: "50 ZAR to GNF", amountCents: 5000, currency: "GNF", want: 2500000},
		{name: "50 ZAR to NGN", amountCents: 5000, currency: "NGN", want: 220000},
		{name: "50 ZAR to USD", amountCents: 5000, currency: "USD", want: 300},
		{name: "100 ZAR to GHS scales linearly", amountCents: 10000, currency: "GHS", want: 3000},
		{name: "lowercase code accepted", amountCents: 5000, currency: "ngn", want: 220000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertFromZAR(tt.amountCents, tt.currency)
			if err != nil {
				t.Fatalf("ConvertFromZAR returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestConvertFromZAR_UnsupportedCurrency(t *testing.T) {
	_, err := ConvertFromZAR(5000, "EUR")
	if !errors.Is(err, ErrUnsupportedCurrency) {
		t.Fatalf("expected ErrUnsupportedCurrency, got %v", err)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{5000, "50.00"},
		{10000, "100.00"},
		{5, "0.05"},
		{150, "1.50"},
		{0, "0.00"},
		{-250, "-2.50"},
	}

	for _, tt := range tests {
		if got := FormatAmount(tt.cents); got != tt.want {
			t.Fatalf("FormatAmount(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{input: "50.00", want: 5000},
		{input: "50.5", want: 5050},
		{input: "50", want: 5000},
		{input: " 50.00 ", want: 5000},
		{input: "0.05", want: 5},
		{input: "-2.50", want: -250},
		{input: "50.005", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseAmount(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseAmount(%q) expected error, got %d", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseAmount(%q) returned error: %v", tt.input, err)
		}
		if got != tt.want {
			t.Fatalf("ParseAmount(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
