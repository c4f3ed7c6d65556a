package currency

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/olzhask/aqylbot/internal/session"
)

func TestParseDirection(t *testing.T) {
	cases := []struct {
		text string
		want session.Direction
		ok   bool
	}{
		{text: "USD в KZT", want: session.Direction{From: "USD", To: "KZT"}, ok: true},
		{text: "btc -> usdt", want: session.Direction{From: "BTC", To: "USDT"}, ok: true},
		{text: "EUR/USD", want: session.Direction{From: "EUR", To: "USD"}, ok: true},
		{text: "usd kzt", want: session.Direction{From: "USD", To: "KZT"}, ok: true},
		{text: "RUB to USD", want: session.Direction{From: "RUB", To: "USD"}, ok: true},
		{text: "просто текст без пары вообще", ok: false},
		{text: "USD в USD", ok: false},
		{text: "", ok: false},
		{text: "очень-длинное/название", ok: false},
	}
	for _, tc := range cases {
		got, ok := ParseDirection(tc.text)
		if ok != tc.ok {
			t.Fatalf("ParseDirection(%q) ok = %v, want %v", tc.text, ok, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("ParseDirection(%q) = %+v, want %+v", tc.text, got, tc.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		text string
		want float64
		ok   bool
	}{
		{"10", 10, true},
		{"1.5", 1.5, true},
		{"2,75", 2.75, true},
		{" 100 ", 100, true},
		{"-5", 0, false},
		{"0", 0, false},
		{"десять", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseAmount(tc.text)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("ParseAmount(%q) = %v,%v want %v,%v", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseRequestInline(t *testing.T) {
	amount, dir, ok := ParseRequest("10 BTC в USD")
	if !ok || amount != 10 || dir.From != "BTC" || dir.To != "USD" {
		t.Fatalf("ParseRequest = %v %+v %v", amount, dir, ok)
	}
	if _, _, ok := ParseRequest("BTC в USD"); ok {
		t.Fatalf("missing amount must not parse")
	}
}

type fakeRates struct {
	rates map[string]float64
}

func (f *fakeRates) Rate(_ context.Context, from, to string) (float64, error) {
	if r, ok := f.rates[from+to]; ok {
		return r, nil
	}
	return 0, ErrPairNotFound
}

func TestConvertFiatFirst(t *testing.T) {
	c := &Converter{
		Fiat:   &fakeRates{rates: map[string]float64{"USDKZT": 470}},
		Crypto: &fakeRates{},
	}
	got, src, err := c.Convert(context.Background(), 2, session.Direction{From: "USD", To: "KZT"})
	if err != nil || got != 940 || src != "fiat" {
		t.Fatalf("Convert = %v %s %v", got, src, err)
	}
}

func TestConvertCryptoFallback(t *testing.T) {
	c := &Converter{
		Fiat:   &fakeRates{},
		Crypto: &fakeRates{rates: map[string]float64{"BTCUSD": 65000}},
	}
	got, src, err := c.Convert(context.Background(), 10, session.Direction{From: "BTC", To: "USD"})
	if err != nil || got != 650000 || src != "crypto" {
		t.Fatalf("Convert = %v %s %v", got, src, err)
	}

	// Reverse order: USD в BTC uses the same quote inverted.
	got, _, err = c.Convert(context.Background(), 65000, session.Direction{From: "USD", To: "BTC"})
	if err != nil || math.Abs(got-1) > 1e-9 {
		t.Fatalf("reverse Convert = %v %v", got, err)
	}
}

func TestConvertRoundTrip(t *testing.T) {
	c := &Converter{Fiat: &fakeRates{rates: map[string]float64{
		"USDKZT": 470.25,
		"KZTUSD": 1 / 470.25,
	}}}
	fwd, _, err := c.Convert(context.Background(), 123.45, session.Direction{From: "USD", To: "KZT"})
	if err != nil {
		t.Fatalf("fwd: %v", err)
	}
	back, _, err := c.Convert(context.Background(), fwd, session.Direction{From: "KZT", To: "USD"})
	if err != nil {
		t.Fatalf("back: %v", err)
	}
	if math.Abs(back-123.45) > 1e-9 {
		t.Fatalf("round trip = %v, want 123.45", back)
	}
}

func TestConvertPairNotFound(t *testing.T) {
	c := &Converter{Fiat: &fakeRates{}, Crypto: &fakeRates{}}
	_, _, err := c.Convert(context.Background(), 1, session.Direction{From: "AAA", To: "BBB"})
	if !errors.Is(err, ErrPairNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestFiatClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("base") != "USD" {
			t.Fatalf("base = %s", r.URL.Query().Get("base"))
		}
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"KZT":470.5}}`))
	}))
	defer srv.Close()

	c := NewFiatClient(srv.URL, 0)
	rate, err := c.Rate(context.Background(), "USD", "KZT")
	if err != nil || rate != 470.5 {
		t.Fatalf("Rate = %v %v", rate, err)
	}
	if _, err := c.Rate(context.Background(), "USD", "ZZZ"); !errors.Is(err, ErrPairNotFound) {
		t.Fatalf("missing symbol err = %v", err)
	}
}

func TestCryptoClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "BTCUSD":
			_, _ = w.Write([]byte(`{"symbol":"BTCUSD","price":"65000.00"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		}
	}))
	defer srv.Close()

	c := NewCryptoClient(srv.URL, 0)
	price, err := c.Rate(context.Background(), "BTC", "USD")
	if err != nil || price != 65000 {
		t.Fatalf("Rate = %v %v", price, err)
	}
	if _, err := c.Rate(context.Background(), "USD", "BTC"); !errors.Is(err, ErrPairNotFound) {
		t.Fatalf("invalid symbol err = %v", err)
	}
}

func TestFormatResult(t *testing.T) {
	got := FormatResult(10, session.Direction{From: "BTC", To: "USD"}, 650000)
	if !strings.Contains(got, "BTC") || !strings.Contains(got, "USD") || !strings.Contains(got, "650000") {
		t.Fatalf("FormatResult = %q", got)
	}
}
