package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCurrentParsesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/2.5/weather" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "Алматы" || q.Get("units") != "metric" || q.Get("lang") != "ru" {
			t.Fatalf("query = %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"weather": [{"description": "ясно"}],
			"main": {"temp": 21.4, "humidity": 40},
			"wind": {"speed": 3.2},
			"sys": {"sunrise": 1767247200, "sunset": 1767280800}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", 0)
	cur, err := c.Current(context.Background(), "Алматы")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur.Temp != 21.4 || cur.Humidity != 40 || cur.Description != "ясно" {
		t.Fatalf("cur = %+v", cur)
	}
}

func TestCurrentCityNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"cod":"404","message":"city not found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", 0)
	_, err := c.Current(context.Background(), "Нетакогогорода")
	if !errors.Is(err, ErrCityNotFound) {
		t.Fatalf("err = %v, want ErrCityNotFound", err)
	}
}

func TestCurrentServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "key", 0)
	_, err := c.Current(context.Background(), "Алматы")
	if err == nil || errors.Is(err, ErrCityNotFound) {
		t.Fatalf("err = %v, want transport error", err)
	}
}

func TestSummaryFormatting(t *testing.T) {
	cur := Current{
		Temp:        -5.0,
		Description: "пасмурно",
		Humidity:    81,
		WindSpeed:   4.5,
		Sunrise:     1767247200,
		Sunset:      1767280800,
	}
	got := Summary("Астана", cur, &Forecast{Temp: -2.5, Description: "Снег"})
	for _, want := range []string{"Погода в Астана", "🥶", "Пасмурно", "-5.0°C", "81%", "4.5 м/с", "Завтра днём: -2.5°C, снег"} {
		if !strings.Contains(got, want) {
			t.Fatalf("summary missing %q:\n%s", want, got)
		}
	}
}

func TestTempEmojiThresholds(t *testing.T) {
	cases := []struct {
		temp float64
		want string
	}{
		{-10, "🥶"}, {0, "🥶"}, {0.1, "🙂"}, {29.9, "🙂"}, {30, "🥵"}, {41, "🥵"},
	}
	for _, tc := range cases {
		if got := tempEmoji(tc.temp); got != tc.want {
			t.Fatalf("tempEmoji(%v) = %s, want %s", tc.temp, got, tc.want)
		}
	}
}
