// Package weather is a thin client for the OpenWeatherMap current-weather and
// forecast endpoints, plus the Russian reply formatting the bot sends back.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrCityNotFound distinguishes an unknown place name from transport errors.
var ErrCityNotFound = errors.New("weather: city not found")

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type Current struct {
	Temp        float64
	Description string
	Humidity    int
	WindSpeed   float64
	Sunrise     int64
	Sunset      int64
}

type Forecast struct {
	Temp        float64
	Description string
}

type currentResponse struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
}

type forecastResponse struct {
	List []struct {
		DtTxt string `json:"dt_txt"`
		Main  struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"list"`
}

func (c *Client) get(ctx context.Context, path, city string, out any) error {
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", c.APIKey)
	q.Set("units", "metric")
	q.Set("lang", "ru")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrCityNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("weather http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("weather: decode response: %w", err)
	}
	return nil
}

func (c *Client) Current(ctx context.Context, city string) (Current, error) {
	var out currentResponse
	if err := c.get(ctx, "/data/2.5/weather", city, &out); err != nil {
		return Current{}, err
	}
	cur := Current{
		Temp:      out.Main.Temp,
		Humidity:  out.Main.Humidity,
		WindSpeed: out.Wind.Speed,
		Sunrise:   out.Sys.Sunrise,
		Sunset:    out.Sys.Sunset,
	}
	if len(out.Weather) > 0 {
		cur.Description = out.Weather[0].Description
	}
	return cur, nil
}

// Forecast returns the entry closest to noon of the next day, when present.
func (c *Client) Forecast(ctx context.Context, city string) (*Forecast, error) {
	var out forecastResponse
	if err := c.get(ctx, "/data/2.5/forecast", city, &out); err != nil {
		return nil, err
	}
	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	for _, e := range out.List {
		if !strings.HasPrefix(e.DtTxt, tomorrow) || !strings.Contains(e.DtTxt, "12:00") {
			continue
		}
		fc := &Forecast{Temp: e.Main.Temp}
		if len(e.Weather) > 0 {
			fc.Description = e.Weather[0].Description
		}
		return fc, nil
	}
	return nil, nil
}
