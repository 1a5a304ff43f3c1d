package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/valet-agent/valet/tools/schemas"
)

const defaultWeatherBaseURL = "https://wttr.in"

type wttrResponse struct {
	CurrentCondition []struct {
		TempC       string `json:"temp_C"`
		FeelsLikeC  string `json:"FeelsLikeC"`
		Humidity    string `json:"humidity"`
		WeatherDesc []struct {
			Value string `json:"value"`
		} `json:"weatherDesc"`
	} `json:"current_condition"`
}

// RegisterWeatherTool registers the weather tool, backed by the wttr.in JSON
// API. baseURL overrides the endpoint for tests; empty means the public one.
func RegisterWeatherTool(r *Registry, client *resty.Client, baseURL string) error {
	if baseURL == "" {
		baseURL = defaultWeatherBaseURL
	}
	return r.Register("weather", schemas.WeatherSchemas()["weather"],
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var payload struct {
				Location string `json:"location"`
			}
			if err := json.Unmarshal(args, &payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
			}
			location := strings.TrimSpace(payload.Location)
			if location == "" {
				return nil, fmt.Errorf("location is empty")
			}

			var out wttrResponse
			resp, err := client.R().
				SetContext(ctx).
				SetQueryParam("format", "j1").
				SetResult(&out).
				Get(baseURL + "/" + url.PathEscape(location))
			if err != nil {
				return nil, fmt.Errorf("weather request failed: %w", err)
			}
			if resp.IsError() {
				return nil, fmt.Errorf("weather service returned %s", resp.Status())
			}
			if len(out.CurrentCondition) == 0 {
				return nil, fmt.Errorf("no weather data for %q", location)
			}

			cur := out.CurrentCondition[0]
			desc := ""
			if len(cur.WeatherDesc) > 0 {
				desc = cur.WeatherDesc[0].Value
			}
			return map[string]any{
				"location":     location,
				"conditions":   desc,
				"temp_c":       cur.TempC,
				"feels_like_c": cur.FeelsLikeC,
				"humidity":     cur.Humidity,
			}, nil
		})
}
