// Package lok talks to the League of Kingdoms statistics API and converts
// its payloads into domain records.
package lok

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/lok-dashboard/internal/logging"
	"github.com/lok-dashboard/internal/models"
	"github.com/lok-dashboard/internal/ratelimit"
	"github.com/lok-dashboard/internal/types"
)

// DefaultBaseURL is the live contribution statistics endpoint.
const DefaultBaseURL = "https://api-lok-live.leagueofkingdoms.com/api/stat/land/contribution"

// MaxWindowDays is the widest date window the upstream API accepts.
const MaxWindowDays = 7

// Fetcher retrieves per-land contribution data for a date window.
type Fetcher struct {
	client  *ratelimit.Client
	baseURL string
	logger  *logging.Logger
}

// FetcherConfig holds configuration for the fetcher.
type FetcherConfig struct {
	// Client is the rate-limited HTTP client. Required.
	Client *ratelimit.Client

	// BaseURL overrides the upstream endpoint. Default: DefaultBaseURL.
	BaseURL string

	Logger *logging.Logger
}

// NewFetcher creates a fetcher with the given configuration.
func NewFetcher(cfg *FetcherConfig) (*Fetcher, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if cfg.Client == nil {
		return nil, errors.New("rate-limited client is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Fetcher{
		client:  cfg.Client,
		baseURL: baseURL,
		logger:  logger,
	}, nil
}

// ValidateWindow checks a requested date window against the upstream API's
// limits: the end must not precede the start and the span is capped at
// MaxWindowDays.
func ValidateWindow(startDate, endDate types.Date) error {
	if endDate.Before(startDate) {
		return types.NewServiceError(types.ErrCodeInvalidDateRange,
			"end date %s is before start date %s", endDate, startDate)
	}
	if endDate.After(startDate.AddDays(MaxWindowDays)) {
		return types.NewServiceError(types.ErrCodeInvalidDateRange,
			"date interval must be at most %d days, got %d", MaxWindowDays, startDate.DaysUntil(endDate))
	}
	return nil
}

// contributionPayload mirrors the upstream response shape. Kingdom ids and
// point totals arrive with inconsistent JSON types, so both are held as raw
// tokens and normalized afterwards.
type contributionPayload struct {
	Owner        *string             `json:"owner"`
	Contribution []contributionEntry `json:"contribution"`
}

type contributionEntry struct {
	KingdomID json.RawMessage `json:"kingdomId"`
	Name      string          `json:"name"`
	Continent int             `json:"continent"`
	Total     json.Number     `json:"total"`
}

// FetchContributions fetches and normalizes contribution data for one land
// over [startDate, endDate]. The window is validated before any token is
// spent: endDate must not precede startDate and the span is capped at seven
// days.
func (f *Fetcher) FetchContributions(ctx context.Context, landID string, startDate, endDate types.Date) (*models.Land, error) {
	if err := ValidateWindow(startDate, endDate); err != nil {
		return nil, err
	}

	f.logger.WithFields(map[string]interface{}{
		"landId": landID,
		"from":   startDate.String(),
		"to":     endDate.String(),
	}).Info("Fetching contributions")

	body, err := f.client.Get(ctx, f.buildURL(landID, startDate, endDate))
	if err != nil {
		return nil, err
	}

	return parseLand(landID, endDate, body)
}

func (f *Fetcher) buildURL(landID string, startDate, endDate types.Date) string {
	params := url.Values{}
	params.Set("landId", landID)
	params.Set("from", startDate.String())
	params.Set("to", endDate.String())
	return f.baseURL + "?" + params.Encode()
}

// parseLand decodes the upstream payload into a Land aggregate. An empty or
// null body is terminal: it cannot be told apart from a malformed payload.
func parseLand(landID string, endDate types.Date, body []byte) (*models.Land, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, types.NewServiceError(types.ErrCodeEmptyResponse,
			"empty response from API for land %s", landID)
	}

	var payload contributionPayload
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return nil, types.NewServiceError(types.ErrCodeUpstreamError,
			"malformed response for land %s: %v", landID, err)
	}

	land := &models.Land{
		ID:          landID,
		Owner:       payload.Owner,
		LastUpdated: endDate,
	}

	for i, entry := range payload.Contribution {
		kingdomID, err := rawToString(entry.KingdomID)
		if err != nil {
			return nil, types.NewServiceError(types.ErrCodeUpstreamError,
				"contribution %d for land %s has invalid kingdomId: %v", i, landID, err)
		}

		// total arrives as either an integer or a float; both normalize to
		// one decimal representation.
		points, err := decimal.NewFromString(entry.Total.String())
		if err != nil {
			return nil, types.NewServiceError(types.ErrCodeUpstreamError,
				"contribution %d for land %s has invalid total %q: %v", i, landID, entry.Total, err)
		}

		land.Contributions = append(land.Contributions, models.Contribution{
			LandID:      landID,
			KingdomID:   kingdomID,
			KingdomName: entry.Name,
			Continent:   entry.Continent,
			TotalPoints: points,
		})
	}

	return land, nil
}

// rawToString renders a JSON string or number token as its string form.
func rawToString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("missing value")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", raw)
	}
	return n.String(), nil
}
