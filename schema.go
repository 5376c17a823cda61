package statsboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrSchemaMismatch is returned by strict panels when a payload does not
// match the panel's response schema.
var ErrSchemaMismatch = errors.New("schema mismatch")

// schemaValidator is safe for concurrent use and caches struct metadata.
var schemaValidator = validator.New(validator.WithRequiredStructEnabled())

// ProcessingStats is the response of GET /processing/stats.
type ProcessingStats struct {
	TotalPowerUsageEvents *json.Number `json:"total_power_usage_events" validate:"required"`
	TotalLocationEvents   *json.Number `json:"total_location_events" validate:"required"`
	MaxPowerW             *json.Number `json:"max_power_W" validate:"required"`
	MaxTemperatureC       *json.Number `json:"max_temperature_C" validate:"required"`
	AverageStateOfCharge  *json.Number `json:"average_state_of_charge" validate:"required"`
	DateCreated           *string      `json:"date_created" validate:"required"`
}

// EventStats is the response of GET /event_logger/event_stats.
type EventStats struct {
	Event0001 *json.Number `json:"event_0001" validate:"required"`
	Event0002 *json.Number `json:"event_0002" validate:"required"`
	Event0003 *json.Number `json:"event_0003" validate:"required"`
	Event0004 *json.Number `json:"event_0004" validate:"required"`
}

// AnomalyCounts holds the per-type anomaly totals.
type AnomalyCounts struct {
	HighTemp *json.Number `json:"High Temp" validate:"required"`
	LowSoC   *json.Number `json:"Low SoC" validate:"required"`
}

// AnomalyStats is the response of GET /anomaly_detector/anomaly_stats.
type AnomalyStats struct {
	NumAnomalies       *AnomalyCounts `json:"num_anomalies" validate:"required"`
	MostRecentDesc     *string        `json:"most_recent_desc" validate:"required"`
	MostRecentDatetime *string        `json:"most_recent_datetime" validate:"required"`
}

// DecodeSchema decodes payload into target and validates it against the
// struct's validate tags. The returned error matches [ErrSchemaMismatch].
func DecodeSchema(payload json.RawMessage, target any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w: decode %T: %v", ErrSchemaMismatch, target, err)
	}
	if err := schemaValidator.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: field %s failed %q", ErrSchemaMismatch, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return nil
}

// schemaCheck validates a payload for a strict panel.
type schemaCheck func(payload json.RawMessage) error

// newSchemaCheck returns a check decoding into a fresh T on every call.
func newSchemaCheck[T any]() schemaCheck {
	return func(payload json.RawMessage) error {
		var v T
		return DecodeSchema(payload, &v)
	}
}
