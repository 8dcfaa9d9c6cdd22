package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	apperrors "InstantMBTA/pkg/errors"
)

// NewBootstrap creates and validates a Bootstrap configuration.
// It loads the specified YAML file, applies defaults, and allows overrides
// from environment variables prefixed with INSTANTMBTA_.
//
// Configuration priority: CLI flags > Environment variables > Config file > Defaults
//
// The API key can come from MBTA_API_KEY or INSTANTMBTA_API_KEY; the MBTA
// API accepts anonymous requests at a reduced rate limit, so it is optional.
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("INSTANTMBTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("api.key", "MBTA_API_KEY", "INSTANTMBTA_API_KEY")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	bc := &Bootstrap{}
	if err := v.Unmarshal(bc); err != nil {
		return nil, &apperrors.ConfigValidationError{Msg: fmt.Sprintf("cannot decode configuration: %v", err)}
	}

	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Display defaults mirror the defaults the hardware display shipped with.
	v.SetDefault("display.time_format", "12h")
	v.SetDefault("display.abbreviate", true)
	v.SetDefault("display.refresh", 60*time.Second)
	v.SetDefault("display.show_route", true)

	// API defaults
	v.SetDefault("api.base_url", "https://api-v3.mbta.com")
	v.SetDefault("api.timeout", 30*time.Second)

	// Breaker defaults
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.cooldown", 60*time.Second)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

var validate = validator.New()

// Validate checks structural constraints with validator tags and then the
// mode-conditional rules that tags cannot express. Each display mode requires
// a different subset of fields.
func Validate(bc *Bootstrap) error {
	if err := validate.Struct(bc); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			first := verrs[0]
			return &apperrors.ConfigValidationError{
				Field: strings.ToLower(first.Namespace()),
				Msg:   fmt.Sprintf("failed %q constraint", first.Tag()),
			}
		}
		return &apperrors.ConfigValidationError{Msg: err.Error()}
	}

	switch bc.Mode {
	case ModeSingleStation:
		if bc.Station == "" {
			return &apperrors.ConfigValidationError{Field: "station", Msg: "single-station mode requires a station"}
		}
		if len(bc.Tracks) == 0 {
			return &apperrors.ConfigValidationError{Field: "track", Msg: "single-station mode requires at least one tracked route"}
		}
	case ModeBidirectional:
		if bc.Station == "" {
			return &apperrors.ConfigValidationError{Field: "station", Msg: "bidirectional mode requires a station"}
		}
		if bc.Route == "" {
			return &apperrors.ConfigValidationError{Field: "route", Msg: "bidirectional mode requires a route"}
		}
	case ModeJourney:
		if bc.Route == "" {
			return &apperrors.ConfigValidationError{Field: "route", Msg: "journey mode requires a route"}
		}
		if bc.From == "" {
			return &apperrors.ConfigValidationError{Field: "from", Msg: "journey mode requires a 'from' station"}
		}
		if bc.To == "" {
			return &apperrors.ConfigValidationError{Field: "to", Msg: "journey mode requires a 'to' station"}
		}
	}

	// A cycle must finish before the next one starts, so the per-fetch
	// timeout cannot exceed the refresh interval.
	if bc.API.Timeout >= bc.Display.Refresh {
		return &apperrors.ConfigValidationError{
			Field: "api.timeout",
			Msg:   fmt.Sprintf("timeout %s must be shorter than the refresh interval %s", bc.API.Timeout, bc.Display.Refresh),
		}
	}

	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}
