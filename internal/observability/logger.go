package observability

import "go.uber.org/zap"

// NewLogger returns a human-readable debug logger for "dev" and a JSON production
// logger for every other environment.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
