package analytics

import "time"

// Option configures a pipeline run.
type Option func(*config)

type config struct {
	location *time.Location
}

// WithLocation reads calendar fields (year, month, weekday) in loc instead of
// each record's own location.
func WithLocation(loc *time.Location) Option {
	return func(c *config) {
		c.location = loc
	}
}

func applyOptions(opts []Option) *config {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *config) local(t time.Time) time.Time {
	if c.location != nil {
		return t.In(c.location)
	}
	return t
}
