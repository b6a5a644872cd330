package service

import "time"

// Clock источник текущего времени
type Clock func() time.Time

type options struct {
	now Clock
}

type Option func(*options)

// WithClock подменяет источник времени (используется в тестах)
func WithClock(now Clock) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
