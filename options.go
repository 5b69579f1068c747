package ipmatch

import (
	"go.uber.org/zap"

	"paepcke.de/ipmatch/ipaddr"
)

// Option configures Load.
type Option func(*options)

type options struct {
	family       ipaddr.Family
	strict       bool
	expandRanges bool
	logger       *zap.Logger
}

func applyOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// WithFamily selects the address family of a route table. It resolves the
// family-ambiguous "default" destination and rejects routes of the other family.
func WithFamily(f ipaddr.Family) Option {
	return func(o *options) { o.family = f }
}

// WithStrict turns the first skipped line into a load failure.
func WithStrict(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithExpandRanges lets the generic CSV parser turn first,last address
// columns into their CIDR cover when a row carries no prefix.
func WithExpandRanges(expand bool) Option {
	return func(o *options) { o.expandRanges = expand }
}

// WithLogger sets the logger for parse warnings and load summaries.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}
