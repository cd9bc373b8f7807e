package bootstrap

import (
	"github.com/gridlens/inspector/common/db"
)

type options struct {
	dbInitHook func(*db.DB) error
}

// Option customizes component setup
type Option func(*options)

func defaultOptions() *options {
	return &options{}
}

// WithDBInitHook runs fn after the database connects. Used for schema
// setup.
func WithDBInitHook(fn func(*db.DB) error) Option {
	return func(o *options) { o.dbInitHook = fn }
}
