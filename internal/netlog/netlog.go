// File: internal/netlog/netlog.go
// Author: momentics <momentics@gmail.com>
//
// Package-wide structured logger, grounded on the zerolog usage in
// Andrei-cloud-anet's cmd/main.go (log "github.com/rs/zerolog",
// log.New(os.Stdout).With().Timestamp().Logger()).

package netlog

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the default logger used by the engine and node packages
// when the caller does not supply its own via SetLogger. It writes
// structured JSON to stdout with a timestamp field, matching the
// teacher's construction.
var Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// SetLogger replaces the package-wide logger, for example to route
// engine diagnostics through an application's own zerolog instance or
// to a console writer during local development.
func SetLogger(l zerolog.Logger) {
	Logger = l
}
