package yukpo

import (
	"errors"

	"github.com/yukpo/yukpo/application/service"
)

var (
	// ErrNoDatabase indicates no database URL was configured.
	ErrNoDatabase = errors.New("yukpo: no database configured")

	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = service.ErrClientClosed
)
