package chat

import "errors"

var errNoTransport = errors.New("chat transport not configured")
