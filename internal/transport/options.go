package transport

import (
	"time"
)

// Options configures transports (shared across TCP/WS where applicable)
type Options struct {
	ReadTimeout  time.Duration // per-read deadline; 0 to disable
	WriteTimeout time.Duration // per-write deadline; 0 to disable
	MaxFrameSize int           // max payload bytes; 0 means only the 4-byte header bounds it
}
