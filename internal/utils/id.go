package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewMessageID returns a server-generated message id. The millisecond
// prefix keeps ids roughly ordered; the uuid fragment makes collisions
// within the same millisecond a non-issue.
func NewMessageID() string {
	frag := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("msg_%d_%s", time.Now().UnixMilli(), frag)
}

// NewSessionID returns an opaque connection handle.
func NewSessionID() string {
	return uuid.NewString()
}
