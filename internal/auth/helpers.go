package auth

import (
	"encoding/binary"
	"strconv"

	"github.com/google/uuid"
)

// newSessionID returns a session id in the backend's format: a minus sign followed
// by a random non-negative 63-bit decimal number.
func newSessionID() string {
	u := uuid.New()
	n := binary.BigEndian.Uint64(u[:8]) >> 1
	return "-" + strconv.FormatUint(n, 10)
}
