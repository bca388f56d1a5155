// Package requestid generates the identifiers attached to backend requests.
package requestid

import "github.com/google/uuid"

// Prefix marks ids generated by this package.
const Prefix = "agent-"

// New returns a new request id. It is safe for concurrent use; ids are random
// (UUID version 4) and do not repeat in practice.
func New() string {
	return Prefix + uuid.NewString()
}
