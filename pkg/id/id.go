package id

import "github.com/oklog/ulid/v2"

// New returns a ULID string. IDs generated by one process are monotonic, so
// they also break ties between rows sharing a creation timestamp.
func New() string {
	return ulid.Make().String()
}
