package util

import "fmt"

// Must panics on err. For setup paths where a failure means the
// program is misconfigured, not a condition worth handling.
func Must[V any](v V, err error) V {
	if err != nil {
		panic(fmt.Sprintf("util.Must: %v", err))
	}

	return v
}
