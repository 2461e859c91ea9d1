// edublinctl talks to a running gateway over gRPC: breaker status and
// control, demo sign-in and ad hoc searches.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
