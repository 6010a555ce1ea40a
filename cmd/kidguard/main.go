// Package main provides the KidGuard command: a local guardian that watches
// what a child is playing on YouTube, classifies each new video against the
// family's rules, and intervenes or alerts a parent.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
