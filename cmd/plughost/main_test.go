package main

import (
	"errors"
	"testing"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"user error", userError("bad thing: %s", "oops"), exitUserError},
		{"config error", configError(errors.New("bad config")), exitConfigError},
		{"internal error", internalError(errors.New("kaboom")), exitInternal},
		{"plain error defaults to internal", errors.New("unclassified"), exitInternal},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := exitCodeFor(c.err); got != c.want {
				t.Fatalf("exitCodeFor() = %d, want %d", got, c.want)
			}
		})
	}
}
