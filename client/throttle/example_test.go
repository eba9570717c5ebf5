package throttle_test

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/adamwoolhether/httpkit/client/throttle"
)

func ExampleNew() {
	rt, err := throttle.New(
		throttle.Config{RPS: 10, Burst: 5},
		http.DefaultTransport,
		throttle.WithLogger(func() *slog.Logger { return slog.Default() }),
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	_ = &http.Client{Transport: rt}

	fmt.Println("throttled transport created")
	// Output: throttled transport created
}
