package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/quickauth/auth-service/internal/authctl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := authctl.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
