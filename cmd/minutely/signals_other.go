//go:build !unix

package main

import (
	"os"

	"minutely/internal/app"
)

func notifyControl() chan os.Signal { return make(chan os.Signal) }

func handleControl(*app.App, os.Signal) {}
