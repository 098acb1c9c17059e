package main

import (
	"streaming-engine/app"
	"streaming-engine/pkg/observability"
)

func main() {
	stop := observability.StartProfiling("streaming-engine")
	defer stop()
	app.Run()
}
