package main

import (
	"log"

	"github.com/quiltdata/benchling-webhook-sub011/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
