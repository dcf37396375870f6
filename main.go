package main

import (
	"github.com/jghoshh/habitsync/backend"
)

func main() {
	backend.RunBackend()
}
