package main

import (
	// Registers the built-in locomotion variants.
	_ "github.com/aretw0/stagehand/internal/locomotion"
)

func main() {
	Execute()
}
