package main

import (
	"os"

	"github.com/communityaid/volunteer-dispatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
