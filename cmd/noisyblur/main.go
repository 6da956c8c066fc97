package main

import "github.com/MeKo-Tech/noisyblur/internal/cmd"

func main() {
	cmd.Execute()
}
