package main

import "github.com/MeKo-Tech/staticmap/internal/cmd"

func main() {
	cmd.Execute()
}
