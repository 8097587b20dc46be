package main

import "github.com/praktika-foundation/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
