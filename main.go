package main

import "github.com/emberhq/ember/frontend/cli/cmd"

func main() {
	cmd.Execute()
}
