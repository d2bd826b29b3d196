package main

import "github.com/ojparkinson/massbalance/cmd/massbalance/cmd"

func main() {
	cmd.Execute()
}
