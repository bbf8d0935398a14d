package main

import "github.com/ardanlabs/blockgraph/app/tooling/feeder/cmd"

func main() {
	cmd.Execute()
}
