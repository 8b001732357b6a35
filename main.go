package main

import "github.com/sarchlab/memsim/cmd"

func main() {
	cmd.Execute()
}
