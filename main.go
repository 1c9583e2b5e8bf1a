package main

import "blocknotes/cmd"

func main() {
	cmd.Execute()
}
