package main

import "github.com/christophergorexyz/cosmia-core/cmd"

func main() {
	cmd.Execute()
}
