package main

import "github.com/andresmejia3/imagedrop/cmd"

func main() {
	cmd.Execute()
}
