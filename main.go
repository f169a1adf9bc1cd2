package main

import "github.com/andresmejia3/chroma/cmd"

func main() {
	cmd.Execute()
}
