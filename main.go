package main

import "github.com/shaharia-lab/newsletter/cmd"

func main() {
	cmd.Execute()
}
