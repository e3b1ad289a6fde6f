package main

import "github.com/asivery/himd-js/cmd"

func main() {
	cmd.Execute()
}
