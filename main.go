package main

import "searchreporting/cmd"

func main() {
	cmd.Execute()
}
