package main

import "github.com/inovacc/confsync/cmd"

func main() {
	cmd.Execute()
}
