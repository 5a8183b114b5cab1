package main

import (
	"nitedsync/internal/cmd"
)

func main() {
	cmd.Run()
}
