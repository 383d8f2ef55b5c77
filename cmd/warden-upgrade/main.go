package main

import "github.com/nodewarden/nodewarden/cmd/warden-upgrade/cmd"

func main() {
	cmd.Execute()
}
