package main

import "trackman-importer/cmd/trackman/cmd"

func main() {
	cmd.Execute()
}
