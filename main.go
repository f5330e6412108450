package main

import "github.com/medshift/staffing-platform/cmd"

func main() {
	cmd.Execute()
}
