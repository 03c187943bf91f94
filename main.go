package main

import "github.com/exoticlogicbuilder/auth-service/cmd"

func main() {
	cmd.Execute()
}
