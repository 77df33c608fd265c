/*
Copyright © 2025 The Forge Authors
*/
package main

import "github.com/forgeproj/forge/cmd"

func main() {
	cmd.Execute()
}
