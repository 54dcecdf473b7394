package main

import "github.com/hoshdog/ignition-llm-gateway-sub002/cmd/ignition-gateway/cmd"

func main() {
	cmd.Execute()
}
