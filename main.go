package main

import "github.com/Alijeyrad/consultorio_backend/cmd"

func main() {
	cmd.Execute()
}
