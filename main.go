package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/commands"
)

func main() {
	_ = godotenv.Load(".env.local")
	os.Exit(commands.Execute())
}
