// Command assetctl uploads, replaces, inspects and deletes images on the asset API.
package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
