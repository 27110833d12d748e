package main

import (
	"os"

	"github.com/kirillkom/apartment-recommender/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
