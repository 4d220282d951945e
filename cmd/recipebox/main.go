// Command recipebox はレシピお気に入りAPIサーバーを起動する。
//
// 使い方:
//
//	recipebox [serve|migrate|healthcheck|favorite <recipeId>]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/recipebox/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "recipebox: %v\n", err)
		os.Exit(1)
	}
}
