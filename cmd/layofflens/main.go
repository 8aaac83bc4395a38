// Command layofflens は人員削減ニュースの取り込みワーカーと閲覧APIを提供する。
//
// 使い方:
//
//	layofflens [serve|worker|ingest|purge|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/layofflens/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "layofflens: %v\n", err)
		os.Exit(1)
	}
}
