package main

import (
	"github.com/sluiceio/sluice/internal/cli"
	"github.com/sluiceio/sluice/internal/common/logtrace"
)

func init() {
	logtrace.InitLogger()
}

func main() {
	cli.Execute()
}
