package main

import (
	"go.uber.org/fx"

	"github.com/agritrade/stockyard/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
