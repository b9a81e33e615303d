package main

import (
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-vault/pkg/app"
	"github.com/code-payments/code-vault/pkg/code/server/node"
)

func main() {
	if err := app.Run(node.New()); err != nil {
		logrus.WithError(err).Fatal("error running vault node")
	}
}
