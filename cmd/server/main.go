package main

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/iconduit/go-iconduit/server"
)

func main() {
	server.Init()

	port := viper.GetInt("PORT")
	logrus.Infof("icon server listening on :%d", port)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), nil); err != nil {
		logrus.Fatal(err)
	}
}
