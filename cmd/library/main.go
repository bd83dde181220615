package main

import (
	stdLog "log"
	"time"

	"github.com/Astemirdum/lending-service/library/app"
	"github.com/Astemirdum/lending-service/library/config"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		stdLog.Println("no .env file, using the environment")
	}
	cfg, err := config.NewConfig(
		config.WithWriteTimeout(time.Minute),
	)
	if err != nil {
		stdLog.Fatal("config: ", err)
	}

	if err = app.Run(cfg); err != nil {
		stdLog.Fatal(err)
	}
}
