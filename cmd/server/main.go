package main

import (
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"warbler/internal/app"
	"warbler/internal/db"
	httpx "warbler/internal/http"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg := app.LoadConfig()
	d, err := db.Open(cfg.DatabaseURL)
	app.Must(err)
	app.Must(db.Migrate(d, cfg.DatabaseURL))

	srv := httpx.NewServer(d, cfg)
	log.Info().Str("addr", cfg.Addr).Msg("listening")
	app.Must(http.ListenAndServe(cfg.Addr, srv))
}
