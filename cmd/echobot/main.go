// Echobot is a minimal bot on top of the engine: a few message commands
// demonstrating arguments, cooldowns and concurrency limits.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	engine "github.com/diskordpkg/engine"
	"github.com/diskordpkg/engine/gate"
	"github.com/diskordpkg/engine/router"
)

type config struct {
	BotToken string `env:"DISCORD_TOKEN,required"`
	Prefix   string `env:"COMMAND_PREFIX" envDefault:"!"`
}

func main() {
	_ = godotenv.Load()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	bot, err := engine.New(engine.Config{
		BotToken: cfg.BotToken,
		Prefix:   cfg.Prefix,
		Logger:   log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("unable to set up engine")
	}

	register(bot, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("gateway connection failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := bot.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown did not drain cleanly")
	}
}

func register(bot *engine.Engine, log zerolog.Logger) {
	must := func(err error) {
		if err != nil {
			log.Fatal().Err(err).Msg("command registration failed")
		}
	}

	must(bot.Command(&router.Definition{
		Name:        "echo",
		Description: "repeat the given text",
		Params: []router.Param{
			{Name: "text", Type: router.String, Required: true, Rest: true},
		},
		Cooldown: &gate.Cooldown{Rate: 2, Per: 10 * time.Second, Bucket: gate.User},
		Handler: func(ctx *router.Context) error {
			return ctx.Reply(ctx.StringArg("text"))
		},
	}))

	must(bot.Command(&router.Definition{
		Name:        "roll",
		Description: "roll a die with the given number of sides",
		Params: []router.Param{
			{Name: "sides", Type: router.Int, Required: false, Default: int64(6)},
		},
		Concurrency: &gate.MaxConcurrency{Number: 1, Bucket: gate.Channel},
		Handler: func(ctx *router.Context) error {
			sides := ctx.IntArg("sides")
			if sides < 2 {
				return fmt.Errorf("a die needs at least 2 sides, got %d", sides)
			}
			roll := time.Now().UnixNano()%sides + 1
			return ctx.Reply(fmt.Sprintf("rolled %d (d%d)", roll, sides))
		},
	}))

	shop := &router.Definition{Name: "shop", Description: "shop commands"}
	must(shop.AddChild(&router.Definition{
		Name: "buy",
		Params: []router.Param{
			{Name: "item", Type: router.String, Required: true},
			{Name: "quantity", Type: router.Int, Required: false, Default: int64(1)},
		},
		Handler: func(ctx *router.Context) error {
			return ctx.Reply(fmt.Sprintf("bought %d x %s", ctx.IntArg("quantity"), ctx.StringArg("item")))
		},
	}))
	must(bot.Command(shop))
}
