package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	fakeaccountrepo "github.com/apannell/go-secure-api/accounts/repofake"
	"github.com/apannell/go-secure-api/handshake"
	"github.com/apannell/go-secure-api/internal/config"
	"github.com/apannell/go-secure-api/keys"
	"github.com/apannell/go-secure-api/resettoken"
	"github.com/apannell/go-secure-api/server"
	"github.com/apannell/go-secure-api/token"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("error running server")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	keyProvider := keys.NewProvider()
	accountRepo := fakeaccountrepo.NewFakeAccountRepo()
	tokenAuthority, err := token.NewAuthority(
		token.NewHMACSigner(c.GetTokenSecret()),
		accountRepo,
		c.GetIdentityTokenTTL(),
	)
	if err != nil {
		return fmt.Errorf("token.NewAuthority: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
	defer redisClient.Close()

	srv, err := server.New(c, server.Deps{
		Handshake:   handshake.New(keyProvider),
		Tokens:      tokenAuthority,
		Accounts:    accountRepo,
		ResetTokens: resettoken.NewRedisStore(redisClient),
	})
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	return shutdown(httpServer)
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
