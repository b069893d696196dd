// kindway - donation matching platform
// Copyright (C) 2025  kindway contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

// mail-sender consumes notification emails from the "mail-outbox" topic and
// delivers them through an HTTP email API.
//
// Configuration comes from the environment:
//
//	KAFKA_BROKERS  comma-separated broker list, e.g. "kafka:9092"
//	MAIL_API_URL   email API endpoint; when empty, emails are only logged
//	MAIL_API_KEY   value of the Authorization header sent to the API
//	MAIL_FROM      sender address, default "noreply@kindway.org"
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jredh-dev/kindway/internal/mail"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("mail-sender %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", buildDate)
		os.Exit(0)
	}

	_ = godotenv.Load()

	brokers := requireEnv("KAFKA_BROKERS")
	from := os.Getenv("MAIL_FROM")
	if from == "" {
		from = "noreply@kindway.org"
	}

	var sender mail.Sender
	if apiURL := os.Getenv("MAIL_API_URL"); apiURL != "" {
		sender = mail.NewHTTPSender(apiURL, requireEnv("MAIL_API_KEY"), from)
	} else {
		log.Println("mail-sender: MAIL_API_URL not set, logging emails instead of sending")
		sender = mail.LogSender{}
	}

	consumer := mail.NewConsumer(strings.Split(brokers, ","), sender)
	defer func() {
		if err := consumer.Close(); err != nil {
			log.Printf("mail-sender: error closing consumer: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Printf("mail-sender: starting (brokers=%s from=%s)", brokers, from)
	if err := consumer.Run(ctx); err != nil {
		log.Fatalf("mail-sender: fatal error: %v", err)
	}
	log.Println("mail-sender: shutdown complete")
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("mail-sender: required environment variable %q is not set", key)
	}
	return v
}
