package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jredh-dev/kindway/internal/mail"
	"github.com/jredh-dev/kindway/services/kindway/config"
	"github.com/jredh-dev/kindway/services/kindway/internal/auth"
	"github.com/jredh-dev/kindway/services/kindway/internal/community"
	"github.com/jredh-dev/kindway/services/kindway/internal/contact"
	"github.com/jredh-dev/kindway/services/kindway/internal/database"
	"github.com/jredh-dev/kindway/services/kindway/internal/geo"
	"github.com/jredh-dev/kindway/services/kindway/internal/matching"
	"github.com/jredh-dev/kindway/services/kindway/internal/messaging"
	"github.com/jredh-dev/kindway/services/kindway/internal/needs"
	"github.com/jredh-dev/kindway/services/kindway/internal/offers"
	"github.com/jredh-dev/kindway/services/kindway/internal/outbox"
	"github.com/jredh-dev/kindway/services/kindway/internal/profiles"
	"github.com/jredh-dev/kindway/services/kindway/internal/token"
	"github.com/jredh-dev/kindway/services/kindway/internal/verification"
	"github.com/jredh-dev/kindway/services/kindway/internal/web"
	"github.com/jredh-dev/kindway/services/kindway/internal/web/handlers"
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
		fmt.Printf("kindway-server %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", buildDate)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	ctx := context.Background()

	db, err := database.Open(cfg.DB.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	lookup := newResolver(ctx, cfg.Geo)
	publisher, closePublisher := newPublisher(cfg.Kafka.Brokers)
	defer closePublisher()

	var verifier auth.IDTokenVerifier
	if cfg.Firebase.ProjectID != "" {
		client, err := auth.NewFirebaseClient(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsPath)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
		verifier = client
	} else {
		log.Println("Firebase sign-in disabled (FIREBASE_PROJECT_ID not set)")
	}

	authService := auth.New(db, cfg.Session.MaxAge, verifier)
	if err := authService.CleanExpiredSessions(); err != nil {
		log.Printf("Expired session cleanup failed: %v", err)
	}
	if cfg.Admin.Email != "" {
		staff, err := authService.EnsureStaff(ctx, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			log.Fatalf("Failed to seed staff account: %v", err)
		}
		log.Printf("Staff account ready: %s (%s)", staff.Email, staff.ID)
	}

	msg := messaging.NewService(db)
	verifications := verification.NewService(db, publisher)
	contacts := contact.NewService(db, publisher, cfg.Notify.ContactTo)
	relay := outbox.Start(outbox.Retriers{verifications, contacts}, cfg.Notify.RetryInterval)

	h := handlers.New(db, handlers.Services{
		Auth:     authService,
		Tokens:   token.New(signingKey(cfg), cfg.JWT.Issuer, cfg.JWT.TTL),
		Profiles: profiles.NewService(db, lookup, cfg.Geo.Country),
		Matching: matching.NewService(db, lookup, matching.Config{
			MatchRadiusKm:  cfg.Geo.MatchRadiusKm,
			SearchRadiusKm: cfg.Geo.SearchRadiusKm,
			Country:        cfg.Geo.Country,
		}),
		Offers:       offers.NewService(db, msg),
		Needs:        needs.NewService(db),
		Messaging:    msg,
		Community:    community.NewService(db),
		Contact:      contacts,
		Verification: verifications,
	}, handlers.Options{
		SecureCookies: cfg.IsProduction(),
		SessionMaxAge: cfg.Session.MaxAge,
	})

	srv := web.New(cfg.Server.AllowedOrigins)
	h.Routes(srv.Router)
	srv.OnStop(relay.Stop)

	log.Printf("Kindway server (env: %s)", cfg.Server.Env)
	if err := srv.ListenAndServe(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// newResolver builds the geocoder, fronted by Redis when REDIS_URL is set.
func newResolver(ctx context.Context, cfg config.GeoConfig) *geo.Resolver {
	rc := geo.ResolverConfig{
		Timeout:  cfg.Timeout,
		CacheTTL: cfg.CacheTTL,
	}
	if cfg.URL != "" {
		rc.Searcher = geo.NewNominatim(cfg.URL, cfg.UserAgent, cfg.Timeout)
	} else {
		log.Println("Geocoding disabled (GEOCODER_URL empty); distances will be unknown")
	}
	if cfg.RedisURL != "" {
		client, err := geo.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("Geocode cache disabled: %v", err)
		} else {
			rc.Cache = geo.NewRedisCache(client)
		}
	}
	return geo.NewResolver(rc)
}

// newPublisher queues notification emails on Kafka, or logs them when no
// brokers are configured.
func newPublisher(brokers []string) (mail.Publisher, func()) {
	if len(brokers) == 0 {
		log.Println("KAFKA_BROKERS not set; notification emails will be logged, not sent")
		return mail.LogPublisher{}, func() {}
	}
	p := mail.NewKafkaPublisher(brokers)
	return p, func() {
		if err := p.Close(); err != nil {
			log.Printf("Error closing mail publisher: %v", err)
		}
	}
}

func signingKey(cfg *config.Config) string {
	switch {
	case cfg.JWT.SigningKey != "":
		return cfg.JWT.SigningKey
	case cfg.Session.Secret != "":
		return cfg.Session.Secret
	}
	key, err := token.GenerateSigningKey()
	if err != nil {
		log.Fatalf("Failed to generate token signing key: %v", err)
	}
	log.Println("WARNING: JWT_SIGNING_KEY is empty; bearer tokens will not survive a restart")
	return key
}
