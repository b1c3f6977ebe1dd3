// Command seed fills the configured database with demo data.
package main

import (
	"context"
	"flag"
	"log"

	"vibefeed/internal/config"
	"vibefeed/internal/database"
	"vibefeed/internal/middleware"
	"vibefeed/internal/seed"
)

func main() {
	fixture := flag.String("fixture", "", "YAML fixture to load instead of generated data")
	numUsers := flag.Int("users", 20, "Number of users to generate")
	numPosts := flag.Int("posts", 100, "Number of posts to generate")
	randSeed := flag.Int64("seed", 0, "Random seed for generated data (0 = time based)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.InitLogger(cfg.Env, cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	s := seed.NewSeeder(db)

	if *shouldClean {
		if err := s.Clear(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	var sum seed.Summary
	if *fixture != "" {
		f, err := seed.LoadFixture(*fixture)
		if err != nil {
			log.Fatalf("Failed to load fixture: %v", err)
		}
		sum, err = s.ApplyFixture(ctx, f)
		if err != nil {
			log.Fatalf("Fixture seeding failed: %v", err)
		}
	} else {
		sum, err = s.Random(ctx, *numUsers, *numPosts, *randSeed)
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	}

	log.Printf("Seeded %s", sum)
	log.Printf("Users without an explicit password use: %s", seed.DefaultPassword)
}
