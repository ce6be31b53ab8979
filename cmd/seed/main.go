// Command seed fills the database with fake users, posts and follows.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"blogsphere/internal/config"
	"blogsphere/internal/database"
	"blogsphere/internal/observability"
	"blogsphere/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numPosts := flag.Int("posts", 200, "Number of posts to create")
	follows := flag.Int("follows", 5, "Number of users each user follows")
	days := flag.Int("days", 90, "Spread post dates over this many days")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = time based)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	observability.SetLogger(observability.NewLogger(os.Stdout, cfg.Env))

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	res, err := seed.NewSeeder(db, seed.Options{
		NumUsers:       *numUsers,
		NumPosts:       *numPosts,
		FollowsPerUser: *follows,
		MaxDays:        *days,
		ShouldClean:    *shouldClean,
		RandSeed:       *randSeed,
	}).Run(ctx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d posts, %d follows", len(res.Users), res.Posts, res.Follows)
	log.Printf("All seeded users have the password: %s", seed.DefaultPassword)
}
