// Command seed fills the Warbler database with demo data.
package main

import (
	"flag"
	"log"

	"warbler/internal/config"
	"warbler/internal/database"
	"warbler/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of fake users to create")
	messages := flag.Int("messages", 10, "Messages per fake user")
	follows := flag.Int("follows", 5, "Accounts each fake user follows")
	likes := flag.Int("likes", 8, "Messages each fake user likes")
	randSeed := flag.Int64("seed", 0, "Random seed (0 picks one)")
	fixture := flag.String("fixture", "", "YAML fixture to load; \"demo\" loads the built-in graph")
	shouldClean := flag.Bool("clean", false, "Delete all existing data first")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db)
	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	var sum seed.Summary
	switch *fixture {
	case "":
		sum, err = s.SeedGraph(seed.Options{
			Users:           *numUsers,
			MessagesPerUser: *messages,
			FollowsPerUser:  *follows,
			LikesPerUser:    *likes,
			Seed:            *randSeed,
		})
	case "demo":
		var fx *seed.Fixture
		if fx, err = seed.DemoFixture(); err == nil {
			sum, err = s.ApplyFixture(fx, 0)
		}
	default:
		var fx *seed.Fixture
		if fx, err = seed.LoadFixture(*fixture); err == nil {
			sum, err = s.ApplyFixture(fx, 0)
		}
	}
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Created %d users, %d messages, %d follows, %d likes", sum.Users, sum.Messages, sum.Follows, sum.Likes)
	if *fixture == "" {
		log.Printf("All generated users have the password: %s", seed.DefaultPassword)
	}
}
