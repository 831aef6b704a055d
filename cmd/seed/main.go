package main

import (
	"fmt"
	"groupchat/auth"
	"groupchat/domain"
	"groupchat/repositories"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
)

// Config is read from the environment.
type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/badger"`
	Password       string `envconfig:"SEED_PASSWORD" default:"password123"`
	GroupName      string `envconfig:"SEED_GROUP" default:"climbing"`
}

var demoUsers = []string{"alice", "bob", "carol"}

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		fail("config error: %v", err)
	}

	db, err := badger.Open(badger.DefaultOptions(cfg.BadgerFilepath).WithLoggingLevel(badger.ERROR))
	if err != nil {
		fail("cannot open badger: %v", err)
	}
	defer db.Close()

	color.Cyan.Println("Seeding demo data into", cfg.BadgerFilepath)
	if err := seed(db, cfg); err != nil {
		fail("%v", err)
	}
	color.Green.Printf("Ready, log in as %s@example.com / %s\n", demoUsers[0], cfg.Password)
}

func seed(db *badger.DB, cfg Config) error {
	users := repositories.NewUserRepository(db)
	groups := repositories.NewGroupRepository(db)
	messages, err := repositories.NewMessageRepository(db)
	if err != nil {
		return err
	}
	defer messages.Close()

	hash, err := auth.HashPassword(cfg.Password)
	if err != nil {
		return err
	}

	ids := make([]domain.UserID, 0, len(demoUsers))
	for _, name := range demoUsers {
		u, err := users.CreateUser(name, name+"@example.com", "", hash)
		if err != nil {
			return fmt.Errorf("user %s: %w", name, err)
		}
		ids = append(ids, u.ID)
		fmt.Printf("  user   %-8s %s\n", name, u.ID)
	}

	// The first user owns the group, the second joins it, the third stays outside
	group, err := groups.CreateGroup(cfg.GroupName, ids[0])
	if err != nil {
		return err
	}
	if _, err = groups.Invite(ids[0], group.ID, ids[1]); err != nil {
		return err
	}
	fmt.Printf("  group  %-8s %s\n", group.Name, group.ID)

	now := time.Now()
	lines := []struct {
		groupID domain.GroupID
		sender  domain.UserID
		body    string
	}{
		{domain.GlobalGroup, ids[2], "hello everyone"},
		{group.ID, ids[0], "who is in for saturday?"},
		{group.ID, ids[1], "me, 9am at the gym"},
	}
	for i, l := range lines {
		if _, err := messages.Append(l.groupID, l.sender, l.body, now.Add(time.Duration(i)*time.Second)); err != nil {
			return err
		}
	}
	fmt.Printf("  %d messages\n", len(lines))
	return nil
}

func fail(format string, args ...any) {
	color.Red.Printf(format+"\n", args...)
	os.Exit(1)
}
