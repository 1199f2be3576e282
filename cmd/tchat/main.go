// tchat is a minimal line-oriented front end for the chat core. It drives
// the core only through its public seams: Gate.Submit for outbound text,
// Log.Subscribe for inbound rendering, and the status projection for the
// connection indicator.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/matheus3301/tchat/internal/backend"
	"github.com/matheus3301/tchat/internal/bus"
	"github.com/matheus3301/tchat/internal/conn"
	"github.com/matheus3301/tchat/internal/config"
	"github.com/matheus3301/tchat/internal/gate"
	"github.com/matheus3301/tchat/internal/lock"
	"github.com/matheus3301/tchat/internal/logging"
	"github.com/matheus3301/tchat/internal/session"
	"github.com/matheus3301/tchat/internal/status"
	"github.com/matheus3301/tchat/internal/store"
	intsync "github.com/matheus3301/tchat/internal/sync"
)

func main() {
	configFlag := flag.String("config", "", "config file path (default ~/.tchat/config.toml)")
	flag.Parse()

	if err := run(*configFlag); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if configPath == "" {
		configPath = session.ConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := session.EnsureDirs(); err != nil {
		return err
	}
	logger, err := logging.New(session.LogPath(), false)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	lk, err := lock.Acquire(session.BaseDir())
	if err != nil {
		return err
	}
	defer func() { _ = lk.Release() }()

	b := bus.NewBus()
	machine := status.NewMachine(b)

	db, err := store.Open(session.ArchivePath())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Migrate(); err != nil {
		return err
	}

	log := store.NewLog()
	engine := intsync.NewEngine(log, db, b, logger)
	engine.Start(context.Background())
	defer engine.Stop()

	mgr := conn.New(conn.Options{
		URL: cfg.Server.WSURL,
		Policy: conn.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   time.Duration(cfg.Retry.BaseDelay),
		},
		Bus:     b,
		Machine: machine,
		Logger:  logger,
	})
	g := gate.New(machine, mgr)

	client := backend.New(cfg.Server.HTTPURL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	identity, err := client.FetchIdentity(ctx)
	cancel()
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s\n", identity.DisplayName)

	// Render each message at most once, whether it arrives live or in the
	// history snapshot.
	var printMu sync.Mutex
	printed := make(map[int64]bool)
	printOnce := func(m store.Message) {
		printMu.Lock()
		seen := printed[m.ID]
		printed[m.ID] = true
		printMu.Unlock()
		if !seen {
			printMessage(identity, m)
		}
	}

	unsub := log.Subscribe(printOnce)
	defer unsub()

	// Surface connection status changes between messages.
	events, unsubBus := b.Subscribe("conn.", 16)
	defer unsubBus()
	go func() {
		for evt := range events {
			if evt.Kind != bus.KindConnStatus {
				continue
			}
			if change, ok := evt.Payload.(status.Change); ok {
				if change.From.Display() != change.To.Display() {
					fmt.Printf("-- %s --\n", change.To.Display())
				}
			}
		}
	}()

	if err := mgr.Open(identity); err != nil {
		return err
	}
	defer mgr.Close()

	go func() {
		history, err := client.FetchHistory(context.Background())
		if err != nil {
			fmt.Printf("-- history unavailable: %v --\n", err)
			return
		}
		if err := engine.SeedHistory(history); err != nil {
			fmt.Printf("-- history unavailable: %v --\n", err)
			return
		}
		for _, m := range log.Snapshot() {
			printOnce(m)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "/quit" {
			break
		}
		switch err := g.Submit(text); {
		case errors.Is(err, gate.ErrEmpty):
			// Nothing to send.
		case errors.Is(err, conn.ErrNotConnected):
			fmt.Printf("-- not connected (%s) --\n", machine.Current().Display())
		case err != nil:
			fmt.Printf("-- send failed: %v --\n", err)
		}
	}
	return scanner.Err()
}

func printMessage(identity session.Identity, m store.Message) {
	name := "peer"
	if m.Role == store.RoleUser {
		name = identity.DisplayName
	}
	fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), name, m.Content)
}
