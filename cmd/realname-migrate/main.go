package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz"
	"github.com/DevRickLin/feishu-realname-sync/internal/biz/domain"
	"github.com/DevRickLin/feishu-realname-sync/internal/biz/usecase"
	"github.com/DevRickLin/feishu-realname-sync/internal/conf"
	"github.com/DevRickLin/feishu-realname-sync/internal/data"
	"github.com/DevRickLin/feishu-realname-sync/internal/infra/feishu"
	"github.com/DevRickLin/feishu-realname-sync/internal/logger"
	"github.com/DevRickLin/feishu-realname-sync/internal/service"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		chatID   string
		backend  string
		dbPath   string
		dryRun   bool
		announce bool
	)

	flagSet := pflag.NewFlagSet("realname-migrate", pflag.ContinueOnError)
	flagSet.StringVar(&chatID, "chat", "", "chat whose members are scanned (default: FEISHU_CHAT_ID)")
	flagSet.StringVar(&backend, "backend", "", "snapshot backend, sqlite or github (default: NAMES_BACKEND)")
	flagSet.StringVar(&dbPath, "db", "", "sqlite database path (default: NAMES_DB_PATH)")
	flagSet.BoolVar(&dryRun, "dry-run", false, "print what would be imported without writing")
	flagSet.BoolVar(&announce, "announce", false, "post the import result to the chat")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	_ = godotenv.Load()
	cfg := conf.LoadFromEnv()
	if chatID != "" {
		cfg.Feishu.ChatID = chatID
	}
	if backend != "" {
		cfg.Storage.Backend = backend
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Feishu.ChatID == "" {
		return fmt.Errorf("no chat to scan: pass --chat or set FEISHU_CHAT_ID")
	}

	log := logger.NewWithWriter(os.Stderr, cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, log)
	repos, err := data.NewRepositories(client, cfg.ToDataOptions())
	if err != nil {
		return fmt.Errorf("create repositories: %w", err)
	}
	defer repos.Close()

	engine := biz.NewUsecases(biz.Repos{
		Snapshot: repos.Snapshot,
		Member:   repos.Member,
		Policy:   repos.Policy,
	}, cfg.Storage.ToPersistConfig(), cfg.ToSyncConfig(), nil, log).Sync
	engine.Load(ctx)

	members, err := repos.Member.ListMembers(ctx)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}

	if dryRun {
		return printPlan(engine, members)
	}

	imported, err := engine.ImportFromLabels(ctx, members)
	if err != nil {
		return fmt.Errorf("imported %d names but writing them failed: %w", imported, err)
	}
	fmt.Printf("Migration finished: %d of %d members imported, %d bindings total\n",
		imported, len(members), engine.Store().Len())

	if announce {
		svc := service.NewRealNameService(engine, repos.Message, cfg.Messages, cfg.Naming.MaxLabelLength, log)
		if err := svc.AnnounceImport(ctx, cfg.Feishu.ChatID, imported); err != nil {
			return fmt.Errorf("announce import: %w", err)
		}
	}
	return nil
}

// printPlan lists the members an import would bind
func printPlan(engine *usecase.SyncEngine, members []domain.Member) error {
	labels := make(map[string]string, len(members))
	for _, m := range members {
		labels[m.OpenID] = m.Label()
	}

	plan := engine.ImportCandidates(members)
	for _, b := range plan {
		fmt.Printf("%s\t%s\t%s\n", b.MemberID, labels[b.MemberID], b.RealName)
	}
	fmt.Printf("Dry run: %d of %d members would be imported\n", len(plan), len(members))
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `realname-migrate imports real names that members already carry as
"<nickname> | <real name>" into the names snapshot. Members with an
existing binding are left alone.

Usage:
  realname-migrate [flags]

Flags:
%s`, flagSet.FlagUsages())
}
