package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imoveplus/crm/backend"
	"github.com/imoveplus/crm/backend/data"
	"github.com/imoveplus/crm/backend/funnel"
	"github.com/imoveplus/crm/backend/importer"
	"github.com/imoveplus/crm/backend/scheduler"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli"
	"github.com/vaughan0/go-ini"
	log "gopkg.in/inconshreveable/log15.v2"
)

const version = "0.1.0"

func main() {
	app := cli.NewApp()
	app.Name = "crm"
	app.Usage = "real estate CRM with sales funnel and listing feeds"
	app.Version = version

	configFlag := cli.StringFlag{Name: "config, c", Value: "crm.conf", Usage: "path to config file"}

	app.Commands = []cli.Command{
		{
			Name:        "server",
			ShortName:   "s",
			Usage:       "run the server",
			Description: "run the CRM API, feed server and funnel aging job",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "address, a", Value: "127.0.0.1", Usage: "address to listen on"},
				cli.StringFlag{Name: "port, p", Value: "8080", Usage: "port to listen on"},
				configFlag,
			},
			Action: Serve,
		},
		{
			Name:   "migrate",
			Usage:  "migrate the database to the latest schema",
			Flags:  []cli.Flag{configFlag},
			Action: Migrate,
		},
		{
			Name:      "create-user",
			Usage:     "create a user",
			ArgsUsage: "email",
			Flags: []cli.Flag{
				configFlag,
				cli.StringFlag{Name: "name, n", Usage: "display name"},
				cli.StringFlag{Name: "password, p", Usage: "password to set (random when omitted)"},
			},
			Action: CreateUser,
		},
		{
			Name:      "import-properties",
			Usage:     "import property listings from a CSV file",
			ArgsUsage: "file.csv",
			Flags: []cli.Flag{
				configFlag,
				cli.StringFlag{Name: "user, u", Usage: "email of the user owning the listings"},
				cli.StringFlag{Name: "encoding, e", Usage: "input character set, e.g. latin1 (default UTF-8)"},
				cli.IntFlag{Name: "concurrency", Value: importer.DefaultConcurrency, Usage: "maximum concurrent inserts"},
			},
			Action: ImportProperties,
		},
		{
			Name:  "funnel",
			Usage: "inspect and move funnel items on a running server",
			Subcommands: []cli.Command{
				{
					Name:   "summary",
					Usage:  "print item count and value per stage",
					Flags:  funnelFlags(),
					Action: FunnelSummary,
				},
				{
					Name:      "move",
					Usage:     "move an item to another stage",
					ArgsUsage: "item-id stage",
					Flags:     funnelFlags(),
					Action:    FunnelMove,
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func funnelFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{Name: "url", Value: "http://127.0.0.1:8080/api", Usage: "API root URL"},
		cli.StringFlag{Name: "session", EnvVar: "CRM_SESSION", Usage: "session id"},
	}
}

func loadHTTPConfig(c *cli.Context, conf ini.File) (backend.HTTPConfig, error) {
	config := backend.HTTPConfig{TestEndpoints: os.Getenv("TEST_ENDPOINTS") != ""}
	if c.IsSet("address") {
		config.ListenAddress = c.String("address")
	}
	if c.IsSet("port") {
		config.ListenPort = c.String("port")
	}

	return backend.LoadHTTPConfig(conf, config)
}

func setup(ctx context.Context, c *cli.Context) (ini.File, log.Logger, *pgxpool.Pool, error) {
	conf, err := backend.LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := backend.NewLogger(conf)
	if err != nil {
		return nil, nil, nil, err
	}

	pool, err := backend.NewPool(ctx, conf, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	return conf, logger, pool, nil
}

func Serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conf, logger, pool, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer pool.Close()

	httpConfig, err := loadHTTPConfig(c, conf)
	if err != nil {
		return err
	}

	handler, err := backend.NewAppServer(httpConfig, pool, logger)
	if err != nil {
		return err
	}

	aging := scheduler.NewAging(pool, backend.AgingSpec(conf), logger.New("module", "scheduler"))
	if err := aging.Start(); err != nil {
		return err
	}
	defer aging.Stop()

	listenAt := fmt.Sprintf("%s:%s", httpConfig.ListenAddress, httpConfig.ListenPort)
	server := &http.Server{Addr: listenAt, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Starting to listen on: %s\n", listenAt)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("Could not start web server: %w", err)
	}

	return nil
}

func Migrate(c *cli.Context) error {
	ctx := context.Background()

	_, logger, pool, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	return backend.Migrate(ctx, conn.Conn(), logger.New("module", "migrate"))
}

func CreateUser(c *cli.Context) error {
	if len(c.Args()) != 1 {
		cli.ShowCommandHelp(c, c.Command.Name)
		return errors.New("email is required")
	}
	email := c.Args()[0]

	ctx := context.Background()
	_, _, pool, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer pool.Close()

	password := c.String("password")
	if password == "" {
		password, err = backend.GenRandPassword()
		if err != nil {
			return err
		}
	}

	userID, err := backend.CreateUser(ctx, pool, c.String("name"), email, password)
	if err != nil {
		return err
	}

	fmt.Println("User:", userID)
	fmt.Println("Email:", email)
	fmt.Println("Password:", password)
	return nil
}

func ImportProperties(c *cli.Context) error {
	if len(c.Args()) != 1 {
		cli.ShowCommandHelp(c, c.Command.Name)
		return errors.New("CSV file is required")
	}
	if c.String("user") == "" {
		return errors.New("--user is required")
	}

	ctx := context.Background()
	_, logger, pool, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer pool.Close()

	user, err := data.SelectUserByEmail(ctx, pool, c.String("user"))
	if err != nil {
		return fmt.Errorf("user %s: %w", c.String("user"), err)
	}

	file, err := os.Open(c.Args()[0])
	if err != nil {
		return err
	}
	defer file.Close()

	rows, err := importer.Parse(file, c.String("encoding"), user.ID)
	if err != nil {
		return err
	}

	result, err := importer.Import(ctx, importer.DBInserter{DB: pool}, rows, c.Int("concurrency"), logger.New("module", "import"))
	fmt.Println("Imported:", result.Success)
	fmt.Println("Errors:", result.Errors)
	fmt.Println("Total:", result.Total())
	return err
}

func newBoard(c *cli.Context) (*funnel.Board, error) {
	if c.String("session") == "" {
		return nil, errors.New("--session is required")
	}

	logger := log.New("module", "funnel")
	backend.SetFilterHandler("warn", logger, log.StderrHandler)

	board := funnel.NewBoard(funnel.NewClient(c.String("url"), c.String("session")), logger)
	board.OnRevert = func(itemID string, stage funnel.Stage, err error) {
		fmt.Printf("Could not move %s to %s, change reverted: %v\n", itemID, stage, err)
	}
	return board, nil
}

func FunnelSummary(c *cli.Context) error {
	board, err := newBoard(c)
	if err != nil {
		return err
	}

	board.Load(context.Background())
	if board.State() == funnel.StateError {
		return errors.New("failed to load funnel items")
	}

	for _, s := range board.Summary() {
		fmt.Printf("%-16s %5d %16.2f\n", s.Stage, s.Count, s.TotalValue)
	}
	return nil
}

func FunnelMove(c *cli.Context) error {
	if len(c.Args()) != 2 {
		cli.ShowCommandHelp(c, c.Command.Name)
		return errors.New("item id and stage are required")
	}
	stage, err := funnel.ParseStage(c.Args()[1])
	if err != nil {
		return err
	}

	board, err := newBoard(c)
	if err != nil {
		return err
	}

	ctx := context.Background()
	board.Load(ctx)
	if board.State() == funnel.StateError {
		return errors.New("failed to load funnel items")
	}

	pending := board.Move(ctx, c.Args()[0], stage)
	if pending == nil {
		fmt.Println("Nothing to do")
		return nil
	}
	if err := pending.Wait(); err != nil {
		return err
	}

	fmt.Printf("Moved %s to %s\n", pending.ItemID, pending.Stage)
	return nil
}
