package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jamespfennell/gtfsgo"
	"github.com/jamespfennell/gtfsgo/aggregate"
	"github.com/jamespfennell/gtfsgo/config"
	"github.com/jamespfennell/gtfsgo/export"
	"github.com/jamespfennell/gtfsgo/features"
	"github.com/jamespfennell/gtfsgo/fetch"
	"github.com/jamespfennell/gtfsgo/server"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
	infoColor = color.New(color.FgCyan)
)

func main() {
	_ = godotenv.Load()
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	outputFlag := &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "directory to write the output files to",
		EnvVars: []string{"GTFSGO_OUTPUT"},
	}
	aggregateFlags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "no-unify",
			Usage: "do not group similar stops",
		},
		&cli.StringFlag{
			Name:  "delimiter",
			Usage: "group stops whose IDs share the part before the last occurrence of the delimiter",
		},
		&cli.Float64Flag{
			Name:  "max-distance-degree",
			Usage: "distance in degrees within which stops with the same name are grouped",
		},
		&cli.StringFlag{
			Name:  "date",
			Usage: "only count trips operating on the YYYYMMDD date",
		},
		&cli.StringFlag{
			Name:  "begin-time",
			Usage: "only count stop times departing at or after hhmmss",
		},
		&cli.StringFlag{
			Name:  "end-time",
			Usage: "only count stop times departing before hhmmss",
		},
	}

	app := &cli.App{
		Name:  "gtfsgo",
		Usage: "render GTFS static feeds as GeoJSON and aggregate route frequencies",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML configuration file",
				EnvVars: []string{"GTFSGO_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "simple",
				Usage:     "write the routes and stops of a feed",
				ArgsUsage: "source",
				Flags: []cli.Flag{
					outputFlag,
					&cli.BoolFlag{
						Name:  "ignore-shapes",
						Usage: "build routes from stop times even if the feed has shapes",
					},
					&cli.BoolFlag{
						Name:  "ignore-no-route",
						Usage: "skip stops that no route serves",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					static, err := loadSource(cfg.Source)
					if err != nil {
						return err
					}
					result := export.Result{
						Routes: features.ReadRoutes(static, cfg.IgnoreShapes),
						Stops:  features.ReadStops(static, cfg.IgnoreNoRoute),
					}
					if err := export.Write(c.Context, cfg.Output, result); err != nil {
						return fmt.Errorf("failed to write output: %w", err)
					}
					fmt.Printf("Wrote %s routes and %s stops to %s\n",
						okColor.Sprint(len(result.Routes.Features)),
						okColor.Sprint(len(result.Stops.Features)),
						infoColor.Sprint(cfg.Output),
					)
					return nil
				},
			},
			{
				Name:      "aggregate",
				Usage:     "group similar stops and count trips between them",
				ArgsUsage: "source",
				Flags: append([]cli.Flag{
					outputFlag,
					&cli.StringFlag{
						Name:  "sqlite",
						Usage: "also write the aggregation to a SQLite database at this path",
					},
				}, aggregateFlags...),
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					static, err := loadSource(cfg.Source)
					if err != nil {
						return err
					}
					a, err := aggregate.New(static, cfg.AggregateOptions())
					if err != nil {
						return err
					}
					result := export.Result{
						AggregatedRoutes: a.ReadRouteFrequency(),
						AggregatedStops:  a.ReadInterpolatedStops(),
						Relations:        a.ReadStopRelations(),
					}
					if cfg.Aggregate.SQLite != "" {
						result.SQLite = &export.SQLite{Path: cfg.Aggregate.SQLite, Aggregation: a}
					}
					if err := export.Write(c.Context, cfg.Output, result); err != nil {
						return fmt.Errorf("failed to write output: %w", err)
					}
					printWarnings(len(a.Warnings()))
					fmt.Printf("Wrote %s paths and %s unified stops to %s\n",
						okColor.Sprint(len(result.AggregatedRoutes.Features)),
						okColor.Sprint(len(result.AggregatedStops.Features)),
						infoColor.Sprint(cfg.Output),
					)
					return nil
				},
			},
			{
				Name:  "fetch",
				Usage: "search and download feeds from a GTFS data repository",
				Subcommands: []*cli.Command{
					{
						Name:  "search",
						Usage: "list the feeds valid on a date",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "date",
								Usage:    "YYYY-MM-DD date the feeds must be valid on",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "extent",
								Usage: "bounding box minLon,minLat,maxLon,maxLat",
							},
							&cli.StringFlag{
								Name:  "pref",
								Usage: "prefecture code",
							},
							&cli.StringFlag{
								Name:    "repository-url",
								Usage:   "base URL of the repository API",
								EnvVars: []string{"GTFSGO_REPOSITORY_URL"},
							},
						},
						Action: func(c *cli.Context) error {
							cfg, err := loadConfig(c)
							if err != nil {
								return err
							}
							feeds, err := fetch.SearchFeeds(c.Context, http.DefaultClient, cfg.Fetch.RepositoryURL, fetch.Query{
								TargetDate: c.String("date"),
								Extent:     c.String("extent"),
								Pref:       c.String("pref"),
							})
							if err != nil {
								return fmt.Errorf("failed to search feeds: %w", err)
							}
							fmt.Printf("%d feeds:\n", len(feeds))
							for _, feed := range feeds {
								fmt.Printf("- %s  %s  %s - %s  %s\n",
									infoColor.Sprint(feed.OrganizationName),
									infoColor.Sprint(feed.FeedName),
									feed.FileFromDate,
									feed.FileToDate,
									feed.FileURL,
								)
							}
							return nil
						},
					},
					{
						Name:      "download",
						Usage:     "download a feed zip archive",
						ArgsUsage: "url",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "dir",
								Usage: "directory to save the archive in",
								Value: os.TempDir(),
							},
						},
						Action: func(c *cli.Context) error {
							if c.Args().Len() == 0 {
								return fmt.Errorf("a URL to download was not provided")
							}
							path, err := fetch.Download(c.Context, http.DefaultClient, c.Args().First(), c.String("dir"))
							if err != nil {
								return err
							}
							fmt.Printf("Saved feed to %s\n", okColor.Sprint(path))
							return nil
						},
					},
				},
			},
			{
				Name:      "serve",
				Usage:     "serve the routes, stops and aggregation of a feed over HTTP",
				ArgsUsage: "source",
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Usage:   "port to listen on",
						EnvVars: []string{"PORT"},
					},
					&cli.StringSliceFlag{
						Name:  "allowed-origin",
						Usage: "origin allowed to request the collections from a browser",
					},
				}, aggregateFlags...),
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					static, err := loadSource(cfg.Source)
					if err != nil {
						return err
					}
					a, err := aggregate.New(static, cfg.AggregateOptions())
					if err != nil {
						return err
					}
					handler, err := server.New(export.Result{
						Routes:           features.ReadRoutes(static, cfg.IgnoreShapes),
						Stops:            features.ReadStops(static, cfg.IgnoreNoRoute),
						AggregatedRoutes: a.ReadRouteFrequency(),
						AggregatedStops:  a.ReadInterpolatedStops(),
						Relations:        a.ReadStopRelations(),
					}, server.Options{AllowedOrigins: c.StringSlice("allowed-origin")})
					if err != nil {
						return err
					}
					addr := fmt.Sprintf(":%d", cfg.Server.Port)
					log.Printf("Serving on %s", addr)
					return http.ListenAndServe(addr, handler)
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Println(errColor.Sprint("Error:"), err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, if any, and applies the flags that were set on top of it.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}
	if c.Args().Len() > 0 {
		cfg.Source = c.Args().First()
	}
	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}
	if c.IsSet("ignore-shapes") {
		cfg.IgnoreShapes = c.Bool("ignore-shapes")
	}
	if c.IsSet("ignore-no-route") {
		cfg.IgnoreNoRoute = c.Bool("ignore-no-route")
	}
	if c.IsSet("no-unify") {
		cfg.Aggregate.NoUnify = c.Bool("no-unify")
	}
	if c.IsSet("delimiter") {
		cfg.Aggregate.Delimiter = c.String("delimiter")
	}
	if c.IsSet("max-distance-degree") {
		cfg.Aggregate.MaxDistanceDegree = c.Float64("max-distance-degree")
	}
	if c.IsSet("date") {
		cfg.Aggregate.Date = c.String("date")
	}
	if c.IsSet("begin-time") {
		cfg.Aggregate.BeginTime = c.String("begin-time")
	}
	if c.IsSet("end-time") {
		cfg.Aggregate.EndTime = c.String("end-time")
	}
	if c.IsSet("sqlite") {
		cfg.Aggregate.SQLite = c.String("sqlite")
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if c.IsSet("repository-url") {
		cfg.Fetch.RepositoryURL = c.String("repository-url")
	}
	if cfg.Fetch.RepositoryURL == "" {
		cfg.Fetch.RepositoryURL = fetch.DefaultRepositoryURL
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// loadSource parses a GTFS static zip archive or a directory of tables.
func loadSource(source string) (*gtfs.Static, error) {
	if source == "" {
		return nil, fmt.Errorf("a path to the GTFS static feed was not provided")
	}
	info, err := os.Stat(source)
	if err != nil {
		return nil, err
	}
	var static *gtfs.Static
	if info.IsDir() {
		static, err = gtfs.ParseStaticDir(source)
	} else {
		var b []byte
		b, err = os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", source, err)
		}
		static, err = gtfs.ParseStatic(b)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse GTFS static data: %w", err)
	}
	printWarnings(len(static.Warnings))
	fmt.Printf("Loaded %s stops, %s routes and %s trips from %s\n",
		okColor.Sprint(len(static.Stops)),
		okColor.Sprint(len(static.Routes)),
		okColor.Sprint(len(static.Trips)),
		infoColor.Sprint(strings.TrimSuffix(source, "/")),
	)
	return static, nil
}

func printWarnings(n int) {
	if n == 0 {
		return
	}
	fmt.Printf("%s (see log)\n", warnColor.Sprintf("%d warnings", n))
}
