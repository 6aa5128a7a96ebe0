package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/boundary"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/db"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/market"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/store"
)

func main() {
	godotenv.Load(".env.local")
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("load-boundaries", flag.ContinueOnError)
	var (
		path     = fs.String("file", "", "GeoJSON FeatureCollection of submarket polygons (required)")
		cityName = fs.String("city", "austin", "city (austin|sanantonio)")
		idProp   = fs.String("id-prop", boundary.DefaultIDProp, "feature property holding the submarket id")
		nameProp = fs.String("name-prop", boundary.DefaultNameProp, "feature property holding the submarket name")
		dryRun   = fs.Bool("dry-run", false, "parse and validate without writing")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *path == "" {
		fs.Usage()
		return 2
	}
	city, err := market.Lookup(*cityName)
	if err != nil {
		log.Print(err)
		return 1
	}

	cfg := boundary.Config{
		Path:     *path,
		City:     city,
		IDProp:   *idProp,
		NameProp: *nameProp,
		DryRun:   *dryRun,
	}

	var loader boundary.Loader
	if !cfg.DryRun {
		if err := db.Connect(); err != nil {
			log.Print(err)
			return 1
		}
		defer db.Close(db.DB)
		loader = store.New(db.DB, city)
	}

	res, err := boundary.Run(context.Background(), cfg, loader)
	if err != nil {
		log.Print(err)
		return 1
	}
	log.Printf("parsed %d submarkets, loaded %d", res.Parsed, res.Loaded)
	return 0
}
