package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/db"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/market"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/permit"
	"github.com/rwaterhouse1/austin-mf-intelligence/internal/store"
)

// check-zip explains how permits in one ZIP were assigned: the crosswalk
// entry, every stored permit with its match source, and optionally which
// polygons contain a given point.
func main() {
	godotenv.Load(".env.local")
	os.Exit(run(os.Args[1:], os.Stdout))
}

type options struct {
	city     market.City
	zip      string
	lat, lng float64
}

// parseArgs returns exit code 2 on usage errors and 1 on an unknown city.
func parseArgs(args []string, out io.Writer) (options, int) {
	fs := flag.NewFlagSet("check-zip", flag.ContinueOnError)
	fs.SetOutput(out)
	var (
		cityName = fs.String("city", "austin", "city (austin|sanantonio)")
		zipArg   = fs.String("zip", "", "ZIP code to inspect (required)")
		lat      = fs.Float64("lat", 0, "optional latitude for a polygon lookup")
		lng      = fs.Float64("lng", 0, "optional longitude for a polygon lookup")
	)
	if err := fs.Parse(args); err != nil {
		return options{}, 2
	}

	zip := permit.NormalizeZip(*zipArg)
	if zip == "" {
		fs.Usage()
		return options{}, 2
	}
	city, err := market.Lookup(*cityName)
	if err != nil {
		fmt.Fprintln(out, err)
		return options{}, 1
	}
	return options{city: city, zip: zip, lat: *lat, lng: *lng}, 0
}

func run(args []string, out io.Writer) int {
	opts, code := parseArgs(args, out)
	if code != 0 {
		return code
	}

	if err := db.Connect(); err != nil {
		log.Print(err)
		return 1
	}
	defer db.Close(db.DB)

	if err := report(context.Background(), out, store.New(db.DB, opts.city), opts); err != nil {
		log.Printf("Query error: %v", err)
		return 1
	}
	return 0
}

func report(ctx context.Context, out io.Writer, st *store.Store, opts options) error {
	city, zip := opts.city, opts.zip

	stored, ok, err := st.CrosswalkSubmarket(ctx, zip)
	if err != nil {
		return err
	}
	embedded, embeddedOK := city.SubmarketForZip(zip)

	fmt.Fprintf(out, "=== %s ZIP %s ===\n", city.Label, zip)
	if ok {
		fmt.Fprintf(out, "crosswalk (db):       %s\n", stored)
	} else {
		fmt.Fprintf(out, "crosswalk (db):       none\n")
	}
	if embeddedOK {
		fmt.Fprintf(out, "crosswalk (embedded): %s\n", embedded)
		if ok && stored != embedded {
			fmt.Fprintln(out, "  ! stored crosswalk differs, rerun `permits setup`")
		}
	}

	permits, err := st.PermitsByZip(ctx, zip)
	if err != nil {
		return err
	}
	bySource := map[string]int{}
	for _, p := range permits {
		src := string(p.MatchSource)
		if src == "" {
			src = "unmatched"
		}
		bySource[src]++
	}

	fmt.Fprintf(out, "\nPermits in ZIP %s: %d\n", zip, len(permits))
	for src, n := range bySource {
		fmt.Fprintf(out, "  %-10s %d\n", src, n)
	}
	fmt.Fprintln(out)
	for _, p := range permits {
		sub := p.SubmarketName
		if sub == "" {
			sub = "-"
		}
		fmt.Fprintf(out, "  %s  %-18s %4d units  %-9s %-24s %s\n",
			p.IssueDate.Format("2006-01-02"), p.PermitNum, p.TotalUnits, p.MatchSource, sub, p.Address)
	}

	if opts.lat == 0 || opts.lng == 0 {
		return nil
	}
	if !city.BBox.Contains(opts.lat, opts.lng) {
		fmt.Fprintf(out, "\n(%f, %f) lies outside the %s metro box\n", opts.lat, opts.lng, city.Label)
	}
	matches, err := st.FindSubmarketsByPoint(ctx, opts.lat, opts.lng)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nPolygons containing (%f, %f): %d\n", opts.lat, opts.lng, len(matches))
	for i, m := range matches {
		marker := " "
		if i == 0 {
			marker = "*"
		}
		fmt.Fprintf(out, "  %s %s  %s\n", marker, m.SubmarketID, m.SubmarketName)
	}
	return nil
}
