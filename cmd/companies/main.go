package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	edgar "github.com/ivarrierCisco/EDGAR"
)

func main() {
	var email string
	flag.StringVar(&email, "email", "", "Email for SEC User-Agent header (or use SEC_EMAIL env var)")
	flag.StringVar(&email, "e", "", "Email for SEC User-Agent (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: companies [options] [search term]\n\n")
		fmt.Fprintf(os.Stderr, "List SEC EDGAR registrants, optionally filtered by a search term.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  companies apple\n")
		fmt.Fprintf(os.Stderr, "  companies -e you@example.com semiconductor\n")
	}

	flag.Parse()

	if err := run(email, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(email, term string) error {
	var err error
	if email == "" {
		email, err = edgar.GetSecEmail()
		if err != nil {
			return err
		}
	}

	client, err := edgar.NewClient(email)
	if err != nil {
		return err
	}

	ctx := context.Background()
	directory := edgar.NewDirectory(client)

	var companies []edgar.CompanyRecord
	if term == "" {
		companies, err = directory.Companies(ctx)
	} else {
		companies, err = directory.Search(ctx, term)
	}
	if err != nil {
		return err
	}

	if len(companies) == 0 {
		fmt.Println("No matching companies.")
		return nil
	}

	for _, c := range companies {
		tick := c.Ticker
		if tick == "" {
			tick = "-"
		}
		fmt.Printf("%-10s  %-8s  %s\n", c.CIK, tick, c.Name)
	}
	return nil
}
