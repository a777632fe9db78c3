package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	edgar "github.com/ivarrierCisco/EDGAR"
)

func main() {
	// Define flags
	var (
		email        string
		frame        string
		grossProfit  bool
		csvPath      string
		htmlPath     string
		verbose      bool
		listQuarters bool
	)

	flag.StringVar(&email, "email", "", "Email for SEC User-Agent header (or use SEC_EMAIL env var)")
	flag.StringVar(&email, "e", "", "Email for SEC User-Agent (shorthand)")
	flag.StringVar(&frame, "quarter", "", "Quarter to compare, e.g. CY2023Q4 (default: latest available)")
	flag.StringVar(&frame, "q", "", "Quarter to compare (shorthand)")
	flag.BoolVar(&grossProfit, "gross-profit", true, "Include gross profit and gross margin (not all filers disclose it)")
	flag.StringVar(&csvPath, "csv", "", "Write the quarterly table to this CSV file")
	flag.StringVar(&htmlPath, "html", "", "Write an HTML report to this file")
	flag.BoolVar(&verbose, "v", false, "Verbose (debug) logging")
	flag.BoolVar(&listQuarters, "list", false, "List available quarters and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: quarterly [options] <company>\n\n")
		fmt.Fprintf(os.Stderr, "Fetch quarterly financials from SEC EDGAR and compute QoQ/YoY changes.\n\n")
		fmt.Fprintf(os.Stderr, "Arguments:\n")
		fmt.Fprintf(os.Stderr, "  <company>    Company name or ticker (e.g. \"Apple\" or AAPL)\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  quarterly -q CY2023Q4 Apple\n")
		fmt.Fprintf(os.Stderr, "  quarterly -csv intel.csv -html intel.html Intel\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		fmt.Fprintf(os.Stderr, "  SEC_EMAIL    Email for SEC User-Agent header\n")
	}

	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: company name or ticker required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0), email, frame, grossProfit, csvPath, htmlPath, verbose, listQuarters); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(company, email, frame string, grossProfit bool, csvPath, htmlPath string, verbose, listQuarters bool) error {
	var err error
	if email == "" {
		email, err = edgar.GetSecEmail()
		if err != nil {
			return err
		}
	}

	log := zerolog.Nop()
	if verbose {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	}

	client, err := edgar.NewClient(email, edgar.WithLogger(log))
	if err != nil {
		return err
	}

	ctx := context.Background()

	directory := edgar.NewDirectory(client)
	cik, err := directory.LookupCIK(ctx, company)
	if err != nil {
		return err
	}
	log.Debug().Str("company", company).Str("cik", cik).Msg("resolved company")

	resolver := edgar.NewTagResolver(client, edgar.WithResolverLogger(log))
	revenueTag := resolver.ResolveRevenueTag(ctx, company, cik)

	builder := edgar.NewQuarterlySeriesBuilder(client, edgar.WithBuilderLogger(log))
	result, err := builder.Build(ctx, edgar.BuildOptions{
		CIK:                cik,
		RevenueTag:         revenueTag,
		IncludeGrossProfit: grossProfit,
	})
	if err != nil {
		return err
	}

	table := result.Table
	if table.Empty() {
		fmt.Println("No quarterly financial data available.")
		return nil
	}

	for metric, metricErr := range result.MetricErrors {
		log.Debug().Str("metric", metric).Err(metricErr).Msg("metric unavailable")
	}

	if listQuarters {
		for _, f := range table.Frames() {
			fmt.Println(f)
		}
		return nil
	}

	if frame == "" {
		frame = table.Frames()[0]
	}

	comparison, err := edgar.Compare(table, frame)
	if err != nil {
		return err
	}

	fmt.Println(edgar.RenderComparison(comparison))
	fmt.Println(edgar.RenderTable(table))

	if csvPath != "" {
		if err := writeFile(csvPath, func(f *os.File) error {
			return edgar.WriteTableCSV(f, table)
		}); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", csvPath)
	}

	if htmlPath != "" {
		if err := writeFile(htmlPath, func(f *os.File) error {
			return edgar.WriteHTMLReport(f, company, table, comparison)
		}); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", htmlPath)
	}

	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	return write(f)
}
