package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"stockcast/pkg/stockcast"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	gainStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	neutralStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

var (
	serverURL  string
	duration   string
	chartStyle string
	predict    bool
	withNews   bool
	timeout    time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "stockcast-cli",
		Short:         "Query a running stockcast server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultURL := "http://localhost:8000"
	if v := os.Getenv("STOCKCAST_URL"); v != "" {
		defaultURL = v
	}
	root.PersistentFlags().StringVar(&serverURL, "server", defaultURL, "stockcast server base URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "request timeout")

	symbolsCmd := &cobra.Command{
		Use:   "symbols",
		Short: "List known symbols",
		Args:  cobra.NoArgs,
		RunE:  runSymbols,
	}

	viewCmd := &cobra.Command{
		Use:   "view <symbol>",
		Short: "Show current data and an optional forecast for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE:  runView,
	}
	viewCmd.Flags().StringVarP(&duration, "duration", "d", "3m", "chart duration: 1d, 1w, 1m, 3m, 6m or 1y")
	viewCmd.Flags().StringVar(&chartStyle, "style", "candlestick", "chart style: candlestick or line")
	viewCmd.Flags().BoolVarP(&predict, "predict", "p", false, "include a price forecast")
	viewCmd.Flags().BoolVarP(&withNews, "sentiment", "s", false, "include news sentiment")

	sentimentCmd := &cobra.Command{
		Use:   "sentiment <symbol>",
		Short: "Show the cached news sentiment for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE:  runSentiment,
	}

	root.AddCommand(symbolsCmd, viewCmd, sentimentCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func newContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func runSymbols(cmd *cobra.Command, _ []string) error {
	ctx, cancel := newContext()
	defer cancel()

	syms, err := stockcast.NewClient(serverURL).Symbols(ctx)
	if err != nil {
		return err
	}
	fmt.Println(headerStyle.Render(fmt.Sprintf("%d symbols", len(syms))))
	const perLine = 10
	for i := 0; i < len(syms); i += perLine {
		fmt.Println(strings.Join(syms[i:min(i+perLine, len(syms))], "  "))
	}
	return nil
}

func runView(cmd *cobra.Command, args []string) error {
	ctx, cancel := newContext()
	defer cancel()

	view, err := stockcast.NewClient(serverURL).GetStockData(ctx, stockcast.StockRequest{
		Symbol:            args[0],
		Duration:          duration,
		ChartStyle:        chartStyle,
		IncludePrediction: predict,
		IncludeSentiment:  withNews,
	})
	if err != nil {
		return err
	}

	d := view.StockData
	fmt.Println(headerStyle.Render(fmt.Sprintf("%s  %s", d.Symbol, d.CompanyName)))
	price := fmt.Sprintf("%.2f", d.CurrentPrice)
	if d.Change != nil && d.ChangePercent != nil {
		price += " " + colorSigned(*d.Change, fmt.Sprintf("%+.2f (%+.2f%%)", *d.Change, *d.ChangePercent))
	}
	printField("price", price)
	printOptional("prev close", d.PreviousClose, "%.2f")
	printOptional("market cap", d.MarketCap, "%.0f")
	printOptional("P/E", d.PERatio, "%.2f")
	printOptional("div yield", d.DividendYield, "%.4f")
	if d.FiftyTwoWeekLow != nil && d.FiftyTwoWeekHigh != nil {
		printField("52w range", fmt.Sprintf("%.2f - %.2f", *d.FiftyTwoWeekLow, *d.FiftyTwoWeekHigh))
	}
	printField("bars", fmt.Sprintf("%d over %s", len(d.Bars), d.Duration))

	if s := view.SentimentResult; s != nil {
		printSentiment(s)
	} else if withNews {
		printField("sentiment", neutralStyle.Render("pending"))
	}

	if len(view.Forecast) > 0 {
		first, last := view.Forecast[0], view.Forecast[len(view.Forecast)-1]
		fmt.Println(headerStyle.Render("forecast"))
		printField("points", fmt.Sprintf("%d", len(view.Forecast)))
		printField("from", fmt.Sprintf("%s  %.2f", first.Timestamp.Format(time.DateTime), first.Close))
		printField("to", fmt.Sprintf("%s  %.2f [%.2f, %.2f]", last.Timestamp.Format(time.DateTime), last.Close, last.Low, last.High))
	} else if predict {
		printField("forecast", neutralStyle.Render("unavailable"))
	}
	return nil
}

func runSentiment(cmd *cobra.Command, args []string) error {
	ctx, cancel := newContext()
	defer cancel()

	status, err := stockcast.NewClient(serverURL).Sentiment(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(headerStyle.Render(status.Symbol))
	if status.Sentiment == nil {
		state := "not computed"
		if status.Pending {
			state = "computing"
		}
		printField("sentiment", neutralStyle.Render(state))
		return nil
	}
	printSentiment(status.Sentiment)
	return nil
}

func printSentiment(s *stockcast.Sentiment) {
	printField("sentiment", colorSigned(s.Score, fmt.Sprintf("%s %+.3f", s.Label, s.Score)))
	printField("confidence", fmt.Sprintf("%.2f", s.Confidence))
	printField("p/n/n", fmt.Sprintf("%.2f / %.2f / %.2f", s.Details.Positive, s.Details.Negative, s.Details.Neutral))
}

func printField(label, value string) {
	fmt.Printf("  %s %s\n", labelStyle.Render(fmt.Sprintf("%-11s", label)), value)
}

func printOptional(label string, v *float64, format string) {
	if v != nil {
		printField(label, fmt.Sprintf(format, *v))
	}
}

func colorSigned(v float64, s string) string {
	switch {
	case v > 0:
		return gainStyle.Render(s)
	case v < 0:
		return lossStyle.Render(s)
	}
	return neutralStyle.Render(s)
}
