// Package main provides a solve-report tool. It reads a runlog database
// produced by tagmapper and renders an HTML report of optimizer convergence
// over frames: normalized reprojection error, iteration counts, and factor
// counts, charted with go-echarts.
//
// Usage:
//
//	solve-report -db runlog.db -out report.html
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/fiducial-data/tagmapper/internal/runlog"
)

func main() {
	dbPath := flag.String("db", "runlog.db", "runlog database to report on")
	outPath := flag.String("out", "report.html", "output HTML file")
	flag.Parse()

	db, err := runlog.Open(*dbPath)
	if err != nil {
		log.Fatalf("open runlog: %v", err)
	}
	defer db.Close()

	runs, err := db.Runs()
	if err != nil {
		log.Fatalf("read runs: %v", err)
	}
	if len(runs) == 0 {
		log.Fatalf("no solve runs recorded in %s", *dbPath)
	}

	frames := make([]string, 0, len(runs))
	errData := make([]opts.LineData, 0, len(runs))
	iterData := make([]opts.LineData, 0, len(runs))
	factorData := make([]opts.LineData, 0, len(runs))
	for _, r := range runs {
		frames = append(frames, fmt.Sprintf("%d", r.Frame))
		errData = append(errData, opts.LineData{Value: r.NormalizedError})
		iterData = append(iterData, opts.LineData{Value: r.Iterations})
		factorData = append(factorData, opts.LineData{Value: r.NumFactors})
	}

	errChart := charts.NewLine()
	errChart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Normalized reprojection error",
			Subtitle: fmt.Sprintf("%d solve runs from %s", len(runs), *dbPath),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "log", Name: "error"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
	)
	errChart.SetXAxis(frames).
		AddSeries("normalized error", errData,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false), ShowSymbol: opts.Bool(true)}),
		)

	iterChart := charts.NewLine()
	iterChart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Optimizer iterations and factor count"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
	)
	iterChart.SetXAxis(frames).
		AddSeries("iterations", iterData).
		AddSeries("projection factors", factorData)

	page := components.NewPage()
	page.AddCharts(errChart, iterChart)

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("create %s: %v", *outPath, err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		log.Fatalf("render report: %v", err)
	}
	log.Printf("wrote %s (%d runs)", *outPath, len(runs))
}
