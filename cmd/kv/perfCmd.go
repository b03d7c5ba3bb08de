package kv

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/bKV/cmd/util"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for local bKV stores",
		Long:    "",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix = "__test"
	perfKeySpread = 100
	perfTree      = "__perf"
	perfSkip      = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfKeySpread = viper.GetInt("keys")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func shouldSkip(name string) bool {
	for _, skip := range perfSkip {
		if skip == name {
			return true
		}
	}
	return false
}

func perfKey(i int) string {
	return fmt.Sprintf("%s-%d", perfKeyPrefix, i%perfKeySpread)
}

// measured wraps one store operation so that every iteration feeds the
// latency histogram
func measured(histogram gometrics.Histogram, op func() error) {
	start := time.Now()
	if err := op(); err != nil {
		log.Printf("perf op failed: %v", err)
	}
	histogram.Update(time.Since(start).Nanoseconds())
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for local bKV stores")
	fmt.Println()
	fmt.Printf("Keys: %d\n", perfKeySpread)
	fmt.Println()
	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)
	histograms := make(map[string]gometrics.Histogram)

	bench := func(name string, op func() error) {
		if shouldSkip(name) {
			return
		}

		histogram := gometrics.NewHistogram(gometrics.NewExpDecaySample(1028, 0.015))
		histograms[name] = histogram

		results[name] = testing.Benchmark(func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				measured(histogram, op)
			}
		})

		printResult(name, results[name], histogram)
	}

	counter := 0

	bench("set", func() error {
		counter++
		return localStore.Set(perfTree, perfKey(counter), []byte("test"))
	})

	bench("get", func() error {
		counter++
		_, _, err := localStore.Get(perfTree, perfKey(counter))
		return err
	})

	bench("has", func() error {
		counter++
		_, err := localStore.Has(perfTree, perfKey(counter))
		return err
	})

	bench("scan", func() error {
		_, err := localStore.Scan(perfTree, "", 100)
		return err
	})

	bench("delete", func() error {
		counter++
		_, err := localStore.Delete(perfTree, perfKey(counter))
		return err
	})

	// Optionally dump everything as CSV
	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeCSV(csvPath, results, histograms); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", csvPath)
	}

	return nil
}

func printResult(name string, result testing.BenchmarkResult, histogram gometrics.Histogram) {
	fmt.Printf("%-8s %12d ops %14.1f ns/op  p50=%.0fns p95=%.0fns p99=%.0fns max=%dns\n",
		name, result.N, float64(result.T.Nanoseconds())/float64(result.N),
		histogram.Percentile(0.5), histogram.Percentile(0.95), histogram.Percentile(0.99),
		histogram.Max())
}

func writeCSV(path string, results map[string]testing.BenchmarkResult, histograms map[string]gometrics.Histogram) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"benchmark", "ops", "ns_per_op", "p50_ns", "p95_ns", "p99_ns", "max_ns"}); err != nil {
		return err
	}

	for name, result := range results {
		histogram := histograms[name]
		record := []string{
			name,
			strconv.Itoa(result.N),
			strconv.FormatFloat(float64(result.T.Nanoseconds())/float64(result.N), 'f', 1, 64),
			strconv.FormatFloat(histogram.Percentile(0.5), 'f', 0, 64),
			strconv.FormatFloat(histogram.Percentile(0.95), 'f', 0, 64),
			strconv.FormatFloat(histogram.Percentile(0.99), 'f', 0, 64),
			strconv.FormatInt(histogram.Max(), 10),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return nil
}
