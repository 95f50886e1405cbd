// Command flatelf converts an ELF executable into a FLATELF image. It
// supports writing the container or the raw flat binary to a file,
// serving the container over TCP (the input is re-read with every
// connection) and inspecting an existing container.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flatelf/flatelf"
	"github.com/flatelf/flatelf/metrics"
	"github.com/flatelf/flatelf/server"
)

var strictOverlap = flag.Bool("strict-overlap", false,
	"fail on overlapping LOAD segments instead of letting the higher segment win")

var cacheSize = flag.Int("cache-size", 0,
	"number of encoded images to cache in tcp mode, 0 keeps the read-per-connection default")

var metricsAddr = flag.String("metrics-addr", "",
	"expose prometheus metrics on this address in tcp mode")

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 2 {
		usage()
		os.Exit(2)
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))

	input := flag.Arg(0)
	mode, output, ok := strings.Cut(flag.Arg(1), ":")
	if !ok {
		usage()
		os.Exit(2)
	}

	var err error
	switch mode {
	case "flatelf":
		err = writeFlatELF(input, output)
	case "flatbin":
		err = writeFlatbin(input, output)
	case "tcp":
		err = serve(logger, input, output)
	case "info":
		err = printInfo(input, output)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		level.Error(logger).Log("err", err)
		os.Exit(1)
	}
}

func convertOptions() []flatelf.Option {
	var opts []flatelf.Option
	if *strictOverlap {
		opts = append(opts, flatelf.WithStrictOverlap())
	}
	return opts
}

// writeFlatELF writes the FLATELF container to disk.
func writeFlatELF(input, output string) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	img, err := flatelf.New(data, convertOptions()...)
	if err != nil {
		return err
	}
	return os.WriteFile(output, img.Encode(), 0o644)
}

// writeFlatbin writes the raw flat binary to disk and prints
// "base_vaddr entry" to stdout so the load parameters can be
// reconstructed out-of-band.
func writeFlatbin(input, output string) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	img, err := flatelf.New(data, convertOptions()...)
	if err != nil {
		return err
	}
	fmt.Printf("%#x %#x\n", img.BaseVaddr, img.Entry)
	return os.WriteFile(output, img.Data, 0o644)
}

// printInfo reads the header of an existing FLATELF container. The word
// size of the producer is not self-described by the format, so it is
// given explicitly as "32" or "64".
func printInfo(input, wordSize string) error {
	var class flatelf.Class
	switch wordSize {
	case "32":
		class = flatelf.Class32
	case "64":
		class = flatelf.Class64
	default:
		return fmt.Errorf("unknown word size %q, expected 32 or 64", wordSize)
	}

	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := flatelf.ReadInfo(f, class)
	if err != nil {
		return err
	}
	fmt.Printf("entry: %#x\nbase_vaddr: %#x\nflatbin_size: %d\n", info.Entry, info.BaseVaddr, info.FlatbinSize)
	return nil
}

// serve runs the TCP mode until signalled.
func serve(logger log.Logger, input, addr string) error {
	reg := prometheus.NewRegistry()

	srv, err := server.New(logger, input, server.Options{
		Metrics:        metrics.New(reg),
		CacheSize:      *cacheSize,
		ConvertOptions: convertOptions(),
	})
	if err != nil {
		return err
	}

	var g run.Group
	g.Add(func() error {
		return srv.ListenAndServe(addr)
	}, func(error) {
		srv.Close()
	})

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		ms := &http.Server{Addr: *metricsAddr, Handler: mux}
		g.Add(ms.ListenAndServe, func(error) {
			_ = ms.Shutdown(context.Background())
		})
	}

	g.Add(run.SignalHandler(context.Background(), os.Interrupt, syscall.SIGTERM))

	err = g.Run()
	if _, ok := err.(run.SignalError); ok {
		level.Info(logger).Log("msg", "shutting down", "reason", err)
		return nil
	}
	return err
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: flatelf <input> <mode:output>
modes:
  flatelf:/path/to/file   write a FLATELF container
  flatbin:/path/to/file   write the raw flat binary, print "base_vaddr entry"
  tcp:127.0.0.1:1234      serve the FLATELF container over TCP
  info:<32|64>            print the header of an existing FLATELF container
flags:
`)
	flag.PrintDefaults()
}
