package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Eyevinn/mosh264/internal"
	"github.com/Eyevinn/mosh264/internal/server"
)

var usg = `Usage of %s:

%s serves the datamoshing pipeline over HTTP. POST two videos and effect
parameters to /process and fetch the result from the returned URL.
`

func parseOptions() (server.Config, bool, bool) {
	cfg := server.Config{}
	var debug, version bool
	flag.StringVar(&cfg.Addr, "addr", ":8080", "listen address")
	flag.StringVar(&cfg.UploadDir, "uploads", "uploads", "directory for uploaded and processed files")
	flag.Int64Var(&cfg.MaxUploadSize, "max-upload", 512<<20, "max request size in bytes")
	flag.StringVar(&cfg.FFmpegPath, "ffmpeg", "", "path to the ffmpeg binary")
	flag.BoolVar(&debug, "debug", false, "debug logging")
	flag.BoolVar(&version, "version", false, "print version")

	flag.Usage = func() {
		parts := strings.Split(os.Args[0], "/")
		name := parts[len(parts)-1]
		fmt.Fprintf(os.Stderr, usg, name, name)
		fmt.Fprintf(os.Stderr, "\nRun as: %s [options] with options:\n\n", name)
		flag.PrintDefaults()
	}

	flag.Parse()
	return cfg, debug, version
}

func main() {
	cfg, debug, version := parseOptions()
	if version {
		fmt.Printf("mosh264-server version %s\n", internal.GetVersion())
		os.Exit(0)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if debug {
		log.SetLevel(logrus.DebugLevel)
	}

	srv, err := server.New(cfg, log, nil)
	if err != nil {
		log.WithError(err).Fatal("starting server")
	}
	if err := srv.ListenAndServe(); err != nil {
		log.WithError(err).Fatal("serving")
	}
}
