package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"strings"

	"github.com/Eyevinn/mosh264/internal"
	"github.com/Eyevinn/mosh264/internal/media"
	"github.com/Eyevinn/mosh264/internal/mosh"
	"github.com/Eyevinn/mosh264/internal/nal"
)

var usg = `Usage of %s:

%s splices two H.264 streams into one datamoshed stream.
Inputs are raw Annex-B files (.264) or MPEG-TS files; TS inputs are demuxed
natively. The output is a raw Annex-B stream, or an MP4 when -mp4 is given
(needs ffmpeg in the path).
`

type options struct {
	removePS         bool
	iframeMode       string
	offset           float64
	dupFactor        int
	dupProbability   float64
	reorderIntensity float64
	reorderWindow    int
	corruptChance    float64
	corruptIntensity float64
	dropPercentage   float64
	seed             int64
	output           string
	mp4              bool
	ffmpeg           string
	list             bool
	indent           bool
	version          bool
}

func parseOptions() options {
	opts := options{}
	flag.BoolVar(&opts.removePS, "remove-spspps", false, "remove all SPS and PPS units")
	flag.StringVar(&opts.iframeMode, "remove-iframes", "none", "i-frame removal mode: none, first or all")
	flag.Float64Var(&opts.offset, "offset", 0, "seconds to trim from the start of the second clip")
	flag.IntVar(&opts.dupFactor, "dup-factor", 1, "extra copies per duplicated p-frame")
	flag.Float64Var(&opts.dupProbability, "dup-chance", 0, "chance (0-100) to duplicate a p-frame")
	flag.Float64Var(&opts.reorderIntensity, "reorder-chance", 0, "chance (0-100) to shuffle a window")
	flag.IntVar(&opts.reorderWindow, "reorder-window", 10, "units per reordering window")
	flag.Float64Var(&opts.corruptChance, "corrupt-chance", 0, "chance (0-100) to corrupt a p-frame")
	flag.Float64Var(&opts.corruptIntensity, "corrupt-intensity", 50, "corruption intensity (0-100)")
	flag.Float64Var(&opts.dropPercentage, "drop-chance", 0, "chance (0-100) to drop a frame")
	flag.Int64Var(&opts.seed, "seed", 0, "random seed (0 for time-based)")
	flag.StringVar(&opts.output, "o", "-", "output file (- for stdout)")
	flag.BoolVar(&opts.mp4, "mp4", false, "remux the output into MP4 via ffmpeg")
	flag.StringVar(&opts.ffmpeg, "ffmpeg", "", "path to the ffmpeg binary")
	flag.BoolVar(&opts.list, "list", false, "print JSON NAL unit list and summary of the output")
	flag.BoolVar(&opts.indent, "indent", false, "indent JSON output")
	flag.BoolVar(&opts.version, "version", false, "print version")

	flag.Usage = func() {
		parts := strings.Split(os.Args[0], "/")
		name := parts[len(parts)-1]
		fmt.Fprintf(os.Stderr, usg, name, name)
		fmt.Fprintf(os.Stderr, "\nRun as: %s [options] clipA clipB (- for stdin) with options:\n\n", name)
		flag.PrintDefaults()
	}

	flag.Parse()
	return opts
}

func (o options) config() (mosh.Config, error) {
	cfg := mosh.DefaultConfig()
	mode, err := mosh.ParseIFrameMode(o.iframeMode)
	if err != nil {
		return cfg, err
	}
	cfg.RemoveParameterSets = o.removePS
	cfg.IFrameMode = mode
	cfg.OffsetSeconds = o.offset
	cfg.DupFactor = o.dupFactor
	cfg.DupProbability = o.dupProbability / 100
	cfg.ReorderProbability = o.reorderIntensity / 100
	cfg.ReorderWindow = o.reorderWindow
	cfg.CorruptProbability = o.corruptChance / 100
	cfg.CorruptIntensity = o.corruptIntensity / 100
	cfg.DropProbability = o.dropPercentage / 100
	return cfg, cfg.Validate()
}

func run(ctx context.Context, w io.Writer, o options, pathA, pathB string) error {
	clipA, err := internal.LoadElementaryStream(ctx, pathA)
	if err != nil {
		return err
	}
	clipB, err := internal.LoadElementaryStream(ctx, pathB)
	if err != nil {
		return err
	}
	cfg, err := o.config()
	if err != nil {
		return err
	}
	var rnd *rand.Rand
	if o.seed != 0 {
		rnd = rand.New(rand.NewSource(o.seed))
	}

	result, err := mosh.Process(clipA, clipB, cfg, rnd)
	if err != nil {
		return err
	}

	if o.list {
		// List to stdout when the stream goes to a file, stderr otherwise
		textOut := w
		if o.output == "-" {
			textOut = os.Stderr
		}
		seq, err := nal.Demux(result.Data)
		if err != nil {
			return err
		}
		jp := &internal.JsonPrinter{W: textOut, Indent: o.indent}
		jp.PrintNalus(seq, true)
		jp.PrintSummary(seq, true)
		jp.Print(result.Stats, true)
		if err := jp.Error(); err != nil {
			return err
		}
	}

	if !o.mp4 {
		return internal.WriteOutput(o.output, result.Data)
	}
	if o.output == "-" {
		return fmt.Errorf("-mp4 needs an output file, not stdout")
	}
	rawPath := o.output + ".264"
	if err := os.WriteFile(rawPath, result.Data, 0644); err != nil {
		return err
	}
	defer func() {
		_ = internal.RemoveFileIfExists(rawPath)
	}()
	ff := media.NewFFmpeg(o.ffmpeg, nil)
	return ff.RemuxToMP4(ctx, rawPath, o.output)
}

func main() {
	o := parseOptions()
	if o.version {
		fmt.Printf("mosh264 version %s\n", internal.GetVersion())
		os.Exit(0)
	}
	if len(flag.Args()) < 2 {
		flag.Usage()
		os.Exit(1)
	}
	err := run(context.Background(), os.Stdout, o, flag.Args()[0], flag.Args()[1])
	if err != nil {
		log.Fatal(err)
	}
}
