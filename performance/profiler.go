package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/jamespfennell/gtfsgo"
	"github.com/jamespfennell/gtfsgo/aggregate"
)

var out = flag.String("out", "gtfsgo_profile.pb.gz", "file path to output the profile to")
var delimiter = flag.String("delimiter", "", "stop ID delimiter used when unifying stops")

func main() {
	if err := run(); err != nil {
		fmt.Println("failed:", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()
	gtfsFiles := flag.Args()
	var gtfsBytes [][]byte
	for _, gtfsFile := range gtfsFiles {
		b, err := os.ReadFile(gtfsFile)
		if err != nil {
			return err
		}
		gtfsBytes = append(gtfsBytes, b)
	}

	options := aggregate.DefaultOptions()
	options.Unify.Delimiter = *delimiter

	fmt.Println("starting profile")
	var profile bytes.Buffer
	if err := pprof.StartCPUProfile(&profile); err != nil {
		return err
	}
	for i, in := range gtfsBytes {
		fmt.Printf("aggregating file %d/%d\n", i+1, len(gtfsBytes))
		static, err := gtfs.ParseStatic(in)
		if err != nil {
			pprof.StopCPUProfile()
			return err
		}
		a, err := aggregate.New(static, options)
		if err != nil {
			pprof.StopCPUProfile()
			return err
		}
		if _, err := a.ReadRouteFrequency().MarshalJSON(); err != nil {
			pprof.StopCPUProfile()
			return err
		}
	}
	pprof.StopCPUProfile()

	fmt.Println("writing profile to", *out)
	return os.WriteFile(*out, profile.Bytes(), 0644)
}
