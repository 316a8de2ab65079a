package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vsariola/mixgraph"
	"github.com/vsariola/mixgraph/engine"
	"github.com/vsariola/mixgraph/gomidi"
	"github.com/vsariola/mixgraph/oto"
	"github.com/vsariola/mixgraph/recorder"
	"github.com/vsariola/mixgraph/rig"
	"github.com/vsariola/mixgraph/version"
)

type (
	transport struct {
		playing, recording atomic.Bool
	}

	// capture collects the blocks of an output as interleaved samples.
	capture struct {
		samples []float32
	}

	tee []mixgraph.SampleSink
)

func (t *transport) Playing() bool   { return t.playing.Load() }
func (t *transport) Recording() bool { return t.recording.Load() }

func (c *capture) WriteSamples(pos int, buffers [][]float32) {
	c.samples = mixgraph.Interleave(c.samples, buffers)
}

func (t tee) WriteSamples(pos int, buffers [][]float32) {
	for _, s := range t {
		s.WriteSamples(pos, buffers)
	}
}

func main() {
	stdout := flag.Bool("s", false, "Do not write files; write to standard output instead.")
	help := flag.Bool("h", false, "Show help.")
	directory := flag.String("o", "", "Directory where to output all files. The directory and its parents are created if needed. By default, files are placed in the working directory.")
	play := flag.Bool("p", false, "Play the rig on the audio device (default behaviour when no other output is defined).")
	rawOut := flag.Bool("r", false, "Output the first output track as .raw file.")
	wavOut := flag.Bool("w", false, "Output the first output track as .wav file.")
	pcm := flag.Bool("c", false, "Convert audio to 16-bit signed PCM when outputting.")
	record := flag.Bool("record", false, "Roll the transport in record mode and write every armed track to a .wav file.")
	configFile := flag.String("config", "", "Engine config file (YAML). Config keys in the rig override it.")
	frames := flag.Int("frames", 0, "Number of frames to render; overrides the length given in the rig.")
	logLevel := flag.String("loglevel", "", "Log level; overrides the level in the config.")
	midiIn := flag.String("midi", "", "Listen to the first MIDI input whose name starts with this prefix and apply the MIDI mappings of the rig.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	if !*rawOut && !*wavOut && !*record {
		*play = true
	}
	base := mixgraph.DefaultConfig()
	if *configFile != "" {
		var err error
		if base, err = mixgraph.LoadConfig(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
	var audioContext *oto.Context
	opts := options{
		stdout: *stdout, directory: *directory, play: *play, raw: *rawOut, wav: *wavOut,
		pcm: *pcm, record: *record, frames: *frames, logLevel: *logLevel, midi: *midiIn,
	}
	retval := 0
	for _, param := range flag.Args() {
		r, err := rig.Load(param, base)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			retval = 1
			continue
		}
		if *play && audioContext == nil {
			audioContext, err = oto.NewContext(r.Config, 2)
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not acquire oto AudioContext: %v\n", err)
				os.Exit(1)
			}
		}
		if err := process(param, r, audioContext, opts); err != nil {
			fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", param, err)
			retval = 1
		}
	}
	if audioContext != nil {
		audioContext.Close()
	}
	os.Exit(retval)
}

type options struct {
	stdout, play, raw, wav, pcm, record bool
	directory, logLevel, midi           string
	frames                              int
}

func process(filename string, r *rig.Rig, audio *oto.Context, opts options) error {
	level := r.Config.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	if l, err := logrus.ParseLevel(level); err == nil {
		logrus.SetLevel(l)
	} else {
		return fmt.Errorf("invalid log level: %w", err)
	}
	tr := &transport{}
	tr.playing.Store(true)
	tr.recording.Store(opts.record)
	e, err := engine.New(r.Config, tr)
	if err != nil {
		return err
	}
	built, err := r.Build(e)
	if err != nil {
		return err
	}
	if len(built.Outputs) == 0 {
		return fmt.Errorf("the rig has no output track")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.RunDiagnostics(ctx)
	}()

	var mix capture
	sinks := tee{&mix}
	var device *oto.Output
	if opts.play {
		if device, err = audio.Open(2); err != nil {
			return err
		}
		sinks = append(sinks, device)
	}
	if err := e.SetSink(built.Outputs[0], sinks); err != nil {
		return err
	}

	var recorders []*recorder.Recorder
	var names []string
	if opts.record {
		for _, t := range r.Tracks {
			if !t.Record {
				continue
			}
			f, err := e.RecordFifo(built.IDs[t.Name])
			if err != nil {
				return fmt.Errorf("track %q: %w", t.Name, err)
			}
			info := trackInfo(e, built.IDs[t.Name])
			rec := recorder.New(f, info.Channels, r.Config.SampleRate, opts.pcm)
			recorders = append(recorders, rec)
			names = append(names, t.Name)
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec.Run(ctx, 10*time.Millisecond)
			}()
		}
	}

	if opts.midi != "" {
		in, closeDriver, err := openMidiInput(opts.midi)
		if err != nil {
			return err
		}
		defer closeDriver()
		m := gomidi.NewMapper(e, built.Midi...)
		if err := m.Listen(in); err != nil {
			return err
		}
		defer m.Close()
	}

	printTracks(e)
	length := r.Frames
	if opts.frames > 0 {
		length = opts.frames
	}
	if length <= 0 {
		length = 10 * r.Config.SampleRate
	}
	render(e, device, r.Config, length)
	cancel()
	wg.Wait()

	if opts.raw {
		raw, err := mixgraph.Raw(mix.samples, opts.pcm)
		if err != nil {
			return fmt.Errorf("could not generate .raw file: %w", err)
		}
		if err := output(filename, ".raw", raw, opts); err != nil {
			return fmt.Errorf("error outputting .raw file: %w", err)
		}
	}
	if opts.wav {
		wav, err := mixgraph.Wav(mix.samples, trackInfo(e, built.Outputs[0]).Channels, r.Config.SampleRate, opts.pcm)
		if err != nil {
			return fmt.Errorf("could not generate .wav file: %w", err)
		}
		if err := output(filename, ".wav", wav, opts); err != nil {
			return fmt.Errorf("error outputting .wav file: %w", err)
		}
	}
	for i, rec := range recorders {
		wav, err := rec.Wav()
		if err != nil {
			return fmt.Errorf("could not encode recording of %q: %w", names[i], err)
		}
		if err := output(filename, "."+names[i]+".wav", wav, opts); err != nil {
			return fmt.Errorf("error outputting recording of %q: %w", names[i], err)
		}
	}
	if d := e.Dropped(); d > 0 {
		logrus.WithFields(logrus.Fields{"function": "process", "dropped": d}).Warn("Diagnostics were dropped")
	}
	return nil
}

// render runs the engine over length frames. When playing, it waits for
// the device to drain so that its fifo never overruns.
func render(e *engine.Engine, device *oto.Output, cfg mixgraph.Config, length int) {
	block := cfg.SegmentSize
	period := time.Duration(block) * time.Second / time.Duration(cfg.SampleRate)
	for pos := 0; pos < length; pos += block {
		if device != nil {
			for device.Buffered() >= device.Capacity()-1 {
				time.Sleep(period)
			}
		}
		e.ProcessBlock(pos, min(block, length-pos))
	}
	if device != nil {
		for device.Buffered() > 0 {
			time.Sleep(period)
		}
	}
}

func trackInfo(e *engine.Engine, id mixgraph.TrackID) engine.TrackInfo {
	for _, t := range e.Tracks() {
		if t.ID == id {
			return t
		}
	}
	return engine.TrackInfo{}
}

func printTracks(e *engine.Engine) {
	title := cases.Title(language.English)
	for _, t := range e.Tracks() {
		fmt.Fprintf(os.Stderr, "%3d %-8s %-16s %dch vol %.2f pan %+.2f\n", t.ID, title.String(t.Type.String()), t.Name, t.Channels, t.Volume, t.Pan)
	}
}

func output(filename, extension string, contents []byte, opts options) error {
	if opts.stdout {
		_, err := os.Stdout.Write(contents)
		return err
	}
	_, name := filepath.Split(filename)
	dir := opts.directory
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("could not get working directory, specify the output directory explicitly: %w", err)
		}
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("could not create output directory %v: %w", dir, err)
	}
	name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
	f := filepath.Join(dir, name)
	if err := os.WriteFile(f, contents, 0644); err != nil {
		return fmt.Errorf("could not write file %v: %w", f, err)
	}
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "mixgraph command line utility for rendering and playing .yml mixer rigs.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
