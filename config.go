package mixgraph

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables of the engine. The zero value is not useful;
// start from DefaultConfig and override fields, or load a YAML file with
// LoadConfig, which fills in defaults for missing keys.
type Config struct {
	SampleRate  int `yaml:"samplerate"`
	SegmentSize int `yaml:"segmentsize"` // frames per process block

	FifoLength            int `yaml:"fifolength"` // slots in each recording fifo
	ControlQueueLength    int `yaml:"controlqueuelength"`
	OpQueueLength         int `yaml:"opqueuelength"`
	DiagnosticQueueLength int `yaml:"diagnosticqueuelength"`
	MaxTracks             int `yaml:"maxtracks"`
	MaxBlockSamples       int `yaml:"maxblocksamples"` // largest fifo slot, in samples over all channels

	// MinControlProcessPeriod is the smallest slice, in frames, that
	// discrete control events may split a block into. Non-unique events
	// closer than this to each other are coalesced.
	MinControlProcessPeriod int `yaml:"mincontrolprocessperiod"`

	UseDenormalBias bool    `yaml:"usedenormalbias"`
	DenormalBias    float32 `yaml:"denormalbias"`
	Automation      bool    `yaml:"automation"` // global automation playback switch

	RampUpFactor     float64 `yaml:"rampupfactor"`
	RampDownFactor   float64 `yaml:"rampdownfactor"`
	RampFloor        float64 `yaml:"rampfloor"`
	AuxSendThreshold float64 `yaml:"auxsendthreshold"`

	LogLevel string `yaml:"loglevel"`
}

func DefaultConfig() Config {
	return Config{
		SampleRate:              44100,
		SegmentSize:             256,
		FifoLength:              128,
		ControlQueueLength:      1024,
		OpQueueLength:           1024,
		DiagnosticQueueLength:   1024,
		MaxTracks:               256,
		MaxBlockSamples:         1 << 20,
		MinControlProcessPeriod: 32,
		UseDenormalBias:         false,
		DenormalBias:            1e-18,
		Automation:              true,
		RampUpFactor:            1.003471749, // +3.01 dB every 200 samples
		RampDownFactor:          0.996540262,
		RampFloor:               0.001,
		AuxSendThreshold:        0.0001,
		LogLevel:                "info",
	}
}

// LoadConfig reads a YAML config file. Keys missing from the file keep
// their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config %v: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config %v: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %v: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	positive("samplerate", c.SampleRate)
	positive("segmentsize", c.SegmentSize)
	positive("fifolength", c.FifoLength)
	positive("controlqueuelength", c.ControlQueueLength)
	positive("opqueuelength", c.OpQueueLength)
	positive("diagnosticqueuelength", c.DiagnosticQueueLength)
	positive("maxtracks", c.MaxTracks)
	positive("maxblocksamples", c.MaxBlockSamples)
	positive("mincontrolprocessperiod", c.MinControlProcessPeriod)
	if c.RampUpFactor <= 1 {
		errs = append(errs, fmt.Errorf("rampupfactor must be greater than 1, got %v", c.RampUpFactor))
	}
	if c.RampDownFactor <= 0 || c.RampDownFactor >= 1 {
		errs = append(errs, fmt.Errorf("rampdownfactor must be in (0,1), got %v", c.RampDownFactor))
	}
	if c.RampFloor <= 0 {
		errs = append(errs, fmt.Errorf("rampfloor must be positive, got %v", c.RampFloor))
	}
	return errors.Join(errs...)
}
