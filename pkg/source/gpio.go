package source

import (
	"strconv"

	"irdl/pkg/port"
	"irdl/pkg/raspberry"
)

func openGPIO(cfg Config) (*Source, error) {
	bias, err := raspberry.ParseBias(cfg.Bias)
	if err != nil {
		return nil, err
	}

	chip := cfg.Chip
	if chip == "" {
		chip = "gpiochip0"
	}
	c, err := raspberry.Open(chip)
	if err != nil {
		return nil, err
	}
	line, err := c.NewLine(cfg.Line, bias, cfg.Debounce)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	return &Source{
		C:          line.C,
		name:       "gpio " + chip + "/" + strconv.Itoa(cfg.Line),
		sampleRate: port.Microseconds,
		closer: func() error {
			err := line.Close()
			if e := c.Close(); err == nil {
				err = e
			}
			return err
		},
	}, nil
}

func openGPIOMem(cfg Config) (*Source, error) {
	bias, err := raspberry.ParseBias(cfg.Bias)
	if err != nil {
		return nil, err
	}
	pin, err := raspberry.OpenPin(cfg.Line, bias)
	if err != nil {
		return nil, err
	}

	return &Source{
		C:          pin.C,
		name:       "gpiomem " + strconv.Itoa(cfg.Line),
		sampleRate: port.Microseconds,
		closer:     pin.Close,
	}, nil
}
