// internal/model/port.go
package model

import "fmt"

// Parity represents the parity mode of a serial line
type Parity string

const (
	ParityNone  Parity = "none"
	ParityOdd   Parity = "odd"
	ParityEven  Parity = "even"
	ParityMark  Parity = "mark"
	ParitySpace Parity = "space"
)

// PortConfig holds line parameters applied when a port is opened. It is a
// value type and is never mutated after open.
type PortConfig struct {
	BaudRate int    `json:"baud_rate" mapstructure:"baud_rate"`
	DataBits int    `json:"data_bits" mapstructure:"data_bits"`
	StopBits int    `json:"stop_bits" mapstructure:"stop_bits"`
	Parity   Parity `json:"parity" mapstructure:"parity"`
}

// DefaultPortConfig returns 9600 8N1
func DefaultPortConfig() PortConfig {
	return PortConfig{
		BaudRate: 9600,
		DataBits: 8,
		StopBits: 1,
		Parity:   ParityNone,
	}
}

// Validate checks the parameters before they reach a driver
func (c PortConfig) Validate() error {
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate: %d", c.BaudRate)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return fmt.Errorf("invalid data bits: %d", c.DataBits)
	}
	if c.StopBits != 1 && c.StopBits != 2 {
		return fmt.Errorf("invalid stop bits: %d", c.StopBits)
	}
	switch c.Parity {
	case ParityNone, ParityOdd, ParityEven, ParityMark, ParitySpace:
	default:
		return fmt.Errorf("invalid parity: %q", c.Parity)
	}
	return nil
}

// String implements fmt.Stringer, e.g. "9600 8N1"
func (c PortConfig) String() string {
	p := "N"
	if c.Parity != "" && c.Parity != ParityNone {
		p = string(c.Parity[0] - 'a' + 'A')
	}
	return fmt.Sprintf("%d %d%s%d", c.BaudRate, c.DataBits, p, c.StopBits)
}
