package settings

import (
	"fmt"

	"kitchenedge/printing"
	"kitchenedge/receipt"
)

// Display holds the per-display settings read when a session starts.
type Display struct {
	AutoPrint       bool    `json:"auto_print"       yaml:"auto_print"`
	PrintMode       string  `json:"print_mode"       yaml:"print_mode"`
	PaperWidth      int     `json:"paper_width"      yaml:"paper_width"`
	FontScale       float64 `json:"font_scale"       yaml:"font_scale"`
	HeaderText      string  `json:"header_text"      yaml:"header_text"`
	FooterText      string  `json:"footer_text"      yaml:"footer_text"`
	BluetoothDevice string  `json:"bluetooth_device" yaml:"bluetooth_device"`
}

// Mode returns the configured print mode.
func (d Display) Mode() (printing.Mode, error) {
	return printing.ParseMode(d.PrintMode)
}

// ReceiptOptions maps the settings onto renderer options.
func (d Display) ReceiptOptions() receipt.Options {
	return receipt.Options{
		PaperWidth: d.PaperWidth,
		HeaderText: d.HeaderText,
		FooterText: d.FooterText,
		FontScale:  d.FontScale,
	}
}

// Validate rejects settings a session cannot start with.
func (d Display) Validate() error {
	if _, err := d.Mode(); err != nil {
		return err
	}
	if d.PaperWidth != receipt.Paper58mm && d.PaperWidth != receipt.Paper80mm {
		return fmt.Errorf("paper width must be %d or %d, got %d", receipt.Paper58mm, receipt.Paper80mm, d.PaperWidth)
	}
	if d.FontScale < 0 {
		return fmt.Errorf("font scale must not be negative")
	}
	return nil
}
