package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"kitchenedge/orders"
	"kitchenedge/receipt"
)

type receiptOptions struct {
	OrderPath string
	Format    string
	Width     int
	Header    string
	Footer    string
}

func newReceiptCommand(root *rootOptions) *cobra.Command {
	opts := &receiptOptions{}

	cmd := &cobra.Command{
		Use:   "receipt",
		Short: "Render an order receipt without printing it",
		Long: `Render an order as it would be printed.

Reads the order as JSON from --order (a file path or - for stdin) and writes
the encoded receipt to stdout. The restaurant block comes from the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReceipt(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.OrderPath, "order", "-", "order JSON file, - for stdin")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "output encoding: text or markup")
	cmd.Flags().IntVar(&opts.Width, "width", 80, "paper width in mm: 58 or 80")
	cmd.Flags().StringVar(&opts.Header, "header", "", "extra header line")
	cmd.Flags().StringVar(&opts.Footer, "footer", "", "extra footer line")

	return cmd
}

func runReceipt(cmd *cobra.Command, root *rootOptions, opts *receiptOptions) error {
	enc := receipt.Encoding(opts.Format)
	if enc != receipt.EncodingText && enc != receipt.EncodingMarkup {
		return fmt.Errorf("unknown format %q (want text or markup)", opts.Format)
	}
	if opts.Width != 58 && opts.Width != 80 {
		return fmt.Errorf("unsupported paper width %d (want 58 or 80)", opts.Width)
	}

	cfg, err := root.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	order, err := readOrder(cmd.InOrStdin(), opts.OrderPath)
	if err != nil {
		return err
	}

	doc, err := receipt.Render(order, cfg.Restaurant, receipt.Options{
		PaperWidth: opts.Width,
		HeaderText: opts.Header,
		FooterText: opts.Footer,
	})
	if err != nil {
		return err
	}
	payload, err := receipt.Encode(doc, enc)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if _, err := out.Write(payload.Body); err != nil {
		return err
	}
	if n := len(payload.Body); n == 0 || payload.Body[n-1] != '\n' {
		fmt.Fprintln(out)
	}
	return nil
}

// readOrder decodes an order from path, or from stdin when path is "-".
func readOrder(stdin io.Reader, path string) (*orders.Order, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open order: %w", err)
		}
		defer f.Close()
		r = f
	}
	var o orders.Order
	if err := json.NewDecoder(r).Decode(&o); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	return &o, nil
}
