package receipt

import "fmt"

// Encoding selects the transport payload format.
type Encoding string

const (
	// EncodingMarkup is an HTML fragment for a system print dialog.
	EncodingMarkup Encoding = "markup"
	// EncodingText is fixed-width plain text for thermal printers.
	EncodingText Encoding = "text"
)

// Payload is an encoded receipt ready for a transport.
type Payload struct {
	OrderID     string
	Encoding    Encoding
	ContentType string
	Body        []byte
}

// Encode converts a document into the given encoding.
func Encode(doc *Document, enc Encoding) (Payload, error) {
	if doc == nil {
		return Payload{}, fmt.Errorf("encode: nil document")
	}
	switch enc {
	case EncodingText:
		return Payload{
			OrderID:     doc.OrderID,
			Encoding:    enc,
			ContentType: "text/plain; charset=utf-8",
			Body:        []byte(EncodeText(doc)),
		}, nil
	case EncodingMarkup:
		body, err := EncodeMarkup(doc)
		if err != nil {
			return Payload{}, fmt.Errorf("encode markup: %w", err)
		}
		return Payload{
			OrderID:     doc.OrderID,
			Encoding:    enc,
			ContentType: "text/html; charset=utf-8",
			Body:        []byte(body),
		}, nil
	default:
		return Payload{}, fmt.Errorf("encode: unknown encoding %q", enc)
	}
}
