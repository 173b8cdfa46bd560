// internal/model/content.go
package model

import (
	"encoding/json"
	"fmt"
)

// ContentKind discriminates the printable primitives
type ContentKind string

const (
	ContentText    ContentKind = "text"
	ContentLine    ContentKind = "line"
	ContentFeed    ContentKind = "feed"
	ContentCut     ContentKind = "cut"
	ContentBarcode ContentKind = "barcode"
	ContentQRCode  ContentKind = "qrcode"
	ContentImage   ContentKind = "image"
)

// Content is one item of a print request. Items print in slice order.
type Content interface {
	Kind() ContentKind
}

// Alignment of text and images
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// TextSize maps to a device scale command
type TextSize string

const (
	TextSizeSmall      TextSize = "small"
	TextSizeNormal     TextSize = "normal"
	TextSizeLarge      TextSize = "large"
	TextSizeExtraLarge TextSize = "extra-large"
)

// TextStyle toggles are independent and may be combined
type TextStyle struct {
	Bold      bool `json:"bold,omitempty"`
	Underline bool `json:"underline,omitempty"`
	Italic    bool `json:"italic,omitempty"`
}

// TextFormat is optional per-item formatting. Zero value means left, plain, normal.
type TextFormat struct {
	Alignment Alignment `json:"alignment,omitempty"`
	Style     TextStyle `json:"style,omitempty"`
	Size      TextSize  `json:"size,omitempty"`
}

// Symbology of a one-dimensional barcode
type Symbology string

const (
	SymbologyUPCA    Symbology = "UPC_A"
	SymbologyUPCE    Symbology = "UPC_E"
	SymbologyEAN13   Symbology = "EAN13"
	SymbologyEAN8    Symbology = "EAN8"
	SymbologyCode39  Symbology = "CODE39"
	SymbologyITF     Symbology = "ITF"
	SymbologyCodabar Symbology = "CODABAR"
	SymbologyCode93  Symbology = "CODE93"
	SymbologyCode128 Symbology = "CODE128"
)

// QRErrorLevel is the QR error-correction level
type QRErrorLevel string

const (
	QRErrorLow      QRErrorLevel = "L"
	QRErrorMedium   QRErrorLevel = "M"
	QRErrorQuartile QRErrorLevel = "Q"
	QRErrorHigh     QRErrorLevel = "H"
)

// Text prints a string followed by a line feed
type Text struct {
	Value  string     `json:"text"`
	Format TextFormat `json:"format,omitempty"`
}

// Line prints a rule of a repeated character. Length 0 spans the paper width.
type Line struct {
	Char   string `json:"char,omitempty"`
	Length int    `json:"length,omitempty"`
}

// Feed advances the paper by a number of lines
type Feed struct {
	Lines int `json:"lines"`
}

// Cut cuts the paper
type Cut struct {
	Partial bool `json:"partial,omitempty"`
}

// Barcode prints a one-dimensional barcode
type Barcode struct {
	Data      string    `json:"data"`
	Symbology Symbology `json:"symbology"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	ShowText  bool      `json:"showText,omitempty"`
}

// QRCode prints a QR code symbol
type QRCode struct {
	Data            string       `json:"data"`
	Size            int          `json:"size,omitempty"`
	ErrorCorrection QRErrorLevel `json:"errorCorrection,omitempty"`
}

// Image prints a pre-rendered 1-bit raster. Reference is base64 of packed
// rows, MSB first, ceil(Width/8) bytes per row.
type Image struct {
	Reference string    `json:"reference"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Alignment Alignment `json:"alignment,omitempty"`
}

func (Text) Kind() ContentKind    { return ContentText }
func (Line) Kind() ContentKind    { return ContentLine }
func (Feed) Kind() ContentKind    { return ContentFeed }
func (Cut) Kind() ContentKind     { return ContentCut }
func (Barcode) Kind() ContentKind { return ContentBarcode }
func (QRCode) Kind() ContentKind  { return ContentQRCode }
func (Image) Kind() ContentKind   { return ContentImage }

// NewText creates a text item
func NewText(value string, format ...TextFormat) Text {
	text := Text{Value: value}
	if len(format) > 0 {
		text.Format = format[0]
	}
	return text
}

type contentEnvelope struct {
	Type ContentKind `json:"type"`
}

// MarshalContent encodes items as a JSON array of type-tagged objects
func MarshalContent(items []Content) ([]byte, error) {
	out := make([]json.RawMessage, 0, len(items))
	for i, item := range items {
		if item == nil {
			return nil, fmt.Errorf("failed to encode content item %d: item is nil", i)
		}
		body, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to encode content item %d: %w", i, err)
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("failed to encode content item %d: %w", i, err)
		}
		kind, _ := json.Marshal(item.Kind())
		fields["type"] = kind

		tagged, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("failed to encode content item %d: %w", i, err)
		}
		out = append(out, tagged)
	}
	return json.Marshal(out)
}

// UnmarshalContent decodes a JSON array produced by MarshalContent
func UnmarshalContent(data []byte) ([]Content, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode content: %w", err)
	}

	items := make([]Content, 0, len(raw))
	for i, message := range raw {
		var envelope contentEnvelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode content item %d: %w", i, err)
		}

		item, err := decodeContentItem(envelope.Type, message)
		if err != nil {
			return nil, fmt.Errorf("failed to decode content item %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func decodeContentItem(kind ContentKind, message json.RawMessage) (Content, error) {
	switch kind {
	case ContentText:
		var item Text
		err := json.Unmarshal(message, &item)
		return item, err
	case ContentLine:
		var item Line
		err := json.Unmarshal(message, &item)
		return item, err
	case ContentFeed:
		var item Feed
		err := json.Unmarshal(message, &item)
		return item, err
	case ContentCut:
		var item Cut
		err := json.Unmarshal(message, &item)
		return item, err
	case ContentBarcode:
		var item Barcode
		err := json.Unmarshal(message, &item)
		return item, err
	case ContentQRCode:
		var item QRCode
		err := json.Unmarshal(message, &item)
		return item, err
	case ContentImage:
		var item Image
		err := json.Unmarshal(message, &item)
		return item, err
	default:
		return nil, fmt.Errorf("unknown content type %q", kind)
	}
}
