package escpos

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"printer-service/internal/model"
)

const (
	defaultBarcodeWidth  = 3
	defaultBarcodeHeight = 80
	defaultQRSize        = 6
	maxBarcodeData       = 255
	maxQRData            = 7089
)

// barcodeTypes maps symbologies to GS k function B type codes
var barcodeTypes = map[model.Symbology]byte{
	model.SymbologyUPCA:    65,
	model.SymbologyUPCE:    66,
	model.SymbologyEAN13:   67,
	model.SymbologyEAN8:    68,
	model.SymbologyCode39:  69,
	model.SymbologyITF:     70,
	model.SymbologyCodabar: 71,
	model.SymbologyCode93:  72,
	model.SymbologyCode128: 73,
}

// barcodeDigits bounds the data length of numeric symbologies, check digit optional
var barcodeDigits = map[model.Symbology][2]int{
	model.SymbologyUPCA:  {11, 12},
	model.SymbologyUPCE:  {6, 8},
	model.SymbologyEAN13: {12, 13},
	model.SymbologyEAN8:  {7, 8},
	model.SymbologyITF:   {2, maxBarcodeData},
}

var qrLevels = map[model.QRErrorLevel]byte{
	model.QRErrorLow:      48,
	model.QRErrorMedium:   49,
	model.QRErrorQuartile: 50,
	model.QRErrorHigh:     51,
}

// Renderer translates content items into ESC/POS bytes for one printer
type Renderer struct {
	profile  Profile
	paper    model.PaperSize
	codepage codepage
}

// NewRenderer creates a renderer for the printer's paper size and encoding
func NewRenderer(cfg model.PrinterConfig, profile Profile) (*Renderer, error) {
	page, err := lookupCodepage(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	return &Renderer{
		profile:  profile,
		paper:    cfg.PaperSize,
		codepage: page,
	}, nil
}

// Encoding returns the canonical name of the active code page
func (r *Renderer) Encoding() string {
	return r.codepage.name
}

// Preamble resets the printer and selects the code page
func (r *Renderer) Preamble() []byte {
	return join(Commands.Initialize, r.codepage.selector)
}

// RenderJob renders a complete job: preamble, every copy with its cut, then the drawer kick
func (r *Renderer) RenderJob(items []model.Content, job model.JobConfig) ([]byte, error) {
	body, err := r.Render(items)
	if err != nil {
		return nil, err
	}

	var buffer bytes.Buffer
	buffer.Write(r.Preamble())
	for i := 0; i < job.CopyCount(); i++ {
		buffer.Write(body)
		if job.ShouldAutoCut() {
			buffer.Write(cutCommand(false))
		}
	}
	if job.OpenCashDrawer {
		buffer.Write(Commands.DrawerKickPin2)
	}
	return buffer.Bytes(), nil
}

// Render translates items in order. Nothing is returned if any item is invalid.
func (r *Renderer) Render(items []model.Content) ([]byte, error) {
	var buffer bytes.Buffer
	for i, item := range items {
		encoded, err := r.renderItem(item)
		if err != nil {
			return nil, fmt.Errorf("content item %d (%s): %w", i, kindOf(item), err)
		}
		buffer.Write(encoded)
	}
	return buffer.Bytes(), nil
}

func kindOf(item model.Content) string {
	if item == nil {
		return "nil"
	}
	return string(item.Kind())
}

func (r *Renderer) renderItem(item model.Content) ([]byte, error) {
	switch c := item.(type) {
	case model.Text:
		return r.renderText(c), nil
	case *model.Text:
		return r.renderText(*c), nil
	case model.Line:
		return r.renderLine(c)
	case *model.Line:
		return r.renderLine(*c)
	case model.Feed:
		return renderFeed(c)
	case *model.Feed:
		return renderFeed(*c)
	case model.Cut:
		return cutCommand(c.Partial), nil
	case *model.Cut:
		return cutCommand(c.Partial), nil
	case model.Barcode:
		return r.renderBarcode(c)
	case *model.Barcode:
		return r.renderBarcode(*c)
	case model.QRCode:
		return r.renderQRCode(c)
	case *model.QRCode:
		return r.renderQRCode(*c)
	case model.Image:
		return r.renderImage(c)
	case *model.Image:
		return r.renderImage(*c)
	default:
		return nil, fmt.Errorf("unsupported content type %T", item)
	}
}

func alignCommand(alignment model.Alignment) []byte {
	switch alignment {
	case model.AlignCenter:
		return Commands.AlignCenter
	case model.AlignRight:
		return Commands.AlignRight
	default:
		return Commands.AlignLeft
	}
}

func sizeCommand(size model.TextSize) []byte {
	switch size {
	case model.TextSizeSmall:
		return Commands.FontB
	case model.TextSizeLarge:
		return Commands.SizeDouble
	case model.TextSizeExtraLarge:
		return Commands.SizeTriple
	default:
		return join(Commands.FontA, Commands.SizeNormal)
	}
}

// resetCommand returns every text attribute to its power-on value
func (r *Renderer) resetCommand() []byte {
	reset := join(Commands.BoldOff, Commands.UnderlineOff, Commands.SizeNormal, Commands.FontA, Commands.AlignLeft)
	if r.profile.NativeItalic {
		reset = join(reset, Commands.ItalicOff)
	}
	return reset
}

func (r *Renderer) renderText(text model.Text) []byte {
	var buffer bytes.Buffer
	format := text.Format

	buffer.Write(alignCommand(format.Alignment))
	if format.Style.Bold {
		buffer.Write(Commands.BoldOn)
	}

	underline := format.Style.Underline
	if format.Style.Italic {
		if r.profile.NativeItalic {
			buffer.Write(Commands.ItalicOn)
		} else {
			underline = true
		}
	}
	if underline {
		buffer.Write(Commands.UnderlineOn)
	}
	buffer.Write(sizeCommand(format.Size))

	buffer.Write(r.codepage.encode(text.Value))
	if !strings.HasSuffix(text.Value, "\n") {
		buffer.Write(Commands.LineFeed)
	}
	buffer.Write(r.resetCommand())
	return buffer.Bytes()
}

func (r *Renderer) renderLine(line model.Line) ([]byte, error) {
	if line.Length < 0 {
		return nil, fmt.Errorf("line length must not be negative, got %d", line.Length)
	}

	char := "-"
	if line.Char != "" {
		first, _ := utf8.DecodeRuneInString(line.Char)
		char = string(first)
	}
	length := line.Length
	if length == 0 {
		length = r.paper.CharsPerLine()
	}

	return join(r.codepage.encode(strings.Repeat(char, length)), Commands.LineFeed), nil
}

func renderFeed(feed model.Feed) ([]byte, error) {
	if feed.Lines < 0 || feed.Lines > 255 {
		return nil, fmt.Errorf("feed lines must be in [0, 255], got %d", feed.Lines)
	}
	return feedCommand(feed.Lines), nil
}

// ValidateBarcode checks the data against the symbology's character set and length
func ValidateBarcode(barcode model.Barcode) error {
	if _, ok := barcodeTypes[barcode.Symbology]; !ok {
		return fmt.Errorf("unsupported barcode symbology %q", barcode.Symbology)
	}
	if barcode.Data == "" {
		return fmt.Errorf("barcode data is empty")
	}
	if len(barcode.Data) > maxBarcodeData {
		return fmt.Errorf("barcode data longer than %d bytes", maxBarcodeData)
	}
	if barcode.Width != 0 && (barcode.Width < 2 || barcode.Width > 6) {
		return fmt.Errorf("barcode width must be in [2, 6], got %d", barcode.Width)
	}
	if barcode.Height < 0 || barcode.Height > 255 {
		return fmt.Errorf("barcode height must be in [1, 255], got %d", barcode.Height)
	}

	if bounds, numeric := barcodeDigits[barcode.Symbology]; numeric {
		if !isDigits(barcode.Data) {
			return fmt.Errorf("%s data must be numeric", barcode.Symbology)
		}
		if n := len(barcode.Data); n < bounds[0] || n > bounds[1] {
			return fmt.Errorf("%s data must have %d to %d digits, got %d", barcode.Symbology, bounds[0], bounds[1], n)
		}
		if barcode.Symbology == model.SymbologyITF && len(barcode.Data)%2 != 0 {
			return fmt.Errorf("ITF data must have an even number of digits")
		}
	}

	if barcode.Symbology == model.SymbologyCode128 && len(barcode.Data)+len(Commands.BarcodeCode128B) > maxBarcodeData {
		return fmt.Errorf("barcode data longer than %d bytes", maxBarcodeData-len(Commands.BarcodeCode128B))
	}

	for _, r := range barcode.Data {
		if r >= utf8.RuneSelf {
			return fmt.Errorf("barcode data must be ASCII")
		}
	}
	return nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (r *Renderer) renderBarcode(barcode model.Barcode) ([]byte, error) {
	if err := ValidateBarcode(barcode); err != nil {
		return nil, err
	}
	if !r.profile.NativeBarcode {
		return r.fallbackText(string(barcode.Symbology), barcode.Data), nil
	}

	width := barcode.Width
	if width == 0 {
		width = defaultBarcodeWidth
	}
	height := barcode.Height
	if height == 0 {
		height = defaultBarcodeHeight
	}
	hri := byte(0)
	if barcode.ShowText {
		hri = 2
	}

	data := []byte(barcode.Data)
	if barcode.Symbology == model.SymbologyCode128 {
		data = join(Commands.BarcodeCode128B, data)
	}

	return join(
		withArg(Commands.BarcodeHeight, byte(height)),
		withArg(Commands.BarcodeWidth, byte(width)),
		withArg(Commands.BarcodeHRI, hri),
		withArg(Commands.BarcodePrint, barcodeTypes[barcode.Symbology], byte(len(data))),
		data,
		Commands.LineFeed,
	), nil
}

func (r *Renderer) renderQRCode(qr model.QRCode) ([]byte, error) {
	if qr.Data == "" {
		return nil, fmt.Errorf("QR data is empty")
	}
	if len(qr.Data) > maxQRData {
		return nil, fmt.Errorf("QR data longer than %d bytes", maxQRData)
	}
	size := qr.Size
	if size == 0 {
		size = defaultQRSize
	}
	if size < 1 || size > 16 {
		return nil, fmt.Errorf("QR size must be in [1, 16], got %d", qr.Size)
	}
	levelName := qr.ErrorCorrection
	if levelName == "" {
		levelName = model.QRErrorMedium
	}
	level, ok := qrLevels[levelName]
	if !ok {
		return nil, fmt.Errorf("unsupported QR error correction level %q", qr.ErrorCorrection)
	}

	if !r.profile.NativeQR {
		return r.fallbackText("QR", qr.Data), nil
	}

	storeLength := len(qr.Data) + 3
	return join(
		Commands.QRModel2,
		withArg(Commands.QRSize, byte(size)),
		withArg(Commands.QRLevel, level),
		withArg(Commands.QRStore, byte(storeLength%256), byte(storeLength/256), 0x31, 0x50, 0x30),
		[]byte(qr.Data),
		Commands.QRPrint,
		Commands.LineFeed,
	), nil
}

// fallbackText prints symbol data as text on firmware without native symbols
func (r *Renderer) fallbackText(label, data string) []byte {
	return r.renderText(model.NewText(fmt.Sprintf("[%s] %s", label, data)))
}

func (r *Renderer) renderImage(image model.Image) ([]byte, error) {
	if image.Width <= 0 || image.Height <= 0 {
		return nil, fmt.Errorf("image dimensions must be positive, got %dx%d", image.Width, image.Height)
	}
	if image.Width > r.paper.DotsPerLine() {
		return nil, fmt.Errorf("image width %d exceeds %d printable dots", image.Width, r.paper.DotsPerLine())
	}
	if image.Height > 0xFFFF {
		return nil, fmt.Errorf("image height %d too large", image.Height)
	}

	raster, err := base64.StdEncoding.DecodeString(image.Reference)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image reference: %w", err)
	}
	rowBytes := (image.Width + 7) / 8
	if expected := rowBytes * image.Height; len(raster) != expected {
		return nil, fmt.Errorf("image raster has %d bytes, expected %d", len(raster), expected)
	}

	return join(
		alignCommand(image.Alignment),
		withArg(Commands.RasterImage, 0, byte(rowBytes%256), byte(rowBytes/256), byte(image.Height%256), byte(image.Height/256)),
		raster,
		Commands.LineFeed,
		Commands.AlignLeft,
	), nil
}
