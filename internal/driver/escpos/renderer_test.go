package escpos

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printer-service/internal/model"
)

func newTestRenderer(t *testing.T, printerType model.PrinterType, paper model.PaperSize, encoding string) *Renderer {
	t.Helper()
	profile, ok := ProfileFor(printerType)
	require.True(t, ok)
	renderer, err := NewRenderer(model.PrinterConfig{Type: printerType, PaperSize: paper, Encoding: encoding}, profile)
	require.NoError(t, err)
	return renderer
}

func textReset() []byte {
	return []byte{0x1B, 0x45, 0x00, 0x1B, 0x2D, 0x00, 0x1D, 0x21, 0x00, 0x1B, 0x4D, 0x00, 0x1B, 0x61, 0x00}
}

func TestRenderer_PlainText(t *testing.T) {
	r := newTestRenderer(t, model.PrinterTypeGenericESCPOS, model.PaperSize80mm, "")

	out, err := r.Render([]model.Content{model.NewText("Hi")})
	require.NoError(t, err)

	expected := join(
		[]byte{0x1B, 0x61, 0x00},                   // left
		[]byte{0x1B, 0x4D, 0x00, 0x1D, 0x21, 0x00}, // font A, normal size
		[]byte("Hi\n"),
		textReset(),
	)
	assert.Equal(t, expected, out)
}

func TestRenderer_TextFormatting(t *testing.T) {
	r := newTestRenderer(t, model.PrinterTypeEpsonTM, model.PaperSize80mm, "UTF-8")

	out, err := r.Render([]model.Content{model.NewText("Total\n", model.TextFormat{
		Alignment: model.AlignRight,
		Style:     model.TextStyle{Bold: true, Italic: true},
		Size:      model.TextSizeExtraLarge,
	})})
	require.NoError(t, err)

	expected := join(
		[]byte{0x1B, 0x61, 0x02},
		[]byte{0x1B, 0x45, 0x01},
		[]byte{0x1B, 0x2D, 0x01}, // italic degrades to underline
		[]byte{0x1D, 0x21, 0x22},
		[]byte("Total\n"),
		textReset(),
	)
	assert.Equal(t, expected, out)
}

func TestRenderer_TextSizes(t *testing.T) {
	r := newTestRenderer(t, model.PrinterTypeGenericESCPOS, model.PaperSize58mm, "")

	tests := []struct {
		size     model.TextSize
		expected []byte
	}{
		{model.TextSizeSmall, []byte{0x1B, 0x4D, 0x01}},
		{model.TextSizeLarge, []byte{0x1D, 0x21, 0x11}},
		{model.TextSizeExtraLarge, []byte{0x1D, 0x21, 0x22}},
	}

	for _, tt := range tests {
		t.Run(string(tt.size), func(t *testing.T) {
			out, err := r.Render([]model.Content{model.NewText("x", model.TextFormat{Size: tt.size})})
			require.NoError(t, err)
			assert.Equal(t, join([]byte{0x1B, 0x61, 0x00}, tt.expected, []byte("x\n"), textReset()), out)
		})
	}
}

func TestRenderer_Codepages(t *testing.T) {
	tests := []struct {
		encoding string
		preamble []byte
		text     string
		encoded  []byte
	}{
		{"UTF-8", []byte{0x1B, 0x40}, "é", []byte("é")},
		{"CP437", []byte{0x1B, 0x40, 0x1B, 0x74, 0x00}, "é€", []byte{0x82, '?'}},
		{"pc850", []byte{0x1B, 0x40, 0x1B, 0x74, 0x02}, "ü", []byte{0x81}},
		{"CP866", []byte{0x1B, 0x40, 0x1B, 0x74, 0x11}, "Ж", []byte{0x86}},
		{"CP1252", []byte{0x1B, 0x40, 0x1B, 0x74, 0x10}, "€", []byte{0x80}},
		{"GBK", []byte{0x1B, 0x40, 0x1C, 0x26}, "中", []byte{0xD6, 0xD0}},
	}

	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			r := newTestRenderer(t, model.PrinterTypeGenericESCPOS, model.PaperSize80mm, tt.encoding)
			assert.Equal(t, tt.preamble, r.Preamble())
			assert.Equal(t, tt.encoded, r.codepage.encode(tt.text))
		})
	}
}

func TestNewRenderer_UnsupportedEncoding(t *testing.T) {
	profile, _ := ProfileFor(model.PrinterTypeGenericESCPOS)
	_, err := NewRenderer(model.PrinterConfig{Encoding: "EBCDIC"}, profile)
	assert.ErrorContains(t, err, "unsupported encoding")
	assert.False(t, IsSupportedEncoding("EBCDIC"))
	assert.True(t, IsSupportedEncoding(""))
	assert.True(t, IsSupportedEncoding("windows-1252"))
}

func TestRenderer_LineAndFeed(t *testing.T) {
	r := newTestRenderer(t, model.PrinterTypeGenericESCPOS, model.PaperSize58mm, "")

	out, err := r.Render([]model.Content{model.Line{}, model.Line{Char: "=*", Length: 3}, model.Feed{Lines: 2}})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("-", 32)+"\n"+"===\n"+"\n\n", string(out))

	_, err = r.Render([]model.Content{model.Line{Length: -1}})
	assert.Error(t, err)
	_, err = r.Render([]model.Content{model.Feed{Lines: 256}})
	assert.Error(t, err)
}

func TestRenderer_Cut(t *testing.T) {
	r := newTestRenderer(t, model.PrinterTypeGenericESCPOS, model.PaperSize80mm, "")

	out, err := r.Render([]model.Content{model.Cut{}, model.Cut{Partial: true}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1B, 0x64, 0x03, 0x1D, 0x56, 0x00, 0x1B, 0x64, 0x03, 0x1D, 0x56, 0x01}, out)
}

func TestRenderer_RenderJob(t *testing.T) {
	r := newTestRenderer(t, model.PrinterTypeGenericESCPOS, model.PaperSize80mm, "")
	items := []model.Content{model.Feed{Lines: 1}}
	cut := []byte{0x1B, 0x64, 0x03, 0x1D, 0x56, 0x00}

	t.Run("default cuts once", func(t *testing.T) {
		out, err := r.RenderJob(items, model.JobConfig{})
		require.NoError(t, err)
		assert.Equal(t, join([]byte{0x1B, 0x40, 0x0A}, cut), out)
	})

	t.Run("copies without cut then drawer", func(t *testing.T) {
		out, err := r.RenderJob(items, model.JobConfig{Copies: 2, OpenCashDrawer: true}.WithoutAutoCut())
		require.NoError(t, err)
		assert.Equal(t, []byte{0x1B, 0x40, 0x0A, 0x0A, 0x1B, 0x70, 0x00, 0x19, 0x19}, out)
	})

	t.Run("every copy is cut", func(t *testing.T) {
		out, err := r.RenderJob(items, model.JobConfig{Copies: 2})
		require.NoError(t, err)
		assert.Equal(t, join([]byte{0x1B, 0x40, 0x0A}, cut, []byte{0x0A}, cut), out)
	})

	t.Run("invalid item renders nothing", func(t *testing.T) {
		out, err := r.RenderJob([]model.Content{model.NewText("ok"), model.Barcode{Symbology: model.SymbologyEAN13, Data: "abc"}}, model.JobConfig{})
		assert.Error(t, err)
		assert.Nil(t, out)
	})
}

func TestRenderer_Barcode(t *testing.T) {
	r := newTestRenderer(t, model.PrinterTypeEpsonTM, model.PaperSize80mm, "")

	out, err := r.Render([]model.Content{model.Barcode{Data: "4006381333931", Symbology: model.SymbologyEAN13}})
	require.NoError(t, err)
	expected := join(
		[]byte{0x1D, 0x68, 80, 0x1D, 0x77, 3, 0x1D, 0x48, 0},
		[]byte{0x1D, 0x6B, 67, 13},
		[]byte("4006381333931"),
		[]byte{0x0A},
	)
	assert.Equal(t, expected, out)

	out, err = r.Render([]model.Content{model.Barcode{Data: "AB-12", Symbology: model.SymbologyCode128, Width: 2, Height: 40, ShowText: true}})
	require.NoError(t, err)
	expected = join(
		[]byte{0x1D, 0x68, 40, 0x1D, 0x77, 2, 0x1D, 0x48, 2},
		[]byte{0x1D, 0x6B, 73, 7},
		[]byte("{BAB-12"),
		[]byte{0x0A},
	)
	assert.Equal(t, expected, out)
}

func TestValidateBarcode(t *testing.T) {
	tests := []struct {
		name    string
		barcode model.Barcode
		wantErr bool
	}{
		{"upc-a", model.Barcode{Symbology: model.SymbologyUPCA, Data: "03600029145"}, false},
		{"ean8", model.Barcode{Symbology: model.SymbologyEAN8, Data: "9638507"}, false},
		{"itf even", model.Barcode{Symbology: model.SymbologyITF, Data: "1234"}, false},
		{"code39", model.Barcode{Symbology: model.SymbologyCode39, Data: "ABC-123"}, false},
		{"empty", model.Barcode{Symbology: model.SymbologyCode39}, true},
		{"unknown symbology", model.Barcode{Symbology: "PDF417", Data: "x"}, true},
		{"ean13 letters", model.Barcode{Symbology: model.SymbologyEAN13, Data: "40063813339AB"}, true},
		{"ean13 short", model.Barcode{Symbology: model.SymbologyEAN13, Data: "123"}, true},
		{"itf odd", model.Barcode{Symbology: model.SymbologyITF, Data: "123"}, true},
		{"width", model.Barcode{Symbology: model.SymbologyCode93, Data: "x", Width: 7}, true},
		{"too long", model.Barcode{Symbology: model.SymbologyCode128, Data: strings.Repeat("a", 254)}, true},
		{"non ascii", model.Barcode{Symbology: model.SymbologyCode128, Data: "é"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBarcode(tt.barcode)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRenderer_QRCode(t *testing.T) {
	r := newTestRenderer(t, model.PrinterTypeCbxPos89e, model.PaperSize80mm, "")

	out, err := r.Render([]model.Content{model.QRCode{Data: "hello", Size: 4, ErrorCorrection: model.QRErrorHigh}})
	require.NoError(t, err)
	expected := join(
		[]byte{0x1D, 0x28, 0x6B, 0x04, 0x00, 0x31, 0x41, 0x32, 0x00},
		[]byte{0x1D, 0x28, 0x6B, 0x03, 0x00, 0x31, 0x43, 4},
		[]byte{0x1D, 0x28, 0x6B, 0x03, 0x00, 0x31, 0x45, 51},
		[]byte{0x1D, 0x28, 0x6B, 8, 0, 0x31, 0x50, 0x30},
		[]byte("hello"),
		[]byte{0x1D, 0x28, 0x6B, 0x03, 0x00, 0x31, 0x51, 0x30},
		[]byte{0x0A},
	)
	assert.Equal(t, expected, out)

	_, err = r.Render([]model.Content{model.QRCode{Data: "x", Size: 17}})
	assert.Error(t, err)
	_, err = r.Render([]model.Content{model.QRCode{Data: "x", ErrorCorrection: "Z"}})
	assert.Error(t, err)
}

func TestRenderer_QRCodeFallback(t *testing.T) {
	r := newTestRenderer(t, model.PrinterTypeGenericESCPOS, model.PaperSize80mm, "")

	out, err := r.Render([]model.Content{model.QRCode{Data: "https://example.com"}})
	require.NoError(t, err)
	assert.Contains(t, string(out), "[QR] https://example.com\n")
	assert.NotContains(t, string(out), string([]byte{0x1D, 0x28, 0x6B}))
}

func TestRenderer_Image(t *testing.T) {
	r := newTestRenderer(t, model.PrinterTypeGenericESCPOS, model.PaperSize58mm, "")
	raster := []byte{0xFF, 0x00}
	reference := base64.StdEncoding.EncodeToString(raster)

	out, err := r.Render([]model.Content{model.Image{Reference: reference, Width: 8, Height: 2, Alignment: model.AlignCenter}})
	require.NoError(t, err)
	expected := join(
		[]byte{0x1B, 0x61, 0x01},
		[]byte{0x1D, 0x76, 0x30, 0x00, 0x01, 0x00, 0x02, 0x00},
		raster,
		[]byte{0x0A, 0x1B, 0x61, 0x00},
	)
	assert.Equal(t, expected, out)

	_, err = r.Render([]model.Content{model.Image{Reference: reference, Width: 16, Height: 2}})
	assert.ErrorContains(t, err, "expected 4")

	_, err = r.Render([]model.Content{model.Image{Reference: "!!", Width: 8, Height: 1}})
	assert.Error(t, err)

	_, err = r.Render([]model.Content{model.Image{Reference: reference, Width: 400, Height: 1}})
	assert.ErrorContains(t, err, "printable dots")
}

func TestRenderer_PointerItems(t *testing.T) {
	r := newTestRenderer(t, model.PrinterTypeGenericESCPOS, model.PaperSize80mm, "")

	byValue, err := r.Render([]model.Content{model.Feed{Lines: 1}, model.Cut{}})
	require.NoError(t, err)
	byPointer, err := r.Render([]model.Content{&model.Feed{Lines: 1}, &model.Cut{}})
	require.NoError(t, err)
	assert.Equal(t, byValue, byPointer)

	_, err = r.Render([]model.Content{nil})
	assert.Error(t, err)
}
