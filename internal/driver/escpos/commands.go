// internal/driver/escpos/commands.go
package escpos

// Commands contains the ESC/POS command definitions shared by every profile
var Commands = struct {
	// Basic commands
	Initialize []byte

	// Real-time status
	StatusOffline []byte
	StatusError   []byte
	StatusPaper   []byte

	// Text formatting
	BoldOn       []byte
	BoldOff      []byte
	UnderlineOn  []byte
	UnderlineOff []byte
	ItalicOn     []byte
	ItalicOff    []byte

	// Text size
	FontA      []byte
	FontB      []byte
	SizeNormal []byte
	SizeDouble []byte
	SizeTriple []byte

	// Text alignment
	AlignLeft   []byte
	AlignCenter []byte
	AlignRight  []byte

	// Character sets
	SelectCodepage []byte // + table byte
	KanjiMode      []byte // FS &, double-byte GBK

	// Paper handling
	LineFeed  []byte
	FeedLines []byte // + line count byte

	// Cutting
	CutFull    []byte
	CutPartial []byte

	// Cash drawer
	DrawerKickPin2 []byte

	// Barcodes
	BarcodeHeight   []byte // + dots
	BarcodeWidth    []byte // + module width
	BarcodeHRI      []byte // + position
	BarcodePrint    []byte // + m n data
	BarcodeCode128B []byte

	// QR codes
	QRModel2 []byte
	QRSize   []byte // + module size
	QRLevel  []byte // + level
	QRStore  []byte // pL pH follow GS ( k
	QRPrint  []byte

	// Raster images
	RasterImage []byte // + m xL xH yL yH data
}{
	Initialize: []byte{0x1B, 0x40}, // ESC @

	StatusOffline: []byte{0x10, 0x04, 0x02}, // DLE EOT 2
	StatusError:   []byte{0x10, 0x04, 0x03}, // DLE EOT 3
	StatusPaper:   []byte{0x10, 0x04, 0x04}, // DLE EOT 4

	BoldOn:       []byte{0x1B, 0x45, 0x01}, // ESC E 1
	BoldOff:      []byte{0x1B, 0x45, 0x00}, // ESC E 0
	UnderlineOn:  []byte{0x1B, 0x2D, 0x01}, // ESC - 1
	UnderlineOff: []byte{0x1B, 0x2D, 0x00}, // ESC - 0
	ItalicOn:     []byte{0x1B, 0x34},       // ESC 4
	ItalicOff:    []byte{0x1B, 0x35},       // ESC 5

	FontA:      []byte{0x1B, 0x4D, 0x00}, // ESC M 0
	FontB:      []byte{0x1B, 0x4D, 0x01}, // ESC M 1
	SizeNormal: []byte{0x1D, 0x21, 0x00}, // GS ! 0
	SizeDouble: []byte{0x1D, 0x21, 0x11}, // GS ! 17
	SizeTriple: []byte{0x1D, 0x21, 0x22}, // GS ! 34

	AlignLeft:   []byte{0x1B, 0x61, 0x00}, // ESC a 0
	AlignCenter: []byte{0x1B, 0x61, 0x01}, // ESC a 1
	AlignRight:  []byte{0x1B, 0x61, 0x02}, // ESC a 2

	SelectCodepage: []byte{0x1B, 0x74}, // ESC t
	KanjiMode:      []byte{0x1C, 0x26}, // FS &

	LineFeed:  []byte{0x0A},       // LF
	FeedLines: []byte{0x1B, 0x64}, // ESC d

	CutFull:    []byte{0x1D, 0x56, 0x00}, // GS V 0
	CutPartial: []byte{0x1D, 0x56, 0x01}, // GS V 1

	DrawerKickPin2: []byte{0x1B, 0x70, 0x00, 0x19, 0x19}, // ESC p 0 25 25

	BarcodeHeight:   []byte{0x1D, 0x68}, // GS h
	BarcodeWidth:    []byte{0x1D, 0x77}, // GS w
	BarcodeHRI:      []byte{0x1D, 0x48}, // GS H
	BarcodePrint:    []byte{0x1D, 0x6B}, // GS k
	BarcodeCode128B: []byte{0x7B, 0x42}, // {B

	QRModel2: []byte{0x1D, 0x28, 0x6B, 0x04, 0x00, 0x31, 0x41, 0x32, 0x00}, // GS ( k fn 165
	QRSize:   []byte{0x1D, 0x28, 0x6B, 0x03, 0x00, 0x31, 0x43},             // GS ( k fn 167
	QRLevel:  []byte{0x1D, 0x28, 0x6B, 0x03, 0x00, 0x31, 0x45},             // GS ( k fn 169
	QRStore:  []byte{0x1D, 0x28, 0x6B},                                     // GS ( k fn 180
	QRPrint:  []byte{0x1D, 0x28, 0x6B, 0x03, 0x00, 0x31, 0x51, 0x30},       // GS ( k fn 181

	RasterImage: []byte{0x1D, 0x76, 0x30}, // GS v 0
}

// join concatenates command fragments into one buffer
func join(parts ...[]byte) []byte {
	size := 0
	for _, part := range parts {
		size += len(part)
	}
	out := make([]byte, 0, size)
	for _, part := range parts {
		out = append(out, part...)
	}
	return out
}

// withArg appends argument bytes to a command prefix
func withArg(command []byte, args ...byte) []byte {
	return join(command, args)
}

// cutCommand feeds past the cutter and cuts
func cutCommand(partial bool) []byte {
	cut := Commands.CutFull
	if partial {
		cut = Commands.CutPartial
	}
	return join(withArg(Commands.FeedLines, 3), cut)
}

// feedCommand advances n lines with plain line feeds
func feedCommand(lines int) []byte {
	out := make([]byte, 0, lines)
	for i := 0; i < lines; i++ {
		out = append(out, Commands.LineFeed...)
	}
	return out
}
