package escpos

import (
	"printer-service/internal/model"
)

// Profile describes what a vendor's firmware supports
type Profile struct {
	Type          model.PrinterType
	Description   string
	Manufacturer  string
	PaperSizes    []model.PaperSize
	NativeBarcode bool
	NativeQR      bool
	NativeItalic  bool
	StatusQueries bool
}

var profiles = map[model.PrinterType]Profile{
	model.PrinterTypeCbxPos89e: {
		Type:          model.PrinterTypeCbxPos89e,
		Description:   "CBX POS-89E thermal receipt printer",
		Manufacturer:  "CBX",
		PaperSizes:    []model.PaperSize{model.PaperSize58mm, model.PaperSize80mm},
		NativeBarcode: true,
		NativeQR:      true,
		StatusQueries: true,
	},
	model.PrinterTypeEpsonTM: {
		Type:          model.PrinterTypeEpsonTM,
		Description:   "Epson TM series receipt printer",
		Manufacturer:  "Seiko Epson Corporation",
		PaperSizes:    []model.PaperSize{model.PaperSize58mm, model.PaperSize80mm},
		NativeBarcode: true,
		NativeQR:      true,
		StatusQueries: true,
	},
	model.PrinterTypeGenericESCPOS: {
		Type:          model.PrinterTypeGenericESCPOS,
		Description:   "Generic ESC/POS printer",
		Manufacturer:  "Unknown",
		PaperSizes:    []model.PaperSize{model.PaperSize58mm, model.PaperSize80mm, model.PaperSize112mm},
		NativeBarcode: true,
	},
}

// ProfileFor returns the built-in profile of a printer type
func ProfileFor(printerType model.PrinterType) (Profile, bool) {
	profile, ok := profiles[printerType]
	return profile, ok
}

// Profiles returns every built-in profile in a stable order
func Profiles() []Profile {
	return []Profile{
		profiles[model.PrinterTypeCbxPos89e],
		profiles[model.PrinterTypeEpsonTM],
		profiles[model.PrinterTypeGenericESCPOS],
	}
}

// SupportsPaper reports whether the vendor supports the paper width
func (p Profile) SupportsPaper(size model.PaperSize) bool {
	for _, supported := range p.PaperSizes {
		if supported == size {
			return true
		}
	}
	return false
}
