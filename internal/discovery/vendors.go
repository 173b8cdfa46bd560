package discovery

import "printer-service/internal/model"

// Vendor is a USB vendor known to ship receipt printers
type Vendor struct {
	Name     string
	Type     model.PrinterType
	products map[uint16]string
}

// Model returns the product name of a known product
func (v Vendor) Model(productID uint16) (string, bool) {
	name, ok := v.products[productID]
	return name, ok
}

var knownVendors = map[uint16]Vendor{
	0x04B8: {
		Name: "Seiko Epson Corporation",
		Type: model.PrinterTypeEpsonTM,
		products: map[uint16]string{
			0x0202: "TM-T88IV",
			0x0203: "TM-T88V",
			0x0214: "TM-T88VI",
			0x0215: "TM-T20III",
			0x0216: "TM-T82III",
			0x0217: "TM-M30",
			0x0e15: "TM-T20II",
			0x0e28: "TM-T20III",
		},
	},
	0x0519: {
		Name: "Star Micronics Co., Ltd.",
		Type: model.PrinterTypeGenericESCPOS,
		products: map[uint16]string{
			0x0001: "TSP143III",
			0x0002: "TSP143IIIU",
			0x0003: "TSP654II",
		},
	},
	0x1D90: {
		Name: "Citizen Systems Japan Co., Ltd.",
		Type: model.PrinterTypeGenericESCPOS,
		products: map[uint16]string{
			0x2060: "CT-S310II",
			0x2168: "CT-S4000",
		},
	},
	0x1504: {
		Name: "BIXOLON Co., Ltd.",
		Type: model.PrinterTypeGenericESCPOS,
		products: map[uint16]string{
			0x0006: "SRP-330II",
			0x0007: "SRP-350III",
		},
	},
	0x0416: {
		Name: "Winbond POS Printer",
		Type: model.PrinterTypeGenericESCPOS,
		products: map[uint16]string{
			0x5011: "POS58",
		},
	},
	0x0483: {
		Name: "CBX Thermal Printer",
		Type: model.PrinterTypeCbxPos89e,
		products: map[uint16]string{
			0x5743: "POS-89E",
			0x070b: "POS-80",
		},
	},
	0x0FE6: {
		Name: "ICS Advent Thermal Printer",
		Type: model.PrinterTypeGenericESCPOS,
		products: map[uint16]string{
			0x811e: "POS80",
		},
	},
}

// LookupVendor returns a known printer vendor
func LookupVendor(vendorID uint16) (Vendor, bool) {
	vendor, ok := knownVendors[vendorID]
	return vendor, ok
}
