package discovery

import (
	"strings"

	"printer-service/internal/model"
)

type typeKeyword struct {
	keyword string
	typ     model.PrinterType
}

// typeKeywords is checked in order, the first hit decides the guessed type
var typeKeywords = []typeKeyword{
	{"cbx", model.PrinterTypeCbxPos89e},
	{"pos-89", model.PrinterTypeCbxPos89e},
	{"pos89", model.PrinterTypeCbxPos89e},
	{"epson", model.PrinterTypeEpsonTM},
	{"tm-", model.PrinterTypeEpsonTM},
	{"tm_", model.PrinterTypeEpsonTM},
	{"seiko", model.PrinterTypeEpsonTM},
}

// printerKeywords mark a device or queue as a receipt printer
var printerKeywords = []string{
	"pos", "receipt", "thermal", "escpos", "esc/pos", "printer",
	"cbx", "epson", "tm-", "star", "tsp", "citizen", "bixolon", "srp-",
	"xprinter", "rongta", "zjiang", "gprinter", "sewoo", "hoin", "munbyn",
}

// virtualKeywords mark spooler queues that are not physical printers
var virtualKeywords = []string{"pdf", "xps", "fax", "onenote", "writer", "cups-brf"}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

func normalize(texts []string) string {
	return strings.ToLower(strings.Join(texts, " "))
}

// GuessPrinterType maps names and descriptions to a printer type, generic when nothing matches
func GuessPrinterType(texts ...string) model.PrinterType {
	joined := normalize(texts)
	for _, candidate := range typeKeywords {
		if strings.Contains(joined, candidate.keyword) {
			return candidate.typ
		}
	}
	return model.PrinterTypeGenericESCPOS
}

// LooksLikePrinter reports whether any text names a receipt printer
func LooksLikePrinter(texts ...string) bool {
	return containsAny(normalize(texts), printerKeywords)
}

// IsVirtualPrinter reports whether a queue is a software printer
func IsVirtualPrinter(texts ...string) bool {
	return containsAny(normalize(texts), virtualKeywords)
}
