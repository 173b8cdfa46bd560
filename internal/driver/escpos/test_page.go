package escpos

import (
	"fmt"
	"time"

	"printer-service/internal/model"
)

// TestPage builds the self-test receipt for a printer
func TestPage(cfg model.PrinterConfig, encoding string, now time.Time) []model.Content {
	bold := model.TextFormat{Alignment: model.AlignCenter, Style: model.TextStyle{Bold: true}, Size: model.TextSizeLarge}
	center := model.TextFormat{Alignment: model.AlignCenter}

	return []model.Content{
		model.NewText("PRINTER TEST", bold),
		model.Line{Char: "="},
		model.NewText(fmt.Sprintf("Name: %s", cfg.Name)),
		model.NewText(fmt.Sprintf("Type: %s", cfg.Type)),
		model.NewText(fmt.Sprintf("Connection: %s %s", cfg.ConnectionType, cfg.ConnectionString)),
		model.NewText(fmt.Sprintf("Paper: %s (%d columns)", cfg.PaperSize, cfg.PaperSize.CharsPerLine())),
		model.NewText(fmt.Sprintf("Encoding: %s", encoding)),
		model.Line{},
		model.NewText("Normal text"),
		model.NewText("Bold text", model.TextFormat{Style: model.TextStyle{Bold: true}}),
		model.NewText("Underlined text", model.TextFormat{Style: model.TextStyle{Underline: true}}),
		model.NewText("Small text", model.TextFormat{Size: model.TextSizeSmall}),
		model.NewText("Right aligned", model.TextFormat{Alignment: model.AlignRight}),
		model.Line{},
		model.NewText(now.Format("2006-01-02 15:04:05"), center),
		model.Feed{Lines: 2},
	}
}

// HelloPage builds the short greeting receipt
func HelloPage(now time.Time) []model.Content {
	return []model.Content{
		model.NewText("Hello World!", model.TextFormat{
			Alignment: model.AlignCenter,
			Style:     model.TextStyle{Bold: true},
			Size:      model.TextSizeLarge,
		}),
		model.NewText(now.Format("2006-01-02 15:04:05"), model.TextFormat{Alignment: model.AlignCenter}),
		model.Feed{Lines: 2},
	}
}
