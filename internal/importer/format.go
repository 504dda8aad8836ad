package importer

import (
	"path/filepath"
	"strings"

	"github.com/hearthledger/hearthledger/internal/model"
)

// DetectFormat guesses the batch file format from its filename extension.
// Byte-level sniffing is left to the parsers themselves.
func DetectFormat(filename string) model.ImportFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return model.FormatCSV
	case ".ofx", ".qfx":
		return model.FormatOFX
	}
	return model.FormatUnknown
}
